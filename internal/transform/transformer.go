package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mlenz/stockpipe/internal/model"
	"github.com/mlenz/stockpipe/internal/partition"
	"github.com/mlenz/stockpipe/internal/pipeline"
	"github.com/mlenz/stockpipe/internal/quality"
)

// StageName identifies the transform stage in reports and logs.
const StageName = "transform"

// Config holds transformer settings.
type Config struct {
	Concurrency   int           // Worker pool width for per-key fan-out
	OpTimeout     time.Duration // Per object-store operation
	RollingWindow int           // Trailing observations for rolling_vol
}

// Transformer computes enriched partitions from raw ones.
type Transformer struct {
	store  *partition.Store
	cfg    Config
	logger *slog.Logger
}

// New creates a transformer.
func New(cfg Config, store *partition.Store, logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{store: store, cfg: cfg, logger: logger}
}

func (t *Transformer) Name() string { return StageName }

// Run enriches every raw partition. Each key is processed independently; a
// failed key is reported and skipped while siblings continue.
func (t *Transformer) Run(ctx context.Context, runID string) (*pipeline.Report, error) {
	report := &pipeline.Report{Stage: StageName, RunID: runID}

	keys, err := t.store.Keys(ctx, partition.DomainRaw)
	if err != nil {
		return report, fmt.Errorf("list raw partitions: %w", err)
	}
	if len(keys) == 0 {
		t.logger.Info("no raw partitions to transform", "run_id", runID)
		return report, nil
	}

	results := make([]pipeline.KeyResult, len(keys))

	g := &errgroup.Group{}
	g.SetLimit(t.cfg.Concurrency)
	for i, key := range keys {
		g.Go(func() error {
			// Failures stay in the per-key result; never cancel siblings.
			results[i] = pipeline.KeyResult{Key: key, Err: t.processKey(ctx, key)}
			return nil
		})
	}
	g.Wait()

	report.Keys = results
	return report, report.Summarize()
}

func (t *Transformer) processKey(ctx context.Context, key model.Key) error {
	opCtx, cancel := t.opContext(ctx)
	rows, err := t.store.ReadRaw(opCtx, key)
	cancel()
	if errors.Is(err, partition.ErrNotExist) {
		// Listed a moment ago but gone now; nothing to enrich.
		return nil
	}
	if err != nil {
		return pipeline.TransientErr(key, fmt.Errorf("read raw partition: %w", err))
	}

	enriched, err := Enrich(rows, t.cfg.RollingWindow)
	if err != nil {
		return pipeline.DataErr(key, err)
	}

	res := quality.Check(&partition.Enriched{
		Key:     key,
		Rows:    enriched,
		Columns: partition.EnrichedColumns(),
	})
	if !res.Passed() {
		t.logger.Error("quality gate rejected partition",
			"key", key.String(),
			"violations", len(res.Violations),
			"detail", res.Err(),
		)
		return pipeline.DataErr(key, res.Err())
	}

	opCtx, cancel = t.opContext(ctx)
	defer cancel()
	if err := t.store.WriteEnriched(opCtx, key, enriched); err != nil {
		return pipeline.TransientErr(key, fmt.Errorf("write enriched partition: %w", err))
	}

	t.logger.Debug("partition enriched", "key", key.String(), "rows", len(enriched))
	return nil
}

func (t *Transformer) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.cfg.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.cfg.OpTimeout)
}
