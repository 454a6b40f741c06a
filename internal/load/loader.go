package load

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mlenz/stockpipe/internal/model"
	"github.com/mlenz/stockpipe/internal/partition"
	"github.com/mlenz/stockpipe/internal/pipeline"
)

// StageName identifies the load stage in reports and logs.
const StageName = "load"

// Config holds loader settings.
type Config struct {
	Concurrency int           // Worker pool width for per-key fan-out
	OpTimeout   time.Duration // Per object-store operation
}

// Loader appends new enriched rows to the relational store.
type Loader struct {
	db     DB
	store  *partition.Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a loader.
func New(cfg Config, db DB, store *partition.Store, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{db: db, store: store, cfg: cfg, logger: logger, now: time.Now}
}

func (l *Loader) Name() string { return StageName }

// Run loads every enriched partition's new rows. Per-key batches are
// independent transactions; a failed batch is reported and skipped while
// siblings continue, and may be retried wholesale on the next run.
func (l *Loader) Run(ctx context.Context, runID string) (*pipeline.Report, error) {
	report := &pipeline.Report{Stage: StageName, RunID: runID}

	hwm, err := l.db.MaxDatePerInstrument(ctx)
	if err != nil {
		return report, fmt.Errorf("query high-water marks: %w", err)
	}

	keys, err := l.store.Keys(ctx, partition.DomainEnriched)
	if err != nil {
		return report, fmt.Errorf("list enriched partitions: %w", err)
	}
	if len(keys) == 0 {
		l.logger.Info("no enriched partitions to load", "run_id", runID)
		return report, nil
	}

	runDate := model.Day(l.now().UTC())

	report.Keys = pipeline.ForEachKey(ctx, l.cfg.Concurrency, keys, func(ctx context.Context, key model.Key) error {
		return l.loadKey(ctx, key, hwm, runDate)
	})
	return report, report.Summarize()
}

func (l *Loader) loadKey(ctx context.Context, key model.Key, hwm map[string]time.Time, runDate time.Time) error {
	opCtx, cancel := l.opContext(ctx)
	enriched, err := l.store.ReadEnriched(opCtx, key)
	cancel()
	if errors.Is(err, partition.ErrNotExist) {
		return nil
	}
	if err != nil {
		return pipeline.TransientErr(key, fmt.Errorf("read enriched partition: %w", err))
	}

	max, haveHWM := hwm[key.Instrument]
	var batch []model.EnrichedRow
	reloadDay := false
	for _, row := range enriched.Rows {
		day := model.Day(row.Date)
		switch {
		case day.Equal(runDate):
			// The run date's row is always (re)loaded: a later fetch may
			// carry a revised price for the provisional trading day.
			batch = append(batch, row)
			reloadDay = true
		case !haveHWM || day.After(max):
			batch = append(batch, row)
		}
	}
	if len(batch) == 0 {
		l.logger.Debug("partition already loaded", "key", key.String())
		return nil
	}

	var reload time.Time
	if reloadDay {
		reload = runDate
	}

	appended, err := l.db.AppendBatch(ctx, key.Instrument, reload, batch)
	if err != nil {
		return pipeline.TransientErr(key, fmt.Errorf("append batch: %w", err))
	}

	l.logger.Info("partition loaded",
		"key", key.String(),
		"rows", appended,
		"skipped", len(enriched.Rows)-len(batch),
	)
	return nil
}

func (l *Loader) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.cfg.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.cfg.OpTimeout)
}
