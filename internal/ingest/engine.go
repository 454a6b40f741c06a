package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mlenz/stockpipe/internal/fetch"
	"github.com/mlenz/stockpipe/internal/model"
	"github.com/mlenz/stockpipe/internal/partition"
	"github.com/mlenz/stockpipe/internal/pipeline"
	"github.com/mlenz/stockpipe/internal/registry"
)

// StageName identifies the merge stage in reports and logs.
const StageName = "merge"

// Config holds merge engine settings.
type Config struct {
	Concurrency   int           // Worker pool width for partition I/O
	OpTimeout     time.Duration // Per object-store operation
	BackfillStart time.Time     // First date of history when no raw data exists
}

// Engine reconciles freshly fetched rows with existing raw partitions.
type Engine struct {
	store    *partition.Store
	fetcher  fetch.Fetcher
	registry registry.Registry
	cal      *fetch.Calendar
	cfg      Config
	logger   *slog.Logger

	now func() time.Time
}

// New creates a merge engine.
func New(cfg Config, store *partition.Store, fetcher fetch.Fetcher, reg registry.Registry, cal *fetch.Calendar, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		fetcher:  fetcher,
		registry: reg,
		cal:      cal,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (e *Engine) Name() string { return StageName }

// Run ingests everything between the raw high-water mark and today.
func (e *Engine) Run(ctx context.Context, runID string) (*pipeline.Report, error) {
	report := &pipeline.Report{Stage: StageName, RunID: runID}

	latest, ok, err := e.store.LatestRawDate(ctx)
	if err != nil {
		return report, fmt.Errorf("determine high-water mark: %w", err)
	}

	start := e.cfg.BackfillStart
	if ok {
		start = latest.AddDate(0, 0, 1)
	}
	today := model.Day(e.now())

	if start.After(today) {
		e.logger.Info("raw partitions already up to date", "run_id", runID)
		return report, nil
	}
	if e.cal != nil && !e.cal.HasTradingDay(start, today) {
		e.logger.Info("no trading day in candidate range",
			"run_id", runID,
			"start", start.Format("2006-01-02"),
			"end", today.Format("2006-01-02"),
		)
		return report, nil
	}

	return e.ingestRange(ctx, report, start, today)
}

// Backfill ingests an explicit historical range, one calendar year at a
// time to bound the size of each fetch.
func (e *Engine) Backfill(ctx context.Context, runID string, start, end time.Time) (*pipeline.Report, error) {
	report := &pipeline.Report{Stage: StageName, RunID: runID}

	for year := start.Year(); year <= end.Year(); year++ {
		chunkStart := model.Day(time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC))
		if chunkStart.Before(start) {
			chunkStart = start
		}
		chunkEnd := model.Day(time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC))
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		if _, err := e.ingestRange(ctx, report, chunkStart, chunkEnd); err != nil {
			return report, err
		}
	}

	return report, report.Summarize()
}

// ingestRange fetches [start, end] and merges the result into partitions,
// appending per-key outcomes to report.
func (e *Engine) ingestRange(ctx context.Context, report *pipeline.Report, start, end time.Time) (*pipeline.Report, error) {
	instruments, err := e.registry.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list instruments: %w", err)
	}
	if len(instruments) == 0 {
		e.logger.Warn("instrument registry is empty", "run_id", report.RunID)
		return report, nil
	}

	rows, err := e.fetcher.Fetch(ctx, registry.IDs(instruments), start, end)
	if err != nil {
		return report, fmt.Errorf("fetch %s..%s: %w",
			start.Format("2006-01-02"), end.Format("2006-01-02"), err)
	}
	if len(rows) == 0 {
		e.logger.Info("fetch returned no rows",
			"run_id", report.RunID,
			"start", start.Format("2006-01-02"),
			"end", end.Format("2006-01-02"),
		)
		return report, nil
	}

	report.Keys = append(report.Keys, e.merge(ctx, rows)...)
	return report, report.Summarize()
}

// merge reconciles fetched rows into their partitions: a concurrent
// read-merge phase, a full barrier, then a concurrent write phase. Keys
// whose read failed are excluded from the write phase; sibling keys proceed.
func (e *Engine) merge(ctx context.Context, rows []model.PriceRow) []pipeline.KeyResult {
	groups := make(map[model.Key][]model.PriceRow)
	for _, r := range rows {
		key := r.PartitionKey()
		groups[key] = append(groups[key], r)
	}

	keys := make([]model.Key, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Year != keys[j].Year {
			return keys[i].Year < keys[j].Year
		}
		return keys[i].Instrument < keys[j].Instrument
	})

	index := make(map[model.Key]int, len(keys))
	for i, key := range keys {
		index[key] = i
	}

	// Phase 1: read existing partitions and merge in the fetched subset.
	// Each worker writes only its own slot of merged.
	merged := make([][]model.PriceRow, len(keys))
	readResults := pipeline.ForEachKey(ctx, e.cfg.Concurrency, keys, func(ctx context.Context, key model.Key) error {
		opCtx, cancel := e.opContext(ctx)
		defer cancel()

		existing, err := e.store.ReadRaw(opCtx, key)
		if err != nil && !errors.Is(err, partition.ErrNotExist) {
			return pipeline.TransientErr(key, fmt.Errorf("read partition: %w", err))
		}

		merged[index[key]] = mergeRows(existing, groups[key])
		return nil
	})

	// Full barrier: ForEachKey returns only after every read finished, so
	// no write can overlap a sibling's read-merge.
	writeKeys := make([]model.Key, 0, len(keys))
	for _, kr := range readResults {
		if kr.Err == nil {
			writeKeys = append(writeKeys, kr.Key)
		}
	}

	// Phase 2: write merged partitions back.
	writeResults := pipeline.ForEachKey(ctx, e.cfg.Concurrency, writeKeys, func(ctx context.Context, key model.Key) error {
		opCtx, cancel := e.opContext(ctx)
		defer cancel()

		if err := e.store.WriteRaw(opCtx, key, merged[index[key]]); err != nil {
			return pipeline.TransientErr(key, fmt.Errorf("write partition: %w", err))
		}
		return nil
	})

	// Combine: a key's outcome is its read error, or else its write outcome.
	final := make([]pipeline.KeyResult, len(keys))
	copy(final, readResults)
	for _, kr := range writeResults {
		final[index[kr.Key]] = kr
	}

	var rowsMerged int
	for i, kr := range final {
		if kr.Err == nil {
			rowsMerged += len(merged[i])
		}
	}
	e.logger.Info("merge complete",
		"partitions", len(keys),
		"rows", rowsMerged,
	)
	return final
}

// mergeRows unions existing and incoming rows, deduplicated by
// (instrument, date) with incoming winning ties, sorted by date.
func mergeRows(existing, incoming []model.PriceRow) []model.PriceRow {
	byKey := make(map[model.RowKey]model.PriceRow, len(existing)+len(incoming))
	for _, r := range existing {
		byKey[r.Key()] = r
	}
	for _, r := range incoming {
		byKey[r.Key()] = r
	}

	out := make([]model.PriceRow, 0, len(byKey))
	for _, r := range byKey {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (e *Engine) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.OpTimeout)
}
