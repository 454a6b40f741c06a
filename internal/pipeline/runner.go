package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Stage is one unit of pipeline work, invoked as a whole by the scheduler.
type Stage interface {
	Name() string
	Run(ctx context.Context, runID string) (*Report, error)
}

// Runner executes stages strictly in order: a stage starts only after the
// previous one finished. A stage-level failure stops the run; per-key
// failures inside an otherwise successful stage do not.
type Runner struct {
	stages []Stage
	logger *slog.Logger
}

// NewRunner creates a Runner over the given stages.
func NewRunner(logger *slog.Logger, stages ...Stage) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{stages: stages, logger: logger}
}

// Run executes all stages and returns their reports. The returned reports
// cover every stage that ran, including a failed final stage.
func (r *Runner) Run(ctx context.Context) ([]*Report, error) {
	runID := uuid.NewString()
	start := time.Now()

	r.logger.Info("pipeline run starting",
		"run_id", runID,
		"stages", len(r.stages),
	)

	var reports []*Report
	for _, stage := range r.stages {
		stageStart := time.Now()
		report, err := stage.Run(ctx, runID)
		if report == nil {
			report = &Report{Stage: stage.Name(), RunID: runID}
		}
		report.Duration = time.Since(stageStart)
		reports = append(reports, report)

		for _, kr := range report.FailedKeys() {
			r.logger.Warn("key failed",
				"run_id", runID,
				"stage", stage.Name(),
				"key", kr.Key.String(),
				"err", kr.Err,
			)
		}

		if err != nil {
			r.logger.Error("stage failed",
				"run_id", runID,
				"stage", stage.Name(),
				"succeeded", report.Succeeded,
				"failed", report.Failed,
				"err", err,
			)
			return reports, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}

		r.logger.Info("stage complete",
			"run_id", runID,
			"stage", stage.Name(),
			"succeeded", report.Succeeded,
			"failed", report.Failed,
			"duration", report.Duration,
		)
	}

	r.logger.Info("pipeline run complete",
		"run_id", runID,
		"duration", time.Since(start),
	)
	return reports, nil
}
