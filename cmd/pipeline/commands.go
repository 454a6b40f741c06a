package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mlenz/stockpipe/internal/config"
	"github.com/mlenz/stockpipe/internal/ingest"
	"github.com/mlenz/stockpipe/internal/load"
	"github.com/mlenz/stockpipe/internal/model"
	"github.com/mlenz/stockpipe/internal/pipeline"
	"github.com/mlenz/stockpipe/internal/registry"
	"github.com/mlenz/stockpipe/internal/transform"
)

func newIngestCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch new rows and merge them into the raw partitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			engine, err := a.mergeEngine(cmd.Context())
			if err != nil {
				return err
			}
			return runStages(cmd.Context(), a, engine)
		},
	}
}

func newTransformCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "transform",
		Short: "Compute daily returns and rolling volatility for raw partitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			return runStages(cmd.Context(), a, a.transformer())
		},
	}
}

func newLoadCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Append new enriched rows to the metrics table",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			loader, err := a.loader(cmd.Context())
			if err != nil {
				return err
			}
			return runStages(cmd.Context(), a, loader)
		},
	}
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: ingest, transform, load",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			engine, err := a.mergeEngine(cmd.Context())
			if err != nil {
				return err
			}
			loader, err := a.loader(cmd.Context())
			if err != nil {
				return err
			}
			return runStages(cmd.Context(), a, engine, a.transformer(), loader)
		},
	}
}

func newBackfillCmd(configPath *string) *cobra.Command {
	var startStr, endStr string

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Ingest a historical date range into the raw partitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			start, err := a.cfg.BackfillStartDate()
			if err != nil {
				return err
			}
			if startStr != "" {
				if start, err = time.Parse("2006-01-02", startStr); err != nil {
					return fmt.Errorf("parse --start: %w", err)
				}
			}
			end := model.Day(time.Now().UTC())
			if endStr != "" {
				if end, err = time.Parse("2006-01-02", endStr); err != nil {
					return fmt.Errorf("parse --end: %w", err)
				}
			}
			if end.Before(start) {
				return fmt.Errorf("end %s is before start %s",
					end.Format("2006-01-02"), start.Format("2006-01-02"))
			}

			engine, err := a.mergeEngine(cmd.Context())
			if err != nil {
				return err
			}

			report, err := engine.Backfill(cmd.Context(), "backfill", start, end)
			if report != nil {
				a.logger.Info("backfill finished",
					"succeeded", report.Succeeded,
					"failed", report.Failed,
				)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&startStr, "start", "", "first date, YYYY-MM-DD (default: configured backfill start)")
	cmd.Flags().StringVar(&endStr, "end", "", "last date, YYYY-MM-DD (default: today)")
	return cmd
}

func newSyncInstrumentsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-instruments",
		Short: "Insert configured instruments missing from the registry table",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if len(a.cfg.Instruments) == 0 {
				return fmt.Errorf("no instruments configured")
			}

			pool, err := a.db(cmd.Context())
			if err != nil {
				return err
			}

			if err := load.NewPostgres(pool, a.cfg.Pipeline.MetricsTable, a.cfg.Pipeline.RegistryTable, a.logger).EnsureSchema(cmd.Context()); err != nil {
				return err
			}

			reg := registry.NewPostgres(pool, a.cfg.Pipeline.RegistryTable, a.logger)
			inserted, err := reg.Sync(cmd.Context(), configInstruments(a.cfg))
			if err != nil {
				return fmt.Errorf("sync instruments: %w", err)
			}
			a.logger.Info("instruments synced",
				"configured", len(a.cfg.Instruments),
				"inserted", inserted,
			)
			return nil
		},
	}
}

// runStages executes the given stages sequentially and maps a stage failure
// to a non-zero process exit via the returned error.
func runStages(ctx context.Context, a *app, stages ...pipeline.Stage) error {
	_, err := pipeline.NewRunner(a.logger, stages...).Run(ctx)
	return err
}

func (a *app) mergeEngine(ctx context.Context) (*ingest.Engine, error) {
	reg, err := a.registry(ctx)
	if err != nil {
		return nil, err
	}

	start, err := a.cfg.BackfillStartDate()
	if err != nil {
		return nil, err
	}

	return ingest.New(ingest.Config{
		Concurrency:   a.cfg.Pipeline.Concurrency,
		OpTimeout:     a.cfg.Pipeline.OpTimeout,
		BackfillStart: start,
	}, a.store, a.fetcher(), reg, a.cal, a.logger), nil
}

// loader connects the database, ensures the schema, and builds the load
// stage on top of it.
func (a *app) loader(ctx context.Context) (*load.Loader, error) {
	pool, err := a.db(ctx)
	if err != nil {
		return nil, err
	}

	db := load.NewPostgres(pool, a.cfg.Pipeline.MetricsTable, a.cfg.Pipeline.RegistryTable, a.logger)
	if err := db.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	return load.New(load.Config{
		Concurrency: a.cfg.Pipeline.Concurrency,
		OpTimeout:   a.cfg.Pipeline.OpTimeout,
	}, db, a.store, a.logger), nil
}

func (a *app) transformer() *transform.Transformer {
	return transform.New(transform.Config{
		Concurrency:   a.cfg.Pipeline.Concurrency,
		OpTimeout:     a.cfg.Pipeline.OpTimeout,
		RollingWindow: a.cfg.Pipeline.RollingWindow,
	}, a.store, a.logger)
}

func configInstruments(cfg *config.PipelineConfig) []model.Instrument {
	out := make([]model.Instrument, 0, len(cfg.Instruments))
	for _, e := range cfg.Instruments {
		out = append(out, model.Instrument{ID: e.ID, Name: e.Name, Sector: e.Sector})
	}
	return out
}
