package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/mlenz/stockpipe/internal/config"
	"github.com/mlenz/stockpipe/internal/database"
	"github.com/mlenz/stockpipe/internal/fetch"
	"github.com/mlenz/stockpipe/internal/objstore"
	"github.com/mlenz/stockpipe/internal/partition"
	"github.com/mlenz/stockpipe/internal/registry"
	"github.com/mlenz/stockpipe/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "Partitioned stock-price ETL: fetch, merge, enrich, load",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			switch logLevel {
			case "debug":
				level = slog.LevelDebug
			case "warn":
				level = slog.LevelWarn
			case "error":
				level = slog.LevelError
			}
			logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: level,
			}))
			slog.SetDefault(logger)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "configs/pipeline.yaml", "path to config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		newIngestCmd(&configPath),
		newTransformCmd(&configPath),
		newLoadCmd(&configPath),
		newRunCmd(&configPath),
		newBackfillCmd(&configPath),
		newSyncInstrumentsCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.String())
		},
	}
}

// app holds the wired components shared by the stage commands. The database
// pool is connected lazily: the merge and transform stages do not need one
// unless the instrument registry lives in the database.
type app struct {
	cfg    *config.PipelineConfig
	logger *slog.Logger
	store  *partition.Store
	cal    *fetch.Calendar

	pool *pgxpool.Pool
}

func setup(ctx context.Context, configPath string) (*app, error) {
	logger := slog.Default()

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"store_backend", cfg.ObjectStore.Backend,
		"config", configPath,
	)

	objects, err := newObjectStore(ctx, cfg.ObjectStore)
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  partition.NewStore(objects),
		cal:    fetch.NewCalendar(cfg.Fetcher.Calendar),
	}, nil
}

func newObjectStore(ctx context.Context, cfg config.ObjectStoreConfig) (objstore.Store, error) {
	switch cfg.Backend {
	case "fs":
		return objstore.NewFS(cfg.Root)
	case "s3":
		return objstore.NewS3(ctx, objstore.S3Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
	case "mem":
		return objstore.NewMem(), nil
	default:
		return nil, fmt.Errorf("unknown object store backend %q", cfg.Backend)
	}
}

// db connects the pool on first use.
func (a *app) db(ctx context.Context) (*pgxpool.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}

	a.logger.Info("connecting to database",
		"host", a.cfg.Database.Host,
		"port", a.cfg.Database.Port,
		"database", a.cfg.Database.Name,
	)
	pool, err := database.Connect(ctx, a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.pool = pool
	return pool, nil
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// registry returns the configured instrument registry: the static config
// list when one is given, otherwise the instruments table.
func (a *app) registry(ctx context.Context) (registry.Registry, error) {
	if len(a.cfg.Instruments) > 0 {
		a.logger.Debug("using static instrument registry", "instruments", len(a.cfg.Instruments))
		return registry.NewStatic(configInstruments(a.cfg)), nil
	}

	pool, err := a.db(ctx)
	if err != nil {
		return nil, err
	}
	return registry.NewPostgres(pool, a.cfg.Pipeline.RegistryTable, a.logger), nil
}

func (a *app) fetcher() *fetch.Client {
	opts := []fetch.ClientOption{
		fetch.WithLogger(a.logger),
		fetch.WithTimeout(a.cfg.Fetcher.Timeout),
		fetch.WithRetries(a.cfg.Fetcher.MaxRetries, time.Second),
	}
	return fetch.NewClient(a.cfg.Fetcher.BaseURL, a.cfg.Fetcher.APIKey, opts...)
}
