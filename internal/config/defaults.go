package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultFetchTimeout  = 30 * time.Second
	DefaultMaxRetries    = 3
	DefaultCalendar      = "xnys"
	DefaultStoreBackend  = "fs"
	DefaultBucket        = "stock-market-etl"
	DefaultDBPort        = 5432
	DefaultDBSSLMode     = "prefer"
	DefaultMaxConns      = 10
	DefaultMinConns      = 2
	DefaultConcurrency   = 10
	DefaultOpTimeout     = 30 * time.Second
	DefaultRollingWindow = 30
	DefaultBackfillStart = "2005-01-01"
	DefaultMetricsTable  = "stock_metrics"
	DefaultRegistryTable = "instruments"
)

func (c *PipelineConfig) applyDefaults() {
	// Fetcher defaults
	if c.Fetcher.Timeout == 0 {
		c.Fetcher.Timeout = DefaultFetchTimeout
	}
	if c.Fetcher.MaxRetries == 0 {
		c.Fetcher.MaxRetries = DefaultMaxRetries
	}
	if c.Fetcher.Calendar == "" {
		c.Fetcher.Calendar = DefaultCalendar
	}

	// Object store defaults
	if c.ObjectStore.Backend == "" {
		c.ObjectStore.Backend = DefaultStoreBackend
	}
	if c.ObjectStore.Bucket == "" {
		c.ObjectStore.Bucket = DefaultBucket
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Stage defaults
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = DefaultConcurrency
	}
	if c.Pipeline.OpTimeout == 0 {
		c.Pipeline.OpTimeout = DefaultOpTimeout
	}
	if c.Pipeline.RollingWindow == 0 {
		c.Pipeline.RollingWindow = DefaultRollingWindow
	}
	if c.Pipeline.BackfillStart == "" {
		c.Pipeline.BackfillStart = DefaultBackfillStart
	}
	if c.Pipeline.MetricsTable == "" {
		c.Pipeline.MetricsTable = DefaultMetricsTable
	}
	if c.Pipeline.RegistryTable == "" {
		c.Pipeline.RegistryTable = DefaultRegistryTable
	}
}
