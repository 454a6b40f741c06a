package config

import "time"

// PipelineConfig is the root configuration for a pipeline instance.
type PipelineConfig struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Fetcher     FetcherConfig     `yaml:"fetcher"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Database    DBConfig          `yaml:"database"`
	Pipeline    StagesConfig      `yaml:"pipeline"`
	Instruments []InstrumentEntry `yaml:"instruments"`
}

// InstanceConfig identifies this pipeline deployment.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// FetcherConfig holds price source settings.
type FetcherConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	Calendar   string        `yaml:"calendar"` // Exchange MIC for trading-day planning (e.g., "xnys")
}

// ObjectStoreConfig selects and configures the partition store backend.
type ObjectStoreConfig struct {
	Backend string `yaml:"backend"` // "fs", "s3", or "mem"
	Bucket  string `yaml:"bucket"`

	// FS backend
	Root string `yaml:"root"`

	// S3 backend
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// DBConfig holds the Postgres connection for the relational store.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// StagesConfig holds settings shared by the pipeline stages.
type StagesConfig struct {
	Concurrency   int           `yaml:"concurrency"`    // Worker pool width for per-key fan-out
	OpTimeout     time.Duration `yaml:"op_timeout"`     // Per network operation (object read/write, DB query)
	RollingWindow int           `yaml:"rolling_window"` // Trailing observations for volatility
	BackfillStart string        `yaml:"backfill_start"` // First date of history, "YYYY-MM-DD"
	MetricsTable  string        `yaml:"metrics_table"`
	RegistryTable string        `yaml:"registry_table"`
}

// InstrumentEntry is one statically configured registry entry.
type InstrumentEntry struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Sector string `yaml:"sector"`
}
