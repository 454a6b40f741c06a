package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-pipeline
fetcher:
  base_url: https://data.example.com/v1
object_store:
  backend: fs
  root: /tmp/partitions
database:
  host: localhost
  port: 5432
  name: test_db
  user: testuser
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-pipeline" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-pipeline")
	}
	if cfg.Fetcher.BaseURL != "https://data.example.com/v1" {
		t.Errorf("Fetcher.BaseURL = %q, want %q", cfg.Fetcher.BaseURL, "https://data.example.com/v1")
	}
	if cfg.ObjectStore.Root != "/tmp/partitions" {
		t.Errorf("ObjectStore.Root = %q, want %q", cfg.ObjectStore.Root, "/tmp/partitions")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: test-pipeline
database:
  host: localhost
  name: test_db
  user: testuser
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-pipeline
fetcher:
  base_url: https://data.example.com/v1
object_store:
  backend: mem
database:
  host: localhost
  name: test_db
  user: testuser
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Fetcher.Timeout != DefaultFetchTimeout {
		t.Errorf("Fetcher.Timeout = %v, want default %v", cfg.Fetcher.Timeout, DefaultFetchTimeout)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Pipeline.Concurrency != DefaultConcurrency {
		t.Errorf("Pipeline.Concurrency = %d, want default %d", cfg.Pipeline.Concurrency, DefaultConcurrency)
	}
	if cfg.Pipeline.RollingWindow != DefaultRollingWindow {
		t.Errorf("Pipeline.RollingWindow = %d, want default %d", cfg.Pipeline.RollingWindow, DefaultRollingWindow)
	}
	if cfg.Pipeline.MetricsTable != DefaultMetricsTable {
		t.Errorf("Pipeline.MetricsTable = %q, want default %q", cfg.Pipeline.MetricsTable, DefaultMetricsTable)
	}
}

func TestValidate(t *testing.T) {
	validDB := DBConfig{
		Host: "localhost", Name: "db", User: "user", Password: "pass",
		MaxConns: 10, MinConns: 2,
	}
	validStages := StagesConfig{
		Concurrency:   10,
		RollingWindow: 30,
		BackfillStart: "2005-01-01",
	}

	tests := []struct {
		name    string
		cfg     PipelineConfig
		wantErr string
	}{
		{
			name:    "missing instance id",
			cfg:     PipelineConfig{},
			wantErr: "instance.id is required",
		},
		{
			name: "missing fetcher url",
			cfg: PipelineConfig{
				Instance: InstanceConfig{ID: "test"},
			},
			wantErr: "fetcher.base_url is required",
		},
		{
			name: "fs backend without root",
			cfg: PipelineConfig{
				Instance:    InstanceConfig{ID: "test"},
				Fetcher:     FetcherConfig{BaseURL: "https://x"},
				ObjectStore: ObjectStoreConfig{Backend: "fs"},
			},
			wantErr: "object_store.root is required for the fs backend",
		},
		{
			name: "unknown backend",
			cfg: PipelineConfig{
				Instance:    InstanceConfig{ID: "test"},
				Fetcher:     FetcherConfig{BaseURL: "https://x"},
				ObjectStore: ObjectStoreConfig{Backend: "gcs"},
			},
			wantErr: `object_store.backend must be one of fs, s3, mem, got "gcs"`,
		},
		{
			name: "min_conns exceeds max_conns",
			cfg: PipelineConfig{
				Instance:    InstanceConfig{ID: "test"},
				Fetcher:     FetcherConfig{BaseURL: "https://x"},
				ObjectStore: ObjectStoreConfig{Backend: "mem"},
				Database: DBConfig{
					Host: "localhost", Name: "db", User: "user", Password: "pass",
					MaxConns: 5, MinConns: 10,
				},
			},
			wantErr: "database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "bad backfill start",
			cfg: PipelineConfig{
				Instance:    InstanceConfig{ID: "test"},
				Fetcher:     FetcherConfig{BaseURL: "https://x"},
				ObjectStore: ObjectStoreConfig{Backend: "mem"},
				Database:    validDB,
				Pipeline: StagesConfig{
					Concurrency:   10,
					RollingWindow: 30,
					BackfillStart: "01/05/2005",
				},
			},
			wantErr: `pipeline.backfill_start must be YYYY-MM-DD, got "01/05/2005"`,
		},
		{
			name: "valid config",
			cfg: PipelineConfig{
				Instance:    InstanceConfig{ID: "test"},
				Fetcher:     FetcherConfig{BaseURL: "https://x"},
				ObjectStore: ObjectStoreConfig{Backend: "mem"},
				Database:    validDB,
				Pipeline:    validStages,
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
