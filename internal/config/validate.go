package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks that all required fields are set and values are valid.
func (c *PipelineConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Fetcher.BaseURL == "" {
		return errors.New("fetcher.base_url is required")
	}

	switch c.ObjectStore.Backend {
	case "fs":
		if c.ObjectStore.Root == "" {
			return errors.New("object_store.root is required for the fs backend")
		}
	case "s3":
		if c.ObjectStore.Endpoint == "" {
			return errors.New("object_store.endpoint is required for the s3 backend")
		}
		if c.ObjectStore.AccessKey == "" || c.ObjectStore.SecretKey == "" {
			return errors.New("object_store.access_key and object_store.secret_key are required for the s3 backend")
		}
	case "mem":
		// No settings; in-process store for tests and dry runs.
	default:
		return fmt.Errorf("object_store.backend must be one of fs, s3, mem, got %q", c.ObjectStore.Backend)
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Pipeline.Concurrency < 1 {
		return errors.New("pipeline.concurrency must be >= 1")
	}
	if c.Pipeline.RollingWindow < 2 {
		return errors.New("pipeline.rolling_window must be >= 2")
	}
	if _, err := time.Parse("2006-01-02", c.Pipeline.BackfillStart); err != nil {
		return fmt.Errorf("pipeline.backfill_start must be YYYY-MM-DD, got %q", c.Pipeline.BackfillStart)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

// BackfillStartDate parses the configured start of history.
// Validate guarantees the format, so errors only surface on unvalidated configs.
func (c *PipelineConfig) BackfillStartDate() (time.Time, error) {
	return time.Parse("2006-01-02", c.Pipeline.BackfillStart)
}
