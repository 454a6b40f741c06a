package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/mlenz/stockpipe/internal/model"
)

// ErrorKind classifies a per-key failure.
type ErrorKind int

const (
	// KindTransient marks I/O failures (timeouts, unreachable stores) that
	// are safe to retry at the key level.
	KindTransient ErrorKind = iota

	// KindData marks schema or value problems. Never retried; the offending
	// key is reported and skipped.
	KindData
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// KeyError is a failure scoped to one (year, instrument) partition key.
type KeyError struct {
	Key  model.Key
	Kind ErrorKind
	Err  error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("key %s: %s error: %v", e.Key, e.Kind, e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// DataErr wraps err as a non-retryable data error for key.
func DataErr(key model.Key, err error) *KeyError {
	return &KeyError{Key: key, Kind: KindData, Err: err}
}

// TransientErr wraps err as a retryable I/O error for key.
func TransientErr(key model.Key, err error) *KeyError {
	return &KeyError{Key: key, Kind: KindTransient, Err: err}
}

// KeyResult is the outcome for one attempted key. Err is nil on success.
type KeyResult struct {
	Key model.Key
	Err error
}

// Report summarizes one stage run.
type Report struct {
	Stage     string
	RunID     string
	Succeeded int
	Failed    int
	Keys      []KeyResult
	Duration  time.Duration
}

// ErrStageFailed reports that a stage attempted keys but none succeeded.
var ErrStageFailed = errors.New("stage failed: no key succeeded")

// Summarize fills the counters from Keys and returns the stage-level error,
// if any. A stage that attempted nothing is a success (no-op run).
func (r *Report) Summarize() error {
	r.Succeeded, r.Failed = 0, 0
	for _, kr := range r.Keys {
		if kr.Err != nil {
			r.Failed++
		} else {
			r.Succeeded++
		}
	}
	if r.Failed > 0 && r.Succeeded == 0 {
		return fmt.Errorf("%s: %w", r.Stage, ErrStageFailed)
	}
	return nil
}

// FailedKeys returns the keys that produced errors.
func (r *Report) FailedKeys() []KeyResult {
	var out []KeyResult
	for _, kr := range r.Keys {
		if kr.Err != nil {
			out = append(out, kr)
		}
	}
	return out
}
