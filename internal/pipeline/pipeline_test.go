package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/mlenz/stockpipe/internal/model"
)

func testKeys(n int) []model.Key {
	keys := make([]model.Key, n)
	for i := range keys {
		keys[i] = model.Key{Instrument: fmt.Sprintf("I%03d", i), Year: 2024}
	}
	return keys
}

func TestForEachKeyRunsAllKeys(t *testing.T) {
	keys := testKeys(50)
	var ran atomic.Int64

	results := ForEachKey(context.Background(), 8, keys, func(ctx context.Context, key model.Key) error {
		ran.Add(1)
		return nil
	})

	if ran.Load() != 50 {
		t.Errorf("ran %d keys, want 50", ran.Load())
	}
	if len(results) != 50 {
		t.Fatalf("got %d results, want 50", len(results))
	}
	for i, kr := range results {
		if kr.Err != nil {
			t.Errorf("results[%d].Err = %v, want nil", i, kr.Err)
		}
		if kr.Key != keys[i] {
			t.Errorf("results[%d].Key = %v, want %v (order must match input)", i, kr.Key, keys[i])
		}
	}
}

func TestForEachKeyBoundsConcurrency(t *testing.T) {
	keys := testKeys(40)
	var inFlight, peak atomic.Int64

	ForEachKey(context.Background(), 4, keys, func(ctx context.Context, key model.Key) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		return nil
	})

	if peak.Load() > 4 {
		t.Errorf("peak concurrency = %d, want <= 4", peak.Load())
	}
}

func TestForEachKeyIsolatesFailures(t *testing.T) {
	keys := testKeys(10)
	boom := errors.New("boom")

	results := ForEachKey(context.Background(), 3, keys, func(ctx context.Context, key model.Key) error {
		if key.Instrument == "I004" {
			return boom
		}
		return nil
	})

	var failed int
	for _, kr := range results {
		if kr.Err != nil {
			failed++
			if !errors.Is(kr.Err, boom) {
				t.Errorf("key %v: err = %v, want boom", kr.Key, kr.Err)
			}
		}
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1 (one bad key must not affect siblings)", failed)
	}
}

func TestReportSummarize(t *testing.T) {
	k := model.Key{Instrument: "AAPL", Year: 2024}

	tests := []struct {
		name      string
		keys      []KeyResult
		wantErr   bool
		succeeded int
		failed    int
	}{
		{
			name:      "all succeed",
			keys:      []KeyResult{{Key: k}, {Key: k}},
			succeeded: 2,
		},
		{
			name:      "partial failure is not stage failure",
			keys:      []KeyResult{{Key: k}, {Key: k, Err: errors.New("x")}},
			succeeded: 1,
			failed:    1,
		},
		{
			name:    "zero successes with attempts fails the stage",
			keys:    []KeyResult{{Key: k, Err: errors.New("x")}},
			failed:  1,
			wantErr: true,
		},
		{
			name: "attempted nothing is a no-op success",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Report{Stage: "merge", Keys: tt.keys}
			err := r.Summarize()
			if tt.wantErr {
				if !errors.Is(err, ErrStageFailed) {
					t.Errorf("Summarize() = %v, want ErrStageFailed", err)
				}
			} else if err != nil {
				t.Errorf("Summarize() unexpected error: %v", err)
			}
			if r.Succeeded != tt.succeeded {
				t.Errorf("Succeeded = %d, want %d", r.Succeeded, tt.succeeded)
			}
			if r.Failed != tt.failed {
				t.Errorf("Failed = %d, want %d", r.Failed, tt.failed)
			}
		})
	}
}

func TestKeyErrorKinds(t *testing.T) {
	k := model.Key{Instrument: "AAPL", Year: 2024}
	inner := errors.New("zero prior close")

	dataErr := DataErr(k, inner)
	if dataErr.Kind != KindData {
		t.Errorf("Kind = %v, want KindData", dataErr.Kind)
	}
	if !errors.Is(dataErr, inner) {
		t.Error("KeyError must unwrap to the inner error")
	}

	transient := TransientErr(k, inner)
	if transient.Kind != KindTransient {
		t.Errorf("Kind = %v, want KindTransient", transient.Kind)
	}
}

// stage fake for runner ordering tests.
type fakeStage struct {
	name  string
	order *[]string
	fail  bool
}

func (s *fakeStage) Name() string { return s.name }

func (s *fakeStage) Run(ctx context.Context, runID string) (*Report, error) {
	*s.order = append(*s.order, s.name)
	r := &Report{Stage: s.name, RunID: runID}
	if s.fail {
		r.Keys = []KeyResult{{Key: model.Key{Instrument: "X", Year: 2024}, Err: errors.New("bad")}}
		return r, r.Summarize()
	}
	return r, nil
}

func TestRunnerStrictOrder(t *testing.T) {
	var order []string
	runner := NewRunner(nil,
		&fakeStage{name: "merge", order: &order},
		&fakeStage{name: "transform", order: &order},
		&fakeStage{name: "load", order: &order},
	)

	reports, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}

	want := []string{"merge", "transform", "load"}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}

	// Same run ID stamped across stages.
	if reports[0].RunID == "" || reports[0].RunID != reports[2].RunID {
		t.Errorf("run IDs differ across stages: %q vs %q", reports[0].RunID, reports[2].RunID)
	}
}

func TestRunnerStopsOnStageFailure(t *testing.T) {
	var order []string
	runner := NewRunner(nil,
		&fakeStage{name: "merge", order: &order, fail: true},
		&fakeStage{name: "transform", order: &order},
	)

	_, err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("Run should fail when a stage fails")
	}
	if len(order) != 1 {
		t.Errorf("ran stages %v, want only merge", order)
	}
}
