package fetch

import (
	"context"
	"time"

	"github.com/mlenz/stockpipe/internal/model"
)

// Fetcher provides raw daily price rows for a set of instruments over a
// date range (inclusive). An empty result is valid: no trading occurred or
// the provider has nothing yet for the range.
type Fetcher interface {
	Fetch(ctx context.Context, ids []string, start, end time.Time) ([]model.PriceRow, error)
}

// Func adapts a function to the Fetcher interface.
type Func func(ctx context.Context, ids []string, start, end time.Time) ([]model.PriceRow, error)

func (f Func) Fetch(ctx context.Context, ids []string, start, end time.Time) ([]model.PriceRow, error) {
	return f(ctx, ids, start, end)
}
