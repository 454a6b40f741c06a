package pipeline

import (
	"context"
	"sync"

	"github.com/mlenz/stockpipe/internal/model"
)

// ForEachKey runs fn for every key on a bounded worker pool and collects
// per-key results. Each worker writes only its own slot, so no further
// synchronization is needed on the result slice. One key's failure never
// cancels its siblings; cancellation of ctx stops keys that have not yet
// acquired a slot.
func ForEachKey(ctx context.Context, limit int, keys []model.Key, fn func(ctx context.Context, key model.Key) error) []KeyResult {
	if limit < 1 {
		limit = 1
	}

	results := make([]KeyResult, len(keys))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, key := range keys {
		wg.Add(1)
		go func(i int, key model.Key) {
			defer wg.Done()
			results[i].Key = key

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i].Err = ctx.Err()
				return
			}

			results[i].Err = fn(ctx, key)
		}(i, key)
	}

	wg.Wait()
	return results
}
