package load

import (
	"context"
	"time"

	"github.com/mlenz/stockpipe/internal/model"
)

// DB is the narrow relational-store surface the loader needs. The pgx
// implementation lives in this package; tests substitute an in-memory fake.
type DB interface {
	// MaxDatePerInstrument returns the newest stored date for every
	// instrument present in the metrics table. An instrument absent from
	// the map has no rows yet.
	MaxDatePerInstrument(ctx context.Context) (map[string]time.Time, error)

	// AppendBatch appends rows for one instrument in a single transaction.
	// If reload is non-zero, the instrument's existing rows on that date
	// are deleted first, inside the same transaction: both the delete and
	// the append happen, or neither does. Returns the number of rows
	// appended.
	AppendBatch(ctx context.Context, instrument string, reload time.Time, rows []model.EnrichedRow) (int64, error)
}
