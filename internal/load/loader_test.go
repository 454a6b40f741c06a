package load

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlenz/stockpipe/internal/model"
	"github.com/mlenz/stockpipe/internal/objstore"
	"github.com/mlenz/stockpipe/internal/partition"
)

// fakeDB applies batches atomically and rejects duplicate (instrument, date)
// pairs, mirroring the real table's primary key.
type fakeDB struct {
	mu      sync.Mutex
	rows    map[string]map[time.Time]model.EnrichedRow
	failFor map[string]bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		rows:    make(map[string]map[time.Time]model.EnrichedRow),
		failFor: make(map[string]bool),
	}
}

func (f *fakeDB) MaxDatePerInstrument(ctx context.Context) (map[string]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]time.Time)
	for instrument, byDate := range f.rows {
		for date := range byDate {
			if max, ok := out[instrument]; !ok || date.After(max) {
				out[instrument] = date
			}
		}
	}
	return out, nil
}

func (f *fakeDB) AppendBatch(ctx context.Context, instrument string, reload time.Time, rows []model.EnrichedRow) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failFor[instrument] {
		return 0, errors.New("connection reset")
	}

	byDate := f.rows[instrument]
	if byDate == nil {
		byDate = make(map[time.Time]model.EnrichedRow)
	}

	// Stage on a copy so a conflict leaves nothing half-applied.
	staged := make(map[time.Time]model.EnrichedRow, len(byDate))
	for d, r := range byDate {
		staged[d] = r
	}
	if !reload.IsZero() {
		delete(staged, reload)
	}
	for _, r := range rows {
		day := model.Day(r.Date)
		if _, exists := staged[day]; exists {
			return 0, fmt.Errorf("duplicate key (%s, %s)", instrument, day.Format("2006-01-02"))
		}
		staged[day] = r
	}

	f.rows[instrument] = staged
	return int64(len(rows)), nil
}

func (f *fakeDB) count(instrument string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows[instrument])
}

func (f *fakeDB) get(instrument string, date time.Time) (model.EnrichedRow, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[instrument][date]
	return r, ok
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func enrichedRow(instrument string, date time.Time, close float64) model.EnrichedRow {
	ret := 1.0
	vol := 0.5
	return model.EnrichedRow{
		PriceRow: model.PriceRow{
			Instrument: instrument,
			Date:       date,
			Open:       close, High: close, Low: close, Close: close,
			Volume:   1000,
			IngestTS: date.Add(18 * time.Hour),
		},
		DailyReturn: &ret,
		RollingVol:  &vol,
	}
}

func newLoader(db DB, store *partition.Store, today time.Time) *Loader {
	l := New(Config{Concurrency: 4}, db, store, nil)
	l.now = func() time.Time { return today }
	return l
}

func TestLoaderLoadsAllWithoutHighWaterMark(t *testing.T) {
	ctx := context.Background()
	store := partition.NewStore(objstore.NewMem())
	db := newFakeDB()
	key := model.Key{Instrument: "AAPL", Year: 2024}

	require.NoError(t, store.WriteEnriched(ctx, key, []model.EnrichedRow{
		enrichedRow("AAPL", day(2024, 1, 2), 100),
		enrichedRow("AAPL", day(2024, 1, 3), 110),
	}))

	l := newLoader(db, store, day(2024, 6, 1))
	report, err := l.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, db.count("AAPL"))
}

func TestLoaderFiltersBelowHighWaterMark(t *testing.T) {
	ctx := context.Background()
	store := partition.NewStore(objstore.NewMem())
	db := newFakeDB()
	key := model.Key{Instrument: "AAPL", Year: 2024}

	// Jan 2 already loaded.
	_, err := db.AppendBatch(ctx, "AAPL", time.Time{}, []model.EnrichedRow{
		enrichedRow("AAPL", day(2024, 1, 2), 100),
	})
	require.NoError(t, err)

	require.NoError(t, store.WriteEnriched(ctx, key, []model.EnrichedRow{
		enrichedRow("AAPL", day(2024, 1, 2), 100),
		enrichedRow("AAPL", day(2024, 1, 3), 110),
	}))

	l := newLoader(db, store, day(2024, 6, 1))
	_, err = l.Run(ctx, "run-1")
	require.NoError(t, err)

	// Only Jan 3 is new; re-appending Jan 2 would have hit the duplicate key.
	assert.Equal(t, 2, db.count("AAPL"))
}

func TestLoaderIdempotentRerun(t *testing.T) {
	ctx := context.Background()
	store := partition.NewStore(objstore.NewMem())
	db := newFakeDB()
	key := model.Key{Instrument: "AAPL", Year: 2024}

	require.NoError(t, store.WriteEnriched(ctx, key, []model.EnrichedRow{
		enrichedRow("AAPL", day(2024, 1, 2), 100),
		enrichedRow("AAPL", day(2024, 1, 3), 110),
	}))

	l := newLoader(db, store, day(2024, 6, 1))
	_, err := l.Run(ctx, "run-1")
	require.NoError(t, err)
	_, err = l.Run(ctx, "run-2")
	require.NoError(t, err)

	assert.Equal(t, 2, db.count("AAPL"), "second run with no new data changes nothing")
}

func TestLoaderReplacesProvisionalDay(t *testing.T) {
	ctx := context.Background()
	store := partition.NewStore(objstore.NewMem())
	db := newFakeDB()
	today := day(2024, 1, 3)
	key := model.Key{Instrument: "AAPL", Year: 2024}

	// Morning run loaded a provisional close for today.
	_, err := db.AppendBatch(ctx, "AAPL", time.Time{}, []model.EnrichedRow{
		enrichedRow("AAPL", day(2024, 1, 2), 100),
		enrichedRow("AAPL", today, 105),
	})
	require.NoError(t, err)

	// Evening fetch revised today's close to 111.
	require.NoError(t, store.WriteEnriched(ctx, key, []model.EnrichedRow{
		enrichedRow("AAPL", day(2024, 1, 2), 100),
		enrichedRow("AAPL", today, 111),
	}))

	l := newLoader(db, store, today)
	_, err = l.Run(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, 2, db.count("AAPL"), "exactly one row per date")
	got, ok := db.get("AAPL", today)
	require.True(t, ok)
	assert.Equal(t, 111.0, got.Close, "revised close supersedes the provisional one")
}

func TestLoaderIsolatesFailedBatch(t *testing.T) {
	ctx := context.Background()
	store := partition.NewStore(objstore.NewMem())
	db := newFakeDB()
	db.failFor["MSFT"] = true

	require.NoError(t, store.WriteEnriched(ctx,
		model.Key{Instrument: "AAPL", Year: 2024},
		[]model.EnrichedRow{enrichedRow("AAPL", day(2024, 1, 2), 100)}))
	require.NoError(t, store.WriteEnriched(ctx,
		model.Key{Instrument: "MSFT", Year: 2024},
		[]model.EnrichedRow{enrichedRow("MSFT", day(2024, 1, 2), 370)}))

	l := newLoader(db, store, day(2024, 6, 1))
	report, err := l.Run(ctx, "run-1")
	require.NoError(t, err, "partial failure is not a stage failure")
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	assert.Equal(t, 1, db.count("AAPL"))
	assert.Equal(t, 0, db.count("MSFT"), "failed batch commits nothing")
}

func TestLoaderEmptyStoreIsNoOp(t *testing.T) {
	store := partition.NewStore(objstore.NewMem())
	l := newLoader(newFakeDB(), store, day(2024, 6, 1))

	report, err := l.Run(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Empty(t, report.Keys)
}
