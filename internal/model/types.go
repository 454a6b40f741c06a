package model

import (
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Row Types
// -----------------------------------------------------------------------------

// PriceRow is one daily OHLCV observation for one instrument.
//
// Unique key: (Instrument, Date). A later ingestion run may replace the row
// for the same key (re-fetch of a still-open trading day) but a partition
// never holds two rows with the same key.
type PriceRow struct {
	Instrument string    // Instrument identifier (e.g., "AAPL")
	Date       time.Time // Trading day, UTC midnight
	Open       float64   // Opening price
	High       float64   // Session high
	Low        float64   // Session low
	Close      float64   // Closing price (provisional before market close)
	Volume     int64     // Shares traded
	IngestTS   time.Time // When the pipeline fetched this row
}

// Key returns the row's unique key.
func (r PriceRow) Key() RowKey {
	return RowKey{Instrument: r.Instrument, Date: r.Date}
}

// PartitionKey returns the (year, instrument) partition the row belongs to.
func (r PriceRow) PartitionKey() Key {
	return Key{Instrument: r.Instrument, Year: r.Date.Year()}
}

// EnrichedRow is a PriceRow plus derived per-instrument metrics.
type EnrichedRow struct {
	PriceRow

	// DailyReturn is the close-over-close percentage return (x100).
	// Nil for the instrument's first observed date (no prior close).
	DailyReturn *float64

	// RollingVol is the sample standard deviation of DailyReturn over the
	// trailing window, computed per instrument in date order. Degenerate
	// windows (fewer than two samples) yield 0, not null.
	RollingVol *float64
}

// -----------------------------------------------------------------------------
// Keys
// -----------------------------------------------------------------------------

// RowKey uniquely identifies a row within the pipeline.
type RowKey struct {
	Instrument string
	Date       time.Time
}

// Key identifies one (year, instrument) partition.
type Key struct {
	Instrument string
	Year       int
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s", k.Year, k.Instrument)
}

// -----------------------------------------------------------------------------
// Instruments
// -----------------------------------------------------------------------------

// Instrument is one entry of the reference registry. The pipeline consumes
// only the ID; Name and Sector are carried through to the relational store
// for the dashboard's benefit.
type Instrument struct {
	ID     string // Canonical identifier (e.g., "MSFT")
	Name   string // Display name
	Sector string // GICS-style sector label
}

// Day truncates t to UTC midnight. All Date fields pass through this.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
