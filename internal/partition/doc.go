// Package partition reads and writes (year, instrument) partitions as
// parquet objects.
//
// Key layout: "<domain>/<year>/<instrument>.parquet" where domain is "raw"
// (as-fetched OHLCV rows) or "enriched" (rows plus derived metrics).
//
// Invariants enforced here:
//   - every row in a partition carries the partition's instrument and year
//   - (instrument, date) is unique within a partition
//
// Timestamps are stored as int64 microseconds since the Unix epoch.
package partition
