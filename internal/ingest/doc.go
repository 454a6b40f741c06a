// Package ingest implements the merge engine: it determines the missing
// date range, fetches raw rows, and reconciles them into (year, instrument)
// partitions.
//
// The merge is two-phase with a full barrier in between: all reads and
// merges for a batch complete before any write begins, so a half-written
// batch is never visible. Within a partition the merge is structural: rows
// live in a map keyed by (instrument, date), newly fetched rows overwrite
// existing ones on key collision (a trading day fetched before market close
// is provisional and must be superseded by a later re-fetch).
package ingest
