// Package transform computes derived per-instrument metrics over raw
// partitions and publishes enriched partitions.
//
// Metrics are computed strictly within one instrument's series in date
// order: daily percentage returns and the rolling sample standard deviation
// of those returns. Enriched output keeps the raw partition's row count and
// key set and only ships after the quality gate passes.
package transform
