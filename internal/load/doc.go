// Package load moves enriched partition rows into the relational metrics
// table incrementally. It queries the table's high-water mark per
// instrument, filters each enriched partition down to genuinely new rows,
// and appends them in per-partition transactions. The run date's rows are
// replaced (delete then append, atomically) so a revised price for the most
// recent, possibly provisional, trading day supersedes the earlier one.
package load
