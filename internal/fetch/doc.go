// Package fetch retrieves raw daily price rows from the upstream data
// provider.
//
// The pipeline depends only on the Fetcher contract: instrument set plus
// date range in, rows (possibly none) out. Client talks to an HTTP JSON
// endpoint with bounded retries; Calendar decides whether a candidate range
// contains any trading day at all.
package fetch
