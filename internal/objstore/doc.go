// Package objstore abstracts the object store holding partitioned columnar
// files.
//
// Keys are slash-separated paths ("raw/2024/AAPL.parquet"). Absence of a key
// is a valid state reported as ErrNotExist, never a plain error: a missing
// partition means first-time ingestion for that (year, instrument).
//
// Backends:
//   - Mem: in-process map, used by tests and dry runs
//   - FS: local filesystem with atomic writes
//   - S3: any S3-compatible endpoint via minio-go
package objstore
