// Package database provides connection pool management for PostgreSQL.
//
// The relational store holds the queryable stock_metrics table plus the
// instruments reference table; all writes go through the incremental loader.
package database
