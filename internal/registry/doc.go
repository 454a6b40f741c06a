// Package registry provides the canonical instrument list.
//
// The list itself is maintained by an external collaborator; the pipeline
// treats it as read-only input. Two sources exist: a static list from config
// and the instruments table in Postgres. Sync pushes static entries into the
// table so the dashboard can join names and sectors.
package registry
