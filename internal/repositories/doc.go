// Package repositories implements SQLite persistence for acquisition run history.
//
// [RunRepository] stores one row per run in runs and the per-track resolution outcome in
// run_tracks. Rows are soft deleted via deleted_at and excluded from queries by default.
//
// Sequence numbers provide stable, human-readable ordering (run #42) independent of UUIDs and
// timestamps. [NextSequence] atomically increments per-table counters in dedicated sequence tables.
package repositories
