// Package store archives finished runs: configurations and counter
// snapshots, addressed by a path key and a validity interval.
//
// An Entry is an opaque payload plus:
//   - Path: the object kind, e.g. "CTP/Config/Config"
//   - ValidFrom/ValidUntil: validity interval in ms since the Unix epoch
//   - Metadata: free-form string pairs; "runNumber" is indexed
//
// Lookups follow the conditions-database convention: Latest(path, t)
// returns the most recently written entry whose interval contains t.
//
// Two backends implement Archive:
//   - SQLiteArchive: a single SQLite file (WAL mode, schema migrations)
//   - S3Archive: an S3-compatible bucket via MinIO, one object per entry
//
// Entry IDs are UUIDv7, so they sort by write time on both backends.
package store
