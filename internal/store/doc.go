// Package store owns the durable to-do store: a single SQLite file whose
// schema version is tagged with PRAGMA user_version.
//
// Every access goes through a Manager and runs as a task on the manager's
// own serial queue, so at most one operation touches the file at a time.
// The first task on the queue opens the store:
//
//  1. take an exclusive file lock next to the store (<path>.lock)
//  2. migrate the file to the current schema version, or destroy it when it
//     is newer than this build
//  3. open SQLite and create the schema for a fresh store
//
// If that fails, every later operation fails with the same error.
//
// # Database Configuration
//
//   - WAL mode: concurrent readers outside the manager stay consistent
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
//   - one connection: the queue is the only writer
//
// Records map to rows through explicit functions (toRow / scanRecord); no
// reflection is involved.
package store
