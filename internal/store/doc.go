// Package store provides the SQLite-backed durable store for an inkwell library.
//
// It is the only component that touches durable storage. Every other component
// keeps a private cache that it rebuilds from here.
//
// # Schema evolution
//
// The schema is an ordered list of migrations. Open applies, in order, every
// migration whose version is above PRAGMA user_version, each in its own
// transaction. Migrations are additive only (new tables and indices). A database
// stamped with a version newer than this binary knows is refused rather than
// silently downgraded.
//
// # Writes
//
// All writes go through a single connection and an in-process mutex, so
// read-modify-write sequences (writing-log upserts, dense renumbering, cascade
// deletes) are race-free within the process. Multi-row writes run in one
// transaction and are all-or-nothing.
//
// # Database Configuration
//
//   - WAL mode: readers never block the writer
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: child rows must reference an existing book
package store
