// Package store provides a SQLite-backed semantic cache for pinned imports.
//
// The cache is an append-mostly table of canonical encodings keyed by their
// semantic hash. It implements imports.Cache, so a Resolver can share it
// across processes: once an import pinned to a hash has been fetched and
// verified, later runs read the bytes from disk instead of the network.
//
// # Critical Patterns
//
// Content addressing
//   - The primary key is the hex SHA-256 of the stored bytes
//   - Put is idempotent: ON CONFLICT(hash) DO NOTHING
//   - Readers re-hash what they read; Verify reports entries that fail
//
// Logical time
//   - Entries are ordered by seq INTEGER (insertion order), never timestamps
//   - Listings use ORDER BY seq ASC, hash ASC COLLATE BINARY
//   - Prune keeps the newest entries by seq
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
