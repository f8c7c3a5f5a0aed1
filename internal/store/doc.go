// Package store provides SQLite-backed durable storage for the change-source
// ownership ledger.
//
// The store holds two tables:
//   - changesources: one identity row per distinct name
//   - changesource_masters: at most one ownership row per change source
//
// # Critical Patterns
//
// Exclusive ownership:
//   - changesource_masters.changesource_id is the PRIMARY KEY
//   - Claims are a single INSERT ... ON CONFLICT DO NOTHING; zero affected
//     rows means another master already owns the source
//   - No in-process lock participates; separate master processes each open
//     their own Store on the same database file
//
// Stable identities:
//   - changesources.id is AUTOINCREMENT, so ids are never reused
//   - Lookup pre-filters on name_fingerprint, then compares the exact name
//   - name is UNIQUE; racing creators converge on one row
//
// Deterministic listings:
//   - All directory queries ORDER BY id ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Claims against unknown ids fail with NOT_FOUND
//   - _txlock=immediate: Transactions take the write lock up front
package store
