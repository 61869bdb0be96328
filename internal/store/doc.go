// Package store provides SQLite-backed storage for observed system events.
//
// The store is the chronological event log the correlation engine queries
// when it looks for companion events around a principal:
//   - Events: one row per observed event, keyed by an autoincrement seq
//   - Consumptions: (seq, result_id) marks written back after a freeze
//     report was composed, so a later principal cannot claim the same
//     record for the same result again
//
// # Query Ordering
//
// Window queries return rows ORDER BY ts ASC, seq ASC so identical inputs
// always yield identical candidate lists.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Consumptions must reference a stored event
package store
