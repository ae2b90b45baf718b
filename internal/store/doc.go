// Package store provides SQLite-backed durable storage for the remote
// ledger: users, bearer sessions and applied modify requests.
//
// # Critical Patterns
//
// Level is derived, never trusted:
//   - Every Modify recomputes level with reward.LevelForXP inside the same
//     transaction that changes xp, so the server and client formulas agree.
//
// Request-level idempotency:
//   - PRIMARY KEY(user_id, request_id) on modifications
//   - A replayed request id returns current totals without re-applying
//
// Coins never go negative:
//   - coins = MAX(0, coins + delta); the CHECK constraint backs it up
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - One open connection: modifies are serialized per database
package store
