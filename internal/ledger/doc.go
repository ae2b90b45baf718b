// Package ledger implements the client-side record of xp, coins, task
// completion and owned items.
//
// The ledger is the authoritative copy until the server confirms. Every
// mutation persists the full state to a kv.Store and then notifies
// subscribers with a typed Event. Subscribers observe side effects only
// through events; they never poll.
//
// OWNERSHIP:
//
// A Ledger is not safe for concurrent use. It is owned by exactly one
// timeline goroutine (see internal/timeline), which runs every mutation
// and every subscriber callback in order. Handlers may call back into the
// ledger; nested events are delivered synchronously, depth first.
//
// INVARIANTS:
//   - coins >= 0. SpendCoins and BuyItem reject rather than clamp.
//   - A task's reward is granted once per pending→completed transition.
//     Reverting to pending never revokes it.
//   - Events fire after the state is persisted (or the persist failed and
//     was logged).
package ledger
