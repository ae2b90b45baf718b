// Package bridge forwards local ledger deltas to the remote ledger and
// writes the server's absolute totals back.
//
// STATE MACHINE:
//
//	Idle ──event──▶ Syncing ──response──▶ Applying ──▶ Syncing | Idle
//
// Idle means no request is in flight. Syncing means at least one modify
// (or pull) request is outstanding. Applying is entered only while
// ledger.ApplyRemote runs; the ledger's own XPChanged/CoinsChanged events
// raised by that overwrite arrive while the bridge is Applying and are
// dropped, so an overwrite never produces another request.
//
// Requests carry deltas, never absolute values. Each event sends exactly
// one field (xpDelta or coinsDelta). Responses carry absolute totals and
// the server wins.
//
// THREADING:
//
// The bridge's handlers and every response run on the timeline loop.
// Remote calls run on their own goroutine and post their result back to
// the loop. Calls are queued and sent one at a time, so responses arrive
// in request order and a stale total never overwrites a newer one.
// Wait and Stats are safe from any goroutine.
package bridge
