// Package app wires the client side together: durable storage, the local
// ledger, the timeline loop, the sync bridge and the remote client.
//
// An App owns one timeline goroutine. Every exported method that touches
// the ledger posts its work to that goroutine and blocks until it has run,
// so callers on any goroutine see a consistent, serialized ledger. Remote
// calls started by the bridge complete asynchronously; use Wait (or Sync)
// to block until they have been applied.
package app
