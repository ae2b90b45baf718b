// Package kv provides the durable client-side storage the local ledger
// persists into.
//
// The contract is a plain string key/value store: Get returns ok=false for
// missing keys, Set overwrites. Callers treat every error as non-fatal.
//
// # Backends
//
//   - SQLite (default): single-file database, WAL mode, one connection.
//   - Badger: embedded LSM store, one directory.
//   - Memory: process-local map, used by tests and dry runs.
package kv
