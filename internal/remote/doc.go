// Package remote is the HTTP client for the remote ledger server.
//
// Non-2xx responses become *APIError carrying the status and the server's
// {error} message; 401s additionally match ErrUnauthorized. Transport
// errors are wrapped as "network error". GET /user and modify requests
// that carry a request id retry 5xx, 429 and network failures with
// exponential backoff; 4xx responses fail immediately.
package remote
