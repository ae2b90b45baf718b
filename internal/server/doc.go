// Package server exposes the remote ledger over HTTP.
//
// Routes:
//
//	POST /register      {username, email?, password} → {ok, id}
//	POST /login         {username, password}         → {ok, token}
//	POST /logout        bearer                       → {ok}
//	GET  /user          bearer                       → {user}
//	POST /user/modify   bearer {xpDelta?, coinsDelta?, requestId?} → {ok, user}
//	GET  /health
//	GET  /metrics       Prometheus exposition
//
// Errors are always {"error": "..."} with 400 (validation), 401 (auth),
// 404 (user gone), 409 (username taken), 429 (login throttled) or 500.
//
// Modify responses carry absolute totals; the client overwrites its local
// values with them. All arithmetic and the level recompute happen in the
// store's transaction.
package server
