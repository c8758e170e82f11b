// Package server exposes the snapshot over HTTP.
//
// Routes:
//   - GET /api/cryptos: one filtered, sorted page of the current snapshot
//   - GET /ws: websocket push of every new snapshot, starting with the current one
//   - GET /health: snapshot age, scheduler state and subscriber count
//   - GET /metrics: Prometheus exposition, when enabled
//   - POST /api/refresh: out-of-band sweep, when enabled
package server
