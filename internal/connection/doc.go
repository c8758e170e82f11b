// Package connection implements a subscriber for the coinfeed push channel.
//
// A Client holds one WebSocket connection and decodes each pushed snapshot.
// A Watcher keeps a Client connected:
//   - Reconnects with exponential backoff when the connection drops
//   - Detects stale connections from missing pings
//   - Keeps only the newest updates when the consumer falls behind
package connection
