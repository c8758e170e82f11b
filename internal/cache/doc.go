// Package cache holds the currently published listings snapshot.
//
// The cache owns exactly one reference. Publish replaces it with an atomic
// swap; Read loads it. Neither side takes a lock, so queries never wait for a
// sweep and a sweep never waits for queries.
package cache
