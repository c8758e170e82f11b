// Package poller implements the listings scheduler.
//
// The Poller:
//   - Sweeps the upstream listings feed once at start, then on a fixed interval
//   - Runs at most one sweep at a time; overlapping triggers are dropped
//   - Publishes each successful sweep to the cache and notifies subscribers
//   - Leaves the previous snapshot in place when a sweep fails or is abandoned
package poller
