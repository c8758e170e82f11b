// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Sweep outcomes and durations
//   - Current snapshot size and age
//   - Records dropped during normalization
//   - Push subscriber count and superseded/failed pushes
//   - Query counts and latencies
package metrics
