// Package query filters, sorts and paginates a listings snapshot.
//
// The engine is stateless: each call reads one snapshot reference and builds
// its result from scratch, so any number of queries can run concurrently
// against the same snapshot. Invalid parameters are normalized to defaults
// instead of being rejected.
package query
