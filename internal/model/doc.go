// Package model defines the data types shared across the coinfeed service.
//
// Conventions:
//   - Numeric quotes: model.Quantity (arbitrary precision decimal with an
//     explicit missing state, never coerced to zero)
//   - Timestamps: time.Time in UTC, rendered as ISO 8601 with milliseconds
//   - IDs: model.AssetID, preserving whether upstream sent a number or string
package model
