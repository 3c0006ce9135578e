// Package model defines shared data types used across the polling engine.
//
// Conventions:
//   - Prices: float64 as delivered by the feeds, rounded to 2 decimals
//     only at SQL generation time
//   - Times of day: minutes since midnight, local wall clock
//   - Identifiers embedded in SQL are letter-only (SanitizeIdentifier)
package model
