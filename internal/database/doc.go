// Package database provides connection pool management for the named
// PostgreSQL targets that instrument groups write to.
//
// Each group's rows land in a per-instrument table named
// "{canonical_name}table" with columns ONNN (day), ATTT (instant) and
// PRIC (price); that shape is relied on by downstream consumers and
// must not change.
package database
