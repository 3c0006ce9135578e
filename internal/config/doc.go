// Package config loads and validates the engine's YAML configuration:
// named database targets, trading windows, instrument groups, and the
// alias table mapping display names to canonical (SQL-safe) names.
//
// Environment variables in the file are expanded with ${VAR} syntax
// before parsing.
package config
