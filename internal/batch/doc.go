// Package batch accumulates generated insert statements per exchange
// and drains them to storage under a per-exchange flush mutex.
package batch
