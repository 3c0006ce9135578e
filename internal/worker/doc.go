// Package worker implements the per-instrument-group polling loop.
//
// A worker:
//   - Fetches quotes for its group's symbols each iteration
//   - Seeds per-symbol state from historical extremes on first sight
//   - Emits an insert row for every price change
//   - Backs off 5s/10s/30s/60s on stalled data, then stops
//   - Hands its exchange's pending batch to the flusher periodically
//     and on shutdown
package worker
