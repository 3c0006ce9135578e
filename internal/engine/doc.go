// Package engine implements the outer scheduling cycle.
//
// The scheduler never blocks on worker completion: workers wind down
// on their own when their exchange stops producing data, and any still
// running at the next cycle boundary are canceled before the fresh
// dispatch round.
package engine
