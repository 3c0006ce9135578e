// Package feed implements the quote-fetch boundary consumed by poll
// workers.
//
// Two adapters exist: provider A is a REST JSON feed queried on demand,
// provider B is a websocket stream cached locally so fetches stay
// non-blocking. Both satisfy the same Source interface.
package feed
