// Package calendar decides whether a named exchange is currently inside
// its configured trading window.
package calendar

import (
	"fmt"
	"time"

	"github.com/mkofler/tickpoll/internal/model"
)

// Samples taken before this local hour still belong to the previous
// day's overnight session when the window wraps midnight.
const earlyMorningCutoff = model.TimeOfDay(4 * 60)

// Calendar answers open/closed questions from a fixed set of windows.
// Immutable once built; the scheduler constructs a fresh one each cycle.
type Calendar struct {
	windows map[string]model.MarketWindow
}

// New builds a Calendar from a window list. Duplicate exchange IDs keep
// the last definition.
func New(windows []model.MarketWindow) *Calendar {
	m := make(map[string]model.MarketWindow, len(windows))
	for _, w := range windows {
		m[w.ExchangeID] = w
	}
	return &Calendar{windows: m}
}

// Window returns the configured window for an exchange.
func (c *Calendar) Window(exchangeID string) (model.MarketWindow, bool) {
	w, ok := c.windows[exchangeID]
	return w, ok
}

// IsOpen reports whether the exchange is open at the given instant.
// Boundary times count as closed. An unknown exchange is an error so
// the caller can skip just that pair.
func (c *Calendar) IsOpen(exchangeID string, now time.Time) (bool, error) {
	w, ok := c.windows[exchangeID]
	if !ok {
		return false, fmt.Errorf("no trading window configured for exchange %q", exchangeID)
	}
	return openAt(w, model.TimeOfDay(now.Hour()*60+now.Minute())), nil
}

// openAt applies the wraparound rule: a close numerically before the
// open means the session spans midnight, so close shifts to the next
// day, and an observation in the small hours shifts with it.
func openAt(w model.MarketWindow, now model.TimeOfDay) bool {
	open, close := w.Open, w.Close
	if close < open {
		close = close.AddDay()
		if now < earlyMorningCutoff {
			now = now.AddDay()
		}
	}
	return now > open && now < close
}
