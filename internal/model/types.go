package model

import (
	"fmt"
	"math"
	"strings"
)

// Provider identifies which quote feed adapter serves an instrument group.
type Provider string

const (
	// ProviderRest is the HTTP JSON quote feed (code "A").
	ProviderRest Provider = "A"

	// ProviderStream is the websocket streaming feed (code "B").
	ProviderStream Provider = "B"
)

// ParseProvider maps a configuration value to a Provider.
// Accepts both the short codes and the transport names.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "rest", "http":
		return ProviderRest, nil
	case "b", "stream", "ws":
		return ProviderStream, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
// Values at or above 24h are valid and represent a time in the following
// day; they arise when a trading window spans midnight.
type TimeOfDay int

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// AddDay returns the same clock time one day later.
func (t TimeOfDay) AddDay() TimeOfDay {
	return t + 24*60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60%24, int(t)%60)
}

// UnmarshalYAML accepts "HH:MM" strings in configuration files.
func (t *TimeOfDay) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarketWindow is the local-time interval during which an exchange is open.
type MarketWindow struct {
	ExchangeID string    // Exchange identifier (e.g., "NYSE")
	Open       TimeOfDay // Session open, local time
	Close      TimeOfDay // Session close, local time; may be numerically before Open for overnight sessions
}

// InstrumentGroup is a cluster of symbols polled together by one worker.
type InstrumentGroup struct {
	Provider       Provider // Which feed adapter serves this group
	DisplayAlias   string   // Name as it appears in configuration
	CanonicalName  string   // Resolved name, letters only, used in SQL identifiers
	ExchangeID     string   // Exchange whose window gates polling
	DatabaseTarget string   // Named database this group's rows are written to
	Symbols        []string // Ticker symbols fetched each iteration
}

// QuoteSample is a single observation from a quote feed. Ephemeral: it is
// only ever compared against cached SymbolState, never stored as-is.
type QuoteSample struct {
	Symbol  string  `json:"symbol"`  // Ticker symbol as reported by the feed
	Day     string  `json:"day"`     // Trading day (feed-native format, e.g. "2024-01-01")
	Instant string  `json:"instant"` // Intra-day timestamp (feed-native format, e.g. "10:00:05")
	Price   float64 `json:"price"`   // Last traded price
}

// SymbolState is the per-symbol cache owned by exactly one poll worker.
// Created on first sight of a symbol within a cycle, discarded when the
// cycle ends.
type SymbolState struct {
	Day       string
	Instant   string
	LastPrice float64
	High      float64
	Low       float64
}

// NewSymbolState seeds state from historical extremes and a first sample.
// Callers with no history pass the sentinels from NoHistory; the first
// sample then sets both extremes.
func NewSymbolState(sample QuoteSample, high, low float64) *SymbolState {
	return &SymbolState{
		Day:       sample.Day,
		Instant:   sample.Instant,
		LastPrice: sample.Price,
		High:      math.Max(high, sample.Price),
		Low:       math.Min(low, sample.Price),
	}
}

// NoHistory returns the sentinel extremes used when a symbol has no prior
// rows: -Inf high and +Inf low, so the first real sample sets both.
func NoHistory() (high, low float64) {
	return math.Inf(-1), math.Inf(1)
}

// SanitizeIdentifier strips everything but letters from a name so it can
// be embedded in a generated SQL identifier.
func SanitizeIdentifier(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResolveCanonical looks a display alias up in the alias table and
// sanitizes the result. An alias with no table entry resolves to itself.
func ResolveCanonical(alias string, table map[string]string) string {
	name, ok := table[alias]
	if !ok {
		name = alias
	}
	return SanitizeIdentifier(name)
}
