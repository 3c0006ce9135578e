// Package history seeds per-symbol state with historical price extremes.
//
// Lookups go through an optional Redis TTL cache and are deduplicated
// with singleflight, since every worker on an exchange seeds its symbols
// at roughly the same moment after a cycle starts.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/mkofler/tickpoll/internal/model"
)

// Store answers historical high/low queries from persistent storage.
type Store interface {
	HighLow(ctx context.Context, target, canonicalName string) (high, low float64, err error)
}

type extremes struct {
	high, low float64
}

// Lookup resolves historical extremes for seeding symbol state.
type Lookup struct {
	store  Store
	cache  *redis.Client // nil disables caching
	ttl    time.Duration
	sf     singleflight.Group
	logger *slog.Logger
}

// NewLookup creates a Lookup. Pass a nil cache to go straight to SQL.
func NewLookup(store Store, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Lookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lookup{store: store, cache: cache, ttl: ttl, logger: logger}
}

// GetHighLow returns the historical extremes for a canonical name.
// Never fails: missing history and lookup errors both yield the
// sentinels (-Inf high, +Inf low) so the first real sample sets both.
func (l *Lookup) GetHighLow(ctx context.Context, canonicalName, target string) (high, low float64) {
	key := fmt.Sprintf("highlow:%s:%s", target, canonicalName)

	v, err, _ := l.sf.Do(key, func() (any, error) {
		if ext, ok := l.cacheGet(ctx, key); ok {
			return ext, nil
		}

		h, lo, err := l.store.HighLow(ctx, target, canonicalName)
		if err != nil {
			return extremes{}, err
		}

		ext := extremes{high: h, low: lo}
		l.cachePut(ctx, key, ext)
		return ext, nil
	})
	if err != nil {
		l.logger.Warn("high/low lookup failed, seeding with sentinels",
			"name", canonicalName,
			"target", target,
			"error", err,
		)
		return model.NoHistory()
	}

	ext := v.(extremes)
	return ext.high, ext.low
}

func (l *Lookup) cacheGet(ctx context.Context, key string) (extremes, bool) {
	if l.cache == nil {
		return extremes{}, false
	}

	raw, err := l.cache.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			l.logger.Debug("high/low cache read failed", "key", key, "error", err)
		}
		return extremes{}, false
	}

	ext, err := parseExtremes(raw)
	if err != nil {
		l.logger.Debug("high/low cache entry malformed", "key", key, "error", err)
		return extremes{}, false
	}
	return ext, true
}

func (l *Lookup) cachePut(ctx context.Context, key string, ext extremes) {
	if l.cache == nil {
		return
	}
	// Sentinel results are not cached: history may appear at any time.
	if math.IsInf(ext.high, 0) || math.IsInf(ext.low, 0) {
		return
	}

	val := formatExtremes(ext)
	if err := l.cache.Set(ctx, key, val, l.ttl).Err(); err != nil {
		l.logger.Debug("high/low cache write failed", "key", key, "error", err)
	}
}

func formatExtremes(ext extremes) string {
	return strconv.FormatFloat(ext.high, 'g', -1, 64) + " " + strconv.FormatFloat(ext.low, 'g', -1, 64)
}

func parseExtremes(raw string) (extremes, error) {
	parts := strings.Fields(raw)
	if len(parts) != 2 {
		return extremes{}, fmt.Errorf("want 2 fields, got %d", len(parts))
	}
	h, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return extremes{}, err
	}
	lo, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return extremes{}, err
	}
	return extremes{high: h, low: lo}, nil
}
