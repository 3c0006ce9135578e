package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mkofler/tickpoll/internal/model"
)

// Store executes generated SQL against named database targets.
type Store struct {
	pools  *Pools
	logger *slog.Logger
}

// NewStore creates a Store over a set of pools.
func NewStore(pools *Pools, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pools: pools, logger: logger}
}

// ExecuteBatch runs a batch of semicolon-terminated statements against
// one target. Statements are queued into a single pgx batch so the
// round trip count stays constant regardless of batch size.
func (s *Store) ExecuteBatch(ctx context.Context, target string, statements string) error {
	stmts := splitStatements(statements)
	if len(stmts) == 0 {
		return nil
	}

	pool, err := s.pools.Get(target)
	if err != nil {
		return err
	}

	start := time.Now()

	batch := &pgx.Batch{}
	for _, stmt := range stmts {
		batch.Queue(stmt)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	for range stmts {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("execute batch on %q: %w", target, err)
		}
	}

	s.logger.Debug("batch executed",
		"target", target,
		"statements", len(stmts),
		"duration", time.Since(start),
	)
	return nil
}

// HighLow returns the historical price extremes for a canonical name.
// An empty table yields the NoHistory sentinels, not an error.
func (s *Store) HighLow(ctx context.Context, target, canonicalName string) (high, low float64, err error) {
	pool, err := s.pools.Get(target)
	if err != nil {
		return 0, 0, err
	}

	query := fmt.Sprintf("SELECT MAX(PRIC), MIN(PRIC) FROM %stable", model.SanitizeIdentifier(canonicalName))

	var maxPrice, minPrice *float64
	if err := pool.QueryRow(ctx, query).Scan(&maxPrice, &minPrice); err != nil {
		return 0, 0, fmt.Errorf("query high/low for %q: %w", canonicalName, err)
	}

	high, low = model.NoHistory()
	if maxPrice != nil {
		high = *maxPrice
	}
	if minPrice != nil {
		low = *minPrice
	}
	return high, low, nil
}

// EnsureTable creates the per-instrument table if it does not exist.
func (s *Store) EnsureTable(ctx context.Context, target, canonicalName string) error {
	pool, err := s.pools.Get(target)
	if err != nil {
		return err
	}

	name := model.SanitizeIdentifier(canonicalName)
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %stable (
		ONNN text NOT NULL,
		ATTT text NOT NULL,
		PRIC numeric NOT NULL
	)`, name)

	if _, err := pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure table for %q: %w", canonicalName, err)
	}

	s.logger.Debug("table ensured", "target", target, "table", name+"table")
	return nil
}

// splitStatements breaks a serialized batch into individual statements.
func splitStatements(batch string) []string {
	parts := strings.Split(batch, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
