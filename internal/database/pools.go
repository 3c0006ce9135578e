package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkofler/tickpoll/internal/config"
)

// Pools holds one connection pool per named database target.
type Pools struct {
	pools map[string]*pgxpool.Pool
}

// NewPools creates connection pools for every configured target.
func NewPools(ctx context.Context, targets map[string]config.DBConfig) (*Pools, error) {
	p := &Pools{pools: make(map[string]*pgxpool.Pool, len(targets))}

	for name, cfg := range targets {
		pool, err := Connect(ctx, cfg)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("connect target %q: %w", name, err)
		}
		p.pools[name] = pool
	}

	return p, nil
}

// Connect creates a single connection pool.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Get returns the pool for a named target.
func (p *Pools) Get(target string) (*pgxpool.Pool, error) {
	pool, ok := p.pools[target]
	if !ok {
		return nil, fmt.Errorf("unknown database target %q", target)
	}
	return pool, nil
}

// Close closes every pool.
func (p *Pools) Close() {
	for _, pool := range p.pools {
		pool.Close()
	}
}

// Ping verifies every target is healthy.
func (p *Pools) Ping(ctx context.Context) error {
	for name, pool := range p.pools {
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping target %q: %w", name, err)
		}
	}
	return nil
}
