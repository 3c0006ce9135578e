package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultDBPort        = 5432
	DefaultDBSSLMode     = "prefer"
	DefaultMaxConns      = 10
	DefaultMinConns      = 2
	DefaultRedisTTL      = 15 * time.Minute
	DefaultFeedTimeout   = 10 * time.Second
	DefaultMaxRetries    = 3
	DefaultCycleInterval = 6 * time.Hour
	DefaultFlushEvery    = 50
	DefaultJitterMax     = 2 * time.Second
	DefaultFetchTimeout  = 10 * time.Second
	DefaultHealthPort    = 8080
	DefaultHealthPath    = "/health"
)

func (c *Config) applyDefaults() {
	for name, db := range c.Databases {
		applyDBDefaults(&db)
		c.Databases[name] = db
	}

	if c.Redis.TTL == 0 {
		c.Redis.TTL = Duration(DefaultRedisTTL)
	}

	if c.Feed.Timeout == 0 {
		c.Feed.Timeout = Duration(DefaultFeedTimeout)
	}
	if c.Feed.MaxRetries == 0 {
		c.Feed.MaxRetries = DefaultMaxRetries
	}

	if c.Engine.CycleInterval == 0 {
		c.Engine.CycleInterval = Duration(DefaultCycleInterval)
	}
	if c.Engine.FlushEvery == 0 {
		c.Engine.FlushEvery = DefaultFlushEvery
	}
	if c.Engine.JitterMax == 0 {
		c.Engine.JitterMax = Duration(DefaultJitterMax)
	}
	if c.Engine.FetchTimeout == 0 {
		c.Engine.FetchTimeout = Duration(DefaultFetchTimeout)
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
