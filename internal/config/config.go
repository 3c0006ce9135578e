package config

import (
	"fmt"
	"time"

	"github.com/mkofler/tickpoll/internal/model"
)

// Duration is a time.Duration that unmarshals from strings like "10s"
// or "6h". Bare integers are taken as nanoseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml unmarshaling for duration strings.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", raw, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := unmarshal(&n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

// Config is the root configuration for a polling engine instance.
type Config struct {
	Instance  InstanceConfig      `yaml:"instance"`
	Databases map[string]DBConfig `yaml:"databases"`
	Redis     RedisConfig         `yaml:"redis"`
	Feed      FeedConfig          `yaml:"feed"`
	Engine    EngineConfig        `yaml:"engine"`
	Health    HealthConfig        `yaml:"health"`
	Exchanges []ExchangeConfig    `yaml:"exchanges"`
	Groups    []GroupConfig       `yaml:"groups"`
	Aliases   map[string]string   `yaml:"aliases"`
}

// InstanceConfig identifies this engine instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// DBConfig holds a single named database target.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds the optional high/low seed cache. An empty Addr
// disables the cache and lookups go straight to SQL.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// FeedConfig holds quote feed adapter settings.
type FeedConfig struct {
	RestURL    string   `yaml:"rest_url"`
	WSURL      string   `yaml:"ws_url"`
	APIKey     string   `yaml:"api_key"`
	Timeout    Duration `yaml:"timeout"`
	MaxRetries int      `yaml:"max_retries"`
}

// EngineConfig holds scheduler and worker settings.
type EngineConfig struct {
	CycleInterval Duration `yaml:"cycle_interval"` // Time between dispatch rounds
	FlushEvery    int      `yaml:"flush_every"`    // Worker iterations between batch flushes
	JitterMax     Duration `yaml:"jitter_max"`     // Upper bound of the per-iteration random sleep
	FetchTimeout  Duration `yaml:"fetch_timeout"`  // Deadline applied to each quote fetch
}

// HealthConfig holds the HTTP health endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// ExchangeConfig is one trading window, "HH:MM" local times.
type ExchangeConfig struct {
	ID    string          `yaml:"id"`
	Open  model.TimeOfDay `yaml:"open"`
	Close model.TimeOfDay `yaml:"close"`
}

// GroupConfig is one instrument group definition.
type GroupConfig struct {
	Provider string   `yaml:"provider"` // "A"/"rest" or "B"/"stream"
	Alias    string   `yaml:"alias"`
	Exchange string   `yaml:"exchange"`
	Database string   `yaml:"database"`
	Symbols  []string `yaml:"symbols"`
}

// Windows converts the exchange section to model windows.
func (c *Config) Windows() []model.MarketWindow {
	out := make([]model.MarketWindow, 0, len(c.Exchanges))
	for _, e := range c.Exchanges {
		out = append(out, model.MarketWindow{ExchangeID: e.ID, Open: e.Open, Close: e.Close})
	}
	return out
}

// InstrumentGroups converts the group section to model groups, resolving
// canonical names through the alias table.
func (c *Config) InstrumentGroups() ([]model.InstrumentGroup, error) {
	out := make([]model.InstrumentGroup, 0, len(c.Groups))
	for _, g := range c.Groups {
		provider, err := model.ParseProvider(g.Provider)
		if err != nil {
			return nil, err
		}
		out = append(out, model.InstrumentGroup{
			Provider:       provider,
			DisplayAlias:   g.Alias,
			CanonicalName:  model.ResolveCanonical(g.Alias, c.Aliases),
			ExchangeID:     g.Exchange,
			DatabaseTarget: g.Database,
			Symbols:        g.Symbols,
		})
	}
	return out, nil
}
