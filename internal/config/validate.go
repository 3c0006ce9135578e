package config

import (
	"errors"
	"fmt"

	"github.com/mkofler/tickpoll/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if len(c.Exchanges) == 0 {
		return errors.New("at least one exchange is required")
	}
	if len(c.Groups) == 0 {
		return errors.New("at least one instrument group is required")
	}
	if len(c.Databases) == 0 {
		return errors.New("at least one database target is required")
	}

	for name, db := range c.Databases {
		if err := db.validate("databases." + name); err != nil {
			return err
		}
	}

	exchanges := make(map[string]bool, len(c.Exchanges))
	for i, e := range c.Exchanges {
		if e.ID == "" {
			return fmt.Errorf("exchanges[%d].id is required", i)
		}
		if e.Open == e.Close {
			return fmt.Errorf("exchange %q has a zero-length window", e.ID)
		}
		exchanges[e.ID] = true
	}

	for i, g := range c.Groups {
		if g.Alias == "" {
			return fmt.Errorf("groups[%d].alias is required", i)
		}
		if _, err := model.ParseProvider(g.Provider); err != nil {
			return fmt.Errorf("groups[%d]: %w", i, err)
		}
		if !exchanges[g.Exchange] {
			return fmt.Errorf("group %q references unknown exchange %q", g.Alias, g.Exchange)
		}
		if _, ok := c.Databases[g.Database]; !ok {
			return fmt.Errorf("group %q references unknown database %q", g.Alias, g.Database)
		}
		if len(g.Symbols) == 0 {
			return fmt.Errorf("group %q has no symbols", g.Alias)
		}
		if model.ResolveCanonical(g.Alias, c.Aliases) == "" {
			return fmt.Errorf("group %q resolves to an empty canonical name", g.Alias)
		}
	}

	if c.Engine.FlushEvery < 1 {
		return errors.New("engine.flush_every must be >= 1")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
