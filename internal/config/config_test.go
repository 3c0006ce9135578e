package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mkofler/tickpoll/internal/model"
)

const validYAML = `
instance:
  id: test-poller
databases:
  quotes:
    host: localhost
    name: quotes_db
    user: testuser
    password: testpass
exchanges:
  - id: NYSE
    open: "09:30"
    close: "16:00"
  - id: SYD
    open: "22:00"
    close: "04:00"
groups:
  - provider: A
    alias: acme
    exchange: NYSE
    database: quotes
    symbols: [ABC, DEF]
aliases:
  acme: acme holdings
`

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTempFile(t, validYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-poller" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-poller")
	}
	if cfg.Databases["quotes"].Host != "localhost" {
		t.Errorf("Databases[quotes].Host = %q, want %q", cfg.Databases["quotes"].Host, "localhost")
	}
	if len(cfg.Exchanges) != 2 {
		t.Fatalf("len(Exchanges) = %d, want 2", len(cfg.Exchanges))
	}
	if want := model.TimeOfDay(9*60 + 30); cfg.Exchanges[0].Open != want {
		t.Errorf("Exchanges[0].Open = %v, want %v", cfg.Exchanges[0].Open, want)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	path := writeTempFile(t, strings.Replace(validYAML, "testpass", "${TEST_DB_PASSWORD}", 1))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Databases["quotes"].Password != "secret123" {
		t.Errorf("Databases[quotes].Password = %q, want %q", cfg.Databases["quotes"].Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, validYAML)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Databases["quotes"].Port != DefaultDBPort {
		t.Errorf("Databases[quotes].Port = %d, want %d", cfg.Databases["quotes"].Port, DefaultDBPort)
	}
	if cfg.Engine.CycleInterval != Duration(DefaultCycleInterval) {
		t.Errorf("Engine.CycleInterval = %v, want %v", cfg.Engine.CycleInterval, DefaultCycleInterval)
	}
	if cfg.Engine.FlushEvery != DefaultFlushEvery {
		t.Errorf("Engine.FlushEvery = %d, want %d", cfg.Engine.FlushEvery, DefaultFlushEvery)
	}
	if cfg.Health.Port != DefaultHealthPort {
		t.Errorf("Health.Port = %d, want %d", cfg.Health.Port, DefaultHealthPort)
	}
	if cfg.Redis.TTL != Duration(15*time.Minute) {
		t.Errorf("Redis.TTL = %v, want 15m", cfg.Redis.TTL)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, validYAML)

	if _, err := LoadAndValidate(path); err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantSub: "instance.id",
		},
		{
			name:    "no exchanges",
			mutate:  func(c *Config) { c.Exchanges = nil },
			wantSub: "exchange",
		},
		{
			name:    "no groups",
			mutate:  func(c *Config) { c.Groups = nil },
			wantSub: "group",
		},
		{
			name:    "unknown exchange reference",
			mutate:  func(c *Config) { c.Groups[0].Exchange = "LSE" },
			wantSub: "unknown exchange",
		},
		{
			name:    "unknown database reference",
			mutate:  func(c *Config) { c.Groups[0].Database = "nope" },
			wantSub: "unknown database",
		},
		{
			name:    "no symbols",
			mutate:  func(c *Config) { c.Groups[0].Symbols = nil },
			wantSub: "no symbols",
		},
		{
			name:    "bad provider",
			mutate:  func(c *Config) { c.Groups[0].Provider = "Z" },
			wantSub: "provider",
		},
		{
			name:    "alias resolves empty",
			mutate:  func(c *Config) { c.Groups[0].Alias = "123"; c.Aliases = map[string]string{"123": "456"} },
			wantSub: "canonical",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadWithDefaults(writeTempFile(t, validYAML))
			if err != nil {
				t.Fatalf("LoadWithDefaults failed: %v", err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestInstrumentGroups(t *testing.T) {
	cfg, err := LoadWithDefaults(writeTempFile(t, validYAML))
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	groups, err := cfg.InstrumentGroups()
	if err != nil {
		t.Fatalf("InstrumentGroups failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(groups))
	}

	g := groups[0]
	if g.Provider != model.ProviderRest {
		t.Errorf("Provider = %q, want %q", g.Provider, model.ProviderRest)
	}
	if g.CanonicalName != "acmeholdings" {
		t.Errorf("CanonicalName = %q, want %q", g.CanonicalName, "acmeholdings")
	}
	if g.DatabaseTarget != "quotes" {
		t.Errorf("DatabaseTarget = %q, want %q", g.DatabaseTarget, "quotes")
	}
}
