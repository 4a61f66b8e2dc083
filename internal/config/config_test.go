package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  addr: ":9000"
database:
  driver: postgres
  dsn: postgres://localhost/booking
cache:
  local_ttl: 30s
  memcached: "cache1:11211, cache2:11211"
ratings:
  drain_interval: 1m
`)
	envFile := writeFile(t, ".env", "JWT_SECRET=from-dotenv\n")
	t.Setenv("SERVER_ADDR", ":9100")
	// godotenv never overrides variables that are already set.
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	cfg, err := Load(path, envFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":9100" {
		t.Errorf("addr = %q, want env override", cfg.Server.Addr)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://localhost/booking" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Cache.LocalTTL != 30*time.Second || cfg.Ratings.DrainInterval != time.Minute {
		t.Errorf("durations = %v, %v", cfg.Cache.LocalTTL, cfg.Ratings.DrainInterval)
	}
	if cfg.Server.ReadTimeout != Default().Server.ReadTimeout {
		t.Errorf("unset field lost its default: %v", cfg.Server.ReadTimeout)
	}
	if cfg.Auth.JWTSecret != "from-dotenv" {
		t.Errorf("jwt secret = %q, want value from .env", cfg.Auth.JWTSecret)
	}
	if got := cfg.Cache.MemcachedServers(); !reflect.DeepEqual(got, []string{"cache1:11211", "cache2:11211"}) {
		t.Errorf("memcached servers = %v", got)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), ""); err == nil {
		t.Error("Load() accepted a missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }},
		{"queue", func(c *Config) { c.Ratings.Queue = "kafka" }},
		{"amqp without url", func(c *Config) { c.Ratings.Queue = QueueAMQP }},
		{"empty secret", func(c *Config) { c.Auth.JWTSecret = "" }},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() accepted an invalid config")
			}
		})
	}
}
