// Package config loads the server configuration from defaults, an optional
// YAML file, a .env file and the environment, in that order of precedence
// from lowest to highest.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Rating queue backends.
const (
	QueueDB   = "db"
	QueueAMQP = "amqp"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Cache    CacheConfig    `yaml:"cache"`
	Ratings  RatingsConfig  `yaml:"ratings"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite3" or "postgres".
	Driver       string `yaml:"driver"`
	DataDir      string `yaml:"data_dir"`
	DSN          string `yaml:"dsn"`
	GeoFunctions bool   `yaml:"geo_functions"`
}

// AuthConfig configures bearer tokens.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// CacheConfig configures the search result cache.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	LocalSize int64         `yaml:"local_size"`
	LocalTTL  time.Duration `yaml:"local_ttl"`
	// Memcached is a comma-separated server list; empty keeps the cache local.
	Memcached string        `yaml:"memcached"`
	RemoteTTL time.Duration `yaml:"remote_ttl"`
}

// RatingsConfig configures background rating recalculation.
type RatingsConfig struct {
	Queue         string        `yaml:"queue"`
	AMQPURL       string        `yaml:"amqp_url"`
	QueueName     string        `yaml:"queue_name"`
	DrainInterval time.Duration `yaml:"drain_interval"`
	ResyncSpec    string        `yaml:"resync_spec"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite3",
			DataDir:      "/data",
			GeoFunctions: true,
		},
		Auth: AuthConfig{
			JWTSecret: "change-me",
			TokenTTL:  24 * time.Hour,
		},
		Cache: CacheConfig{
			Enabled:   true,
			LocalSize: 1000,
			LocalTTL:  5 * time.Minute,
			RemoteTTL: 15 * time.Minute,
		},
		Ratings: RatingsConfig{
			Queue:         QueueDB,
			QueueName:     "rating_recalculations",
			DrainInterval: 10 * time.Second,
			ResyncSpec:    "@hourly",
		},
	}
}

// Load builds the configuration. path names an optional YAML file; envFile
// names an optional dotenv file. Missing files are ignored unless path was
// given explicitly.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = getEnv("SERVER_ADDR", cfg.Server.Addr)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DataDir = getEnv("DATA_DIR", cfg.Database.DataDir)
	cfg.Database.DSN = getEnv("DATABASE_URL", cfg.Database.DSN)
	cfg.Database.GeoFunctions = getEnvBool("DB_GEO_FUNCTIONS", cfg.Database.GeoFunctions)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.TokenTTL = getEnvDuration("JWT_TTL", cfg.Auth.TokenTTL)

	cfg.Cache.Enabled = getEnvBool("CACHE_ENABLED", cfg.Cache.Enabled)
	cfg.Cache.Memcached = getEnv("MEMCACHED_HOST", cfg.Cache.Memcached)

	cfg.Ratings.Queue = getEnv("RATING_QUEUE", cfg.Ratings.Queue)
	cfg.Ratings.AMQPURL = getEnv("RABBITMQ_URL", cfg.Ratings.AMQPURL)
	cfg.Ratings.QueueName = getEnv("RATING_QUEUE_NAME", cfg.Ratings.QueueName)
	cfg.Ratings.DrainInterval = getEnvDuration("RATING_DRAIN_INTERVAL", cfg.Ratings.DrainInterval)
	cfg.Ratings.ResyncSpec = getEnv("RATING_RESYNC_SPEC", cfg.Ratings.ResyncSpec)
}

// Validate checks values that would otherwise fail late at startup.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return errors.New("postgres requires a DSN")
	}

	switch c.Ratings.Queue {
	case QueueDB:
	case QueueAMQP:
		if c.Ratings.AMQPURL == "" {
			return errors.New("amqp rating queue requires an AMQP URL")
		}
	default:
		return fmt.Errorf("unsupported rating queue %q", c.Ratings.Queue)
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("JWT secret must not be empty")
	}
	return nil
}

// MemcachedServers splits the configured memcached list.
func (c CacheConfig) MemcachedServers() []string {
	var servers []string
	for _, s := range strings.Split(c.Memcached, ",") {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, s)
		}
	}
	return servers
}

// getEnv returns an environment variable value or a default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
