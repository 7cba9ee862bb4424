// Package config loads the client configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage drivers for the persisted session.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Config holds the client configuration loaded from environment variables.
type Config struct {
	APIBaseURL  string        `env:"TICKETING_API_BASE_URL" envDefault:"http://localhost:5001/api"`
	HTTPTimeout time.Duration `env:"TICKETING_HTTP_TIMEOUT" envDefault:"15s"`

	// Durable session storage
	Storage     string `env:"TICKETING_STORAGE" envDefault:"sqlite"`
	SQLitePath  string `env:"TICKETING_SQLITE_PATH" envDefault:"./data/client.db"`
	PostgresDSN string `env:"TICKETING_POSTGRES_DSN"`
	RedisURL    string `env:"TICKETING_REDIS_URL"`
	RedisPrefix string `env:"TICKETING_REDIS_PREFIX" envDefault:"ticketing:"`

	// Local control API
	ListenAddr string `env:"TICKETING_LISTEN_ADDR" envDefault:"127.0.0.1:8080"`

	LogLevel  string `env:"TICKETING_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"TICKETING_LOG_FORMAT" envDefault:"text"`

	// LegacyAuthHeuristic also treats errors whose message mentions
	// 401/403/unauthorized/forbidden/token as authorization failures.
	LegacyAuthHeuristic bool `env:"TICKETING_LEGACY_AUTH_HEURISTIC" envDefault:"false"`

	NoticeBuffer int `env:"TICKETING_NOTICE_BUFFER" envDefault:"50"`
}

// Load reads an optional .env file from the working directory and parses
// the environment. The result is not validated so that command-line
// overrides can be applied first; call Validate afterwards.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return parse()
}

// Parse parses and validates the environment without touching .env files.
func Parse() (*Config, error) {
	cfg, err := parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// maxSequentialRequests is the longest chain of API calls one control-API
// intent makes: a mutation, the refetches it triggers, and slack.
const maxSequentialRequests = 4

// WriteTimeout bounds a control-API response. It covers every API call an
// intent may chain, plus headroom for the response itself. Without an HTTP
// timeout there is no bound.
func (c *Config) WriteTimeout() time.Duration {
	if c.HTTPTimeout <= 0 {
		return 0
	}
	return maxSequentialRequests*c.HTTPTimeout + 15*time.Second
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("TICKETING_API_BASE_URL %q is not an absolute URL", c.APIBaseURL)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("TICKETING_HTTP_TIMEOUT must not be negative")
	}

	switch c.Storage {
	case StorageMemory:
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("TICKETING_SQLITE_PATH is required for sqlite storage")
		}
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("TICKETING_POSTGRES_DSN is required for postgres storage")
		}
	case StorageRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("TICKETING_REDIS_URL is required for redis storage")
		}
	default:
		return fmt.Errorf("unknown TICKETING_STORAGE %q (want memory, sqlite, postgres or redis)", c.Storage)
	}

	if c.NoticeBuffer <= 0 {
		c.NoticeBuffer = 50
	}
	return nil
}
