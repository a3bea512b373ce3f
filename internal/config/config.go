// Package config loads the application configuration from YAML with
// environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crtiers/crtiers/internal/auth"
	"github.com/crtiers/crtiers/internal/cache"
	"github.com/crtiers/crtiers/internal/kafka"
	"github.com/crtiers/crtiers/internal/mojang"
	"github.com/crtiers/crtiers/internal/store/postgres"
	"github.com/crtiers/crtiers/internal/worker"
)

// Store backends.
const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

// Config represents the application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Redis  RedisConfig  `yaml:"redis"`
	Kafka  kafka.Config `yaml:"kafka"`
	Auth   auth.Config  `yaml:"auth"`
	Mojang mojang.Config `yaml:"mojang"`
	Sync   SyncConfig   `yaml:"sync"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Backend   string          `yaml:"backend"`
	ProjectID string          `yaml:"project_id"`
	Postgres  postgres.Config `yaml:"postgres"`
}

// RedisConfig wraps the cache settings with an enable switch.
type RedisConfig struct {
	Enabled      bool `yaml:"enabled"`
	cache.Config `yaml:",inline"`
}

// SyncConfig holds the background job settings.
type SyncConfig struct {
	UUIDDelay time.Duration          `yaml:"uuid_delay"`
	Cache     worker.CacheSyncConfig `yaml:"cache"`
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults, and validates required settings.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	if c.Store.Backend == "" {
		c.Store.Backend = BackendFirestore
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 10
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "tier-changes"
	}
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}

	if c.Auth.TTL == 0 {
		c.Auth.TTL = 2 * time.Hour
	}

	if c.Sync.UUIDDelay == 0 {
		c.Sync.UUIDDelay = 500 * time.Millisecond
	}
	if c.Sync.Cache.Interval == 0 {
		c.Sync.Cache.Interval = 5 * time.Minute
	}
}

// validate rejects configurations the server must not start with. The
// admin secret and password have no fallbacks on purpose.
func (c *Config) validate() error {
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required")
	}
	if c.Auth.Password == "" {
		return errors.New("auth.password is required")
	}

	switch c.Store.Backend {
	case BackendFirestore:
		if c.Store.ProjectID == "" {
			return errors.New("store.project_id is required for the firestore backend")
		}
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	return nil
}
