package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fzft/go-openset/db"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Sets   SetsConfig   `yaml:"sets"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig represents the listener configuration
type ServerConfig struct {
	Addr        string        `yaml:"addr"`
	MetricsAddr string        `yaml:"metrics_addr,omitempty"` // empty disables /metrics
	MaxClients  int           `yaml:"max_clients"`
	IdleTimeout time.Duration `yaml:"idle_timeout,omitempty"` // 0 disables
}

// SetsConfig represents the keyspace limits
type SetsConfig struct {
	DefaultCapacity int    `yaml:"default_capacity"`
	MaxCapacity     int    `yaml:"max_capacity"`
	Hasher          string `yaml:"hasher"`
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	TimeZone    string `yaml:"time_zone,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":6380",
			MaxClients: 1024,
		},
		Sets: SetsConfig{
			DefaultCapacity: db.DefaultCapacity,
			MaxCapacity:     db.DefaultMaxCapacity,
			Hasher:          db.HasherJava,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the specified file. An empty path returns
// the defaults. Values of the form ${VAR} are expanded from the environment.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	config := Default()
	if configPath == "" {
		return config, config.Validate()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// loadEnvFiles reads .env and .env.local when present. Variables already set
// in the environment win.
func loadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			fmt.Fprintf(os.Stderr, "Note: %s couldn't be loaded: %v\n", name, err)
		}
	}
}

// Validate checks the configuration for obviously wrong values
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Server.MaxClients <= 0 {
		return fmt.Errorf("server.max_clients must be positive, got %d", c.Server.MaxClients)
	}
	if c.Server.IdleTimeout < 0 {
		return fmt.Errorf("server.idle_timeout must not be negative")
	}
	if c.Sets.DefaultCapacity <= 0 {
		return fmt.Errorf("sets.default_capacity must be positive, got %d", c.Sets.DefaultCapacity)
	}
	if c.Sets.MaxCapacity < c.Sets.DefaultCapacity {
		return fmt.Errorf("sets.max_capacity (%d) is below sets.default_capacity (%d)",
			c.Sets.MaxCapacity, c.Sets.DefaultCapacity)
	}
	if _, err := db.HasherByName(c.Sets.Hasher); err != nil {
		return fmt.Errorf("sets.hasher: %w", err)
	}
	return nil
}

// DbOptions converts the sets section into keyspace options.
func (c *Config) DbOptions() (db.Options, error) {
	hasher, err := db.HasherByName(c.Sets.Hasher)
	if err != nil {
		return db.Options{}, err
	}
	return db.Options{
		DefaultCapacity: c.Sets.DefaultCapacity,
		MaxCapacity:     c.Sets.MaxCapacity,
		Hasher:          hasher,
	}, nil
}
