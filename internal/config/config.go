package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/guygriffiths/wildfire/internal/tigge"
)

// Key is one ECMWF API credential: the key and its registered email.
type Key struct {
	Key   string `yaml:"key"`
	Email string `yaml:"email"`
}

// Config defines configuration for the wildfire CLI.
type Config struct {
	// Store is where retrieved files go: a directory path or a bucket URL.
	Store string `yaml:"store"`

	// Keys are the API credentials to rotate through.
	Keys []Key `yaml:"keys"`

	// WorkersPerKey scales the bulk worker pool.
	WorkersPerKey int `yaml:"workers_per_key"`

	// Reduced selects the 5-variable parameter set instead of the full 20.
	Reduced bool `yaml:"reduced"`

	API APIConfig `yaml:"api"`
	Log LogConfig `yaml:"log"`
}

// APIConfig configures the MARS API client.
type APIConfig struct {
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Retry        RetryConfig   `yaml:"retry"`
}

// RetryConfig defines retry behavior for individual API calls.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Format string `yaml:"format"` // "text" | "json"
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		WorkersPerKey: 4,
		API: APIConfig{
			URL:          "https://api.ecmwf.int/v1",
			Timeout:      60 * time.Second,
			PollInterval: 30 * time.Second,
			Retry: RetryConfig{
				Attempts:   5,
				Backoff:    time.Second,
				MaxBackoff: 30 * time.Second,
			},
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	Store         string        `yaml:"store"`
	Keys          []Key         `yaml:"keys"`
	WorkersPerKey int           `yaml:"workers_per_key"`
	Reduced       bool          `yaml:"reduced"`
	API           yamlAPIConfig `yaml:"api"`
	Log           LogConfig     `yaml:"log"`
}

type yamlAPIConfig struct {
	URL          string          `yaml:"url"`
	Timeout      string          `yaml:"timeout"`
	PollInterval string          `yaml:"poll_interval"`
	Retry        yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Store != "" {
		cfg.Store = yc.Store
	}
	if len(yc.Keys) != 0 {
		cfg.Keys = yc.Keys
	}
	if yc.WorkersPerKey != 0 {
		cfg.WorkersPerKey = yc.WorkersPerKey
	}
	cfg.Reduced = yc.Reduced
	if yc.API.URL != "" {
		cfg.API.URL = yc.API.URL
	}
	if err := setDuration(&cfg.API.Timeout, yc.API.Timeout, "api.timeout"); err != nil {
		return Config{}, err
	}
	if err := setDuration(&cfg.API.PollInterval, yc.API.PollInterval, "api.poll_interval"); err != nil {
		return Config{}, err
	}
	if yc.API.Retry.Attempts != 0 {
		cfg.API.Retry.Attempts = yc.API.Retry.Attempts
	}
	if err := setDuration(&cfg.API.Retry.Backoff, yc.API.Retry.Backoff, "api.retry.backoff"); err != nil {
		return Config{}, err
	}
	if err := setDuration(&cfg.API.Retry.MaxBackoff, yc.API.Retry.MaxBackoff, "api.retry.max_backoff"); err != nil {
		return Config{}, err
	}
	if yc.Log.Format != "" {
		cfg.Log.Format = yc.Log.Format
	}
	if yc.Log.Level != "" {
		cfg.Log.Level = yc.Log.Level
	}

	return cfg, nil
}

func setDuration(dst *time.Duration, value, field string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", field, err)
	}
	*dst = d
	return nil
}

// LoadFromEnv loads configuration overrides from environment variables.
// Environment variables use the WILDFIRE_ prefix. WILDFIRE_KEY and
// WILDFIRE_EMAIL together append one credential, which is how CI jobs
// supply a key without a config file.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("WILDFIRE_STORE"); v != "" {
		c.Store = v
	}
	if key := os.Getenv("WILDFIRE_KEY"); key != "" {
		c.Keys = append(c.Keys, Key{
			Key:   key,
			Email: os.Getenv("WILDFIRE_EMAIL"),
		})
	}
	if v := os.Getenv("WILDFIRE_WORKERS_PER_KEY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse WILDFIRE_WORKERS_PER_KEY: %w", err)
		}
		c.WorkersPerKey = n
	}
	if v := os.Getenv("WILDFIRE_REDUCED"); v != "" {
		c.Reduced = v == "true" || v == "1"
	}
	if v := os.Getenv("WILDFIRE_API_URL"); v != "" {
		c.API.URL = v
	}
	if v := os.Getenv("WILDFIRE_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("WILDFIRE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Store == "" {
		return errors.New("config: store is required")
	}
	if len(c.Keys) == 0 {
		return errors.New("config: at least one API key is required")
	}
	for i, k := range c.Keys {
		if k.Key == "" {
			return fmt.Errorf("config: keys[%d].key is required", i)
		}
		if k.Email == "" {
			return fmt.Errorf("config: keys[%d].email is required", i)
		}
	}
	if c.WorkersPerKey <= 0 {
		return errors.New("config: workers_per_key must be positive")
	}
	if c.API.URL == "" {
		return errors.New("config: api.url is required")
	}
	return nil
}

// Credentials converts the configured keys into domain credentials,
// preserving order.
func (c *Config) Credentials() []tigge.Credential {
	creds := make([]tigge.Credential, len(c.Keys))
	for i, k := range c.Keys {
		creds[i] = tigge.Credential{Key: k.Key, Email: k.Email}
	}
	return creds
}

// Variables returns the variable set the config selects.
func (c *Config) Variables() tigge.VariableSet {
	if c.Reduced {
		return tigge.Minimal
	}
	return tigge.Full
}
