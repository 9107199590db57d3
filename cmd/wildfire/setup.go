package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/guygriffiths/wildfire/internal/config"
	"github.com/guygriffiths/wildfire/internal/ecmwf"
	"github.com/guygriffiths/wildfire/internal/logging"
	"github.com/guygriffiths/wildfire/internal/store"
)

// loadConfig resolves configuration: defaults, then the YAML file, then
// environment overrides. A missing file is only an error if the flag was
// set explicitly.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	path := cmd.String("config")

	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			return config.Config{}, err
		}
	} else if cmd.IsSet("config") {
		return config.Config{}, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	logging.Setup(cfg.Log)
	return cfg, nil
}

// openStore opens the configured data store.
func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	return store.Open(ctx, cfg.Store)
}

// newRetriever builds the MARS client from config.
func newRetriever(cfg config.Config) *ecmwf.Client {
	return ecmwf.NewClient(ecmwf.Options{
		BaseURL:         cfg.API.URL,
		Timeout:         cfg.API.Timeout,
		PollInterval:    cfg.API.PollInterval,
		RetryAttempts:   cfg.API.Retry.Attempts,
		RetryBackoff:    cfg.API.Retry.Backoff,
		RetryMaxBackoff: cfg.API.Retry.MaxBackoff,
	})
}

// parseDate parses a YYYY-MM-DD flag value.
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("date must not be empty")
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", value, err)
	}
	return t, nil
}

// parseDateOrZero parses an optional date flag; empty means "use default".
func parseDateOrZero(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return parseDate(value)
}
