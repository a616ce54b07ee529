// Package config loads the Sentinel configuration from the process
// environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"

	"github.com/opensource-finance/sentinel/internal/domain"
)

// Load builds the configuration from SENTINEL_* environment variables,
// falling back to the tag defaults for anything unset.
func Load() (*domain.Config, error) {
	cfg := &domain.Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if !domain.ValidMode(cfg.Pipeline.Mode) {
		return nil, fmt.Errorf("invalid SENTINEL_MODE %q", cfg.Pipeline.Mode)
	}
	return cfg, nil
}

// Default returns the configuration with every value at its tag
// default, ignoring the process environment.
func Default() *domain.Config {
	cfg := &domain.Config{}
	// An empty environment leaves only the envDefault values.
	_ = env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}})
	return cfg
}
