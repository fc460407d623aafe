package deduplication

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// DefaultThreshold is the Jaccard score at or above which two slugs are
// treated as near-duplicates.
const DefaultThreshold = 0.55

// Config holds configuration for the near-duplicate check
type Config struct {
	// Threshold is the minimum similarity (0.0-1.0) to mark as a near-duplicate.
	// Lower values skip more titles; 1.0 only catches identical word sets.
	Threshold float64
}

// DefaultConfig returns the 0.55 threshold the title pool was tuned against
func DefaultConfig() Config {
	return Config{
		Threshold: DefaultThreshold,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.Threshold <= 0.0 || c.Threshold > 1.0 {
		return fmt.Errorf("threshold must be in (0.0, 1.0] (got %.2f)", c.Threshold)
	}
	return nil
}

// String is used in the run's startup log line
func (c Config) String() string {
	return fmt.Sprintf("Config{Threshold: %.2f}", c.Threshold)
}

// EnvPrefix namespaces the deduplication settings in the environment.
const EnvPrefix = "FACTORY_DEDUP_"

// ConfigFromEnv reads FACTORY_DEDUP_THRESHOLD over DefaultConfig. A
// malformed or out-of-range value is an error, not a silent fallback.
func ConfigFromEnv() (Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return DefaultConfig(), fmt.Errorf("load %s* environment: %w", EnvPrefix, err)
	}

	cfg := DefaultConfig()
	if raw := strings.TrimSpace(k.String("threshold")); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return cfg, fmt.Errorf("%sTHRESHOLD=%q is not a number", EnvPrefix, raw)
		}
		cfg.Threshold = threshold
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%sTHRESHOLD: %w", EnvPrefix, err)
	}
	return cfg, nil
}
