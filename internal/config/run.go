package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces the run settings in the environment.
const EnvPrefix = "FACTORY_"

// RunConfig holds the settings of one generation or gate run
type RunConfig struct {
	// PagesPerRun is the target number of pages to produce
	// Default: 10
	PagesPerRun int

	// MaxCalls is the hard cap on backend calls per run
	// Default: 30
	MaxCalls int

	// MaxDuration bounds the wall-clock time of a run (0 = unbounded).
	// Checked between titles, never mid-call.
	MaxDuration time.Duration

	// TitleRetries is the number of backend calls a single title may use
	// before it is blacklisted
	// Default: 2
	TitleRetries int

	// MaxOutputTokens caps the size of each completion
	// Default: 1700
	MaxOutputTokens int

	// Temperature is the sampling temperature sent to the backend
	// Default: 1.0
	Temperature float64

	// Pacing is the minimum delay between successful page writes
	// Default: 200ms
	Pacing time.Duration

	// LinkTargets is how many existing pages are offered as link targets
	// Default: 6
	LinkTargets int

	// Shuffle randomises the title pool order
	// Default: true
	Shuffle bool

	// Backend selects the provider: "openai", "anthropic" or "gemini"
	// Default: "openai"
	Backend string
	// Model overrides the provider's default model
	Model string
	// BaseURL overrides the provider's endpoint
	BaseURL string
	// RequestTimeout bounds a single backend attempt
	// Default: 60s
	RequestTimeout time.Duration

	ContentRoot  string
	ManifestPath string
	TitlesPath   string
	PolicyPath   string

	// Workers bounds parallel document evaluation in the offline gate
	// Default: 4
	Workers int

	LogLevel  string
	LogFormat string
}

// DefaultRunConfig returns the default run settings
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		PagesPerRun:     10,
		MaxCalls:        30,
		MaxDuration:     0,
		TitleRetries:    2,
		MaxOutputTokens: 1700,
		Temperature:     1.0,
		Pacing:          200 * time.Millisecond,
		LinkTargets:     6,
		Shuffle:         true,
		Backend:         "openai",
		RequestTimeout:  60 * time.Second,
		ContentRoot:     "content/pages",
		ManifestPath:    "scripts/manifest.json",
		TitlesPath:      "scripts/titles_pool.txt",
		PolicyPath:      DefaultPolicyPath,
		Workers:         4,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// LoadRunConfig reads run settings from FACTORY_* environment variables
// over the defaults.
//
// Environment variables (name -> field):
//
//	FACTORY_PAGES_PER_RUN -> PagesPerRun
//	FACTORY_MAX_CALLS -> MaxCalls
//	FACTORY_MAX_DURATION -> MaxDuration ("20m")
//	FACTORY_TITLE_RETRIES -> TitleRetries
//	FACTORY_MAX_OUTPUT_TOKENS -> MaxOutputTokens
//	FACTORY_TEMPERATURE -> Temperature
//	FACTORY_PACING -> Pacing ("200ms")
//	FACTORY_BACKEND, FACTORY_MODEL, FACTORY_BASE_URL, FACTORY_REQUEST_TIMEOUT
//	FACTORY_CONTENT_ROOT, FACTORY_MANIFEST_PATH, FACTORY_TITLES_PATH, FACTORY_POLICY_PATH
//	FACTORY_LOG_LEVEL, FACTORY_LOG_FORMAT
func LoadRunConfig() (*RunConfig, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	return runConfigFrom(k)
}

func runConfigFrom(k *koanf.Koanf) (*RunConfig, error) {
	cfg := DefaultRunConfig()

	cfg.PagesPerRun = intOr(k, "pages_per_run", cfg.PagesPerRun)
	cfg.MaxCalls = intOr(k, "max_calls", cfg.MaxCalls)
	cfg.MaxDuration = durationOr(k, "max_duration", cfg.MaxDuration)
	cfg.TitleRetries = intOr(k, "title_retries", cfg.TitleRetries)
	cfg.MaxOutputTokens = intOr(k, "max_output_tokens", cfg.MaxOutputTokens)
	if k.Exists("temperature") {
		cfg.Temperature = k.Float64("temperature")
	}
	cfg.Pacing = durationOr(k, "pacing", cfg.Pacing)
	cfg.LinkTargets = intOr(k, "link_targets", cfg.LinkTargets)
	cfg.Shuffle = boolOr(k, "shuffle", cfg.Shuffle)
	cfg.Backend = strings.ToLower(stringOr(k, "backend", cfg.Backend))
	cfg.Model = stringOr(k, "model", cfg.Model)
	cfg.BaseURL = stringOr(k, "base_url", cfg.BaseURL)
	cfg.RequestTimeout = durationOr(k, "request_timeout", cfg.RequestTimeout)
	cfg.ContentRoot = stringOr(k, "content_root", cfg.ContentRoot)
	cfg.ManifestPath = stringOr(k, "manifest_path", cfg.ManifestPath)
	cfg.TitlesPath = stringOr(k, "titles_path", cfg.TitlesPath)
	cfg.PolicyPath = stringOr(k, "policy_path", cfg.PolicyPath)
	cfg.Workers = intOr(k, "workers", cfg.Workers)
	cfg.LogLevel = stringOr(k, "log_level", cfg.LogLevel)
	cfg.LogFormat = stringOr(k, "log_format", cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the run settings have valid values
func (c *RunConfig) Validate() error {
	if c.PagesPerRun <= 0 {
		return fmt.Errorf("pages_per_run must be positive (got %d)", c.PagesPerRun)
	}
	if c.MaxCalls <= 0 {
		return fmt.Errorf("max_calls must be positive (got %d)", c.MaxCalls)
	}
	if c.MaxDuration < 0 {
		return fmt.Errorf("max_duration cannot be negative (got %v)", c.MaxDuration)
	}
	if c.TitleRetries <= 0 {
		return fmt.Errorf("title_retries must be positive (got %d)", c.TitleRetries)
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("max_output_tokens must be positive (got %d)", c.MaxOutputTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2 (got %.2f)", c.Temperature)
	}
	if c.Pacing < 0 {
		return fmt.Errorf("pacing cannot be negative (got %v)", c.Pacing)
	}
	if c.LinkTargets < 0 {
		return fmt.Errorf("link_targets cannot be negative (got %d)", c.LinkTargets)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive (got %v)", c.RequestTimeout)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive (got %d)", c.Workers)
	}
	switch c.Backend {
	case "openai", "anthropic", "gemini":
	default:
		return fmt.Errorf("backend must be openai, anthropic or gemini (got %q)", c.Backend)
	}
	return nil
}

func durationOr(k *koanf.Koanf, key string, def time.Duration) time.Duration {
	if !k.Exists(key) {
		return def
	}
	return k.Duration(key)
}
