package ai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Backend names accepted by NewProvider.
const (
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
	BackendGemini    = "gemini"
)

// Request is one completion request as seen by a provider.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Provider sends a single request to a backend without retrying.
// Non-2xx HTTP responses are reported as *StatusError.
type Provider interface {
	Send(ctx context.Context, req Request) (string, error)
	Name() string
}

// Config holds backend selection and client settings.
type Config struct {
	Backend     string // openai (default), anthropic, gemini
	Model       string
	BaseURL     string
	APIKey      string // falls back to the backend's conventional env var
	Temperature float64
	Retry       RetryConfig
	Logger      *zap.Logger
}

// Client is the backend client used by the generator: one Complete call
// is one logical call, retried internally on transient failures.
type Client struct {
	provider    Provider
	temperature float64
	retry       RetryConfig
	logger      *zap.Logger
	sleep       sleepFunc
}

// NewClient wraps a provider with retry and backoff.
func NewClient(p Provider, cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		provider:    p,
		temperature: cfg.Temperature,
		retry:       cfg.Retry.withDefaults(),
		logger:      logger,
		sleep:       sleepContext,
	}
}

// New builds the provider named by cfg.Backend and wraps it in a Client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	p, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(p, cfg), nil
}

// NewProvider selects a provider by backend name.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	var (
		p   Provider
		err error
	)
	switch backend {
	case "", BackendOpenAI:
		p, err = NewChatCompletionsProvider(ChatConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  apiKeyOr(cfg.APIKey, "MOONSHOT_API_KEY"),
			Model:   cfg.Model,
			Timeout: cfg.Retry.withDefaults().Timeout,
		})
	case BackendAnthropic:
		if cfg.Temperature > AnthropicMaxTemperature {
			return nil, fmt.Errorf("anthropic: temperature must be at most %.1f (got %.2f)", AnthropicMaxTemperature, cfg.Temperature)
		}
		p, err = NewAnthropicProvider(apiKeyOr(cfg.APIKey, "ANTHROPIC_API_KEY"), cfg.Model)
	case BackendGemini:
		p, err = NewGeminiProvider(ctx, apiKeyOr(cfg.APIKey, "GEMINI_API_KEY"), cfg.Model)
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s, %s or %s)", cfg.Backend, BackendOpenAI, BackendAnthropic, BackendGemini)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func apiKeyOr(key, envVar string) string {
	if key != "" {
		return key
	}
	return os.Getenv(envVar)
}

// Complete sends system and prompt to the backend and returns the raw
// completion text. Empty text is returned as-is. Failures are *BackendError.
func (c *Client) Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	startTime := time.Now()
	req := Request{
		System:      system,
		Prompt:      prompt,
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	}

	var text string
	err := c.retryWithBackoff(ctx, c.provider.Name(), func(attemptCtx context.Context) error {
		out, sendErr := c.provider.Send(attemptCtx, req)
		if sendErr != nil {
			return sendErr
		}
		text = out
		return nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Debug("backend call completed",
		zap.String("backend", c.provider.Name()),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("response_chars", len(text)),
		zap.Duration("duration", time.Since(startTime)))
	return text, nil
}
