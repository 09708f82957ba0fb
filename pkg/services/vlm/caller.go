// Package vlm talks to vision language models. Each provider is a Caller that
// sends one image and one prompt and returns the model's free-text answer.
package vlm

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"receipt-scan/pkg/config"
)

// Image is an encoded picture ready to send to a model
type Image struct {
	Data     []byte
	MIMEType string
}

// Caller sends an image plus prompt to a vision model
type Caller interface {
	Name() string
	Describe(ctx context.Context, img Image, prompt string) (string, error)
}

// New builds the caller for the configured provider, wrapped with the
// configured rate limit and retry policy.
func New(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (Caller, error) {
	var (
		base Caller
		err  error
	)
	switch cfg.Provider {
	case config.ProviderGemini:
		base, err = NewGeminiCaller(ctx, cfg.Model, cfg.GeminiAPIKey)
	case config.ProviderGroq:
		base = NewOpenAICaller(config.ProviderGroq, cfg.Model, cfg.GroqAPIKey, cfg.BaseURL)
	case config.ProviderOpenAI:
		base = NewOpenAICaller(config.ProviderOpenAI, cfg.Model, cfg.OpenAIAPIKey, cfg.BaseURL)
	case config.ProviderOllama:
		base, err = NewOllamaCaller(cfg.Model, cfg.BaseURL, cfg.RequestTimeout)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s caller: %w", cfg.Provider, err)
	}

	limiter := NewLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	return NewRetrying(base, limiter, cfg.MaxRetries, time.Second, log), nil
}
