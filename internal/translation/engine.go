package translation

import (
	"context"
	"log/slog"

	"captioner/internal/config"
	"captioner/internal/services"
)

// Engine translates a single piece of text.
type Engine interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, text, targetLang string) (string, error)

// Translate calls f.
func (f EngineFunc) Translate(ctx context.Context, text, targetLang string) (string, error) {
	return f(ctx, text, targetLang)
}

// Identity returns text unchanged.
type Identity struct{}

// Translate returns text as-is.
func (Identity) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}

// NewEngine builds the engine selected by translation.provider.
func NewEngine(cfg *config.Config, logger *slog.Logger) (Engine, error) {
	if cfg == nil {
		return Identity{}, nil
	}
	switch cfg.Translation.Provider {
	case "none":
		return Identity{}, nil
	case "openai", "":
		if cfg.Translation.APIKey == "" {
			return nil, services.Wrap(services.ErrConfiguration, "translation", "engine",
				"translation.api_key is required for the openai provider (or set OPENAI_API_KEY)", nil)
		}
		return NewOpenAI(OpenAIConfig{
			APIKey:      cfg.Translation.APIKey,
			BaseURL:     cfg.Translation.BaseURL,
			Model:       cfg.Translation.Model,
			Temperature: cfg.Translation.Temperature,
		}, WithRetryMaxAttempts(cfg.Translation.RetryAttempts+1), WithLogger(logger)), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "translation", "engine",
			"unknown provider "+cfg.Translation.Provider, nil)
	}
}
