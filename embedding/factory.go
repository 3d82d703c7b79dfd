package embedding

import (
	"context"

	"github.com/vinayprograms/skillmatch/config"
	"github.com/vinayprograms/skillmatch/errors"
)

// New builds the provider named in cfg. apiKey is ignored by providers that
// do not need one.
func New(ctx context.Context, cfg config.EmbeddingConfig, apiKey string) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		if apiKey == "" {
			return nil, errors.NotConfigured("openai api key is not set",
				errors.WithMetadata("provider", "openai"))
		}
		p, err := NewOpenAIEmbedder(OpenAIConfig{
			APIKey:    apiKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "google":
		if apiKey == "" {
			return nil, errors.NotConfigured("google api key is not set",
				errors.WithMetadata("provider", "google"))
		}
		p, err := NewGoogleEmbedder(ctx, GoogleConfig{
			APIKey:    apiKey,
			Model:     cfg.Model,
			Endpoint:  cfg.BaseURL,
			Dimension: cfg.Dimension,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "ollama":
		return NewOllamaEmbedder(OllamaConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
		}), nil
	case "mock":
		return NewMockEmbedder(cfg.Dimension), nil
	default:
		return nil, errors.InvalidInput("unknown embedding provider",
			errors.WithMetadata("provider", cfg.Provider))
	}
}
