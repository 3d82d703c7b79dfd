package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIEmbedder generates embeddings through the OpenAI SDK.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
}

// OpenAIConfig configures the OpenAI embedder.
type OpenAIConfig struct {
	APIKey    string
	Model     string        // default: text-embedding-3-small
	BaseURL   string        // optional, for compatible endpoints
	Dimension int           // default: model native dimension
	Timeout   time.Duration // per request; 0 uses the SDK default
}

// NewOpenAIEmbedder creates an OpenAI embedding provider.
// SDK retries are disabled; retry is caller policy.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for openai")
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = openAIDimension(model)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	client := openai.NewClient(opts...)

	return &OpenAIEmbedder{
		client:    &client,
		model:     model,
		dimension: dimension,
	}, nil
}

// Embed generates embeddings for the given texts.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	}
	// Only the v3 models accept a shortened output.
	if strings.HasPrefix(e.model, "text-embedding-3") && e.dimension != openAIDimension(e.model) {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}

	result := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(result) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		result[d.Index] = vec
	}
	for i, vec := range result {
		if vec == nil {
			return nil, fmt.Errorf("openai response has no embedding for input %d", i)
		}
	}
	return result, nil
}

// Dimension returns the configured vector length.
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

// Model returns the model name.
func (e *OpenAIEmbedder) Model() string { return e.model }

// Name returns "openai".
func (e *OpenAIEmbedder) Name() string { return "openai" }

func openAIDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}
