package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GoogleEmbedder generates embeddings through the Gemini SDK.
type GoogleEmbedder struct {
	client    *genai.Client
	model     *genai.EmbeddingModel
	modelName string
	dimension int
}

// GoogleConfig configures the Google embedder.
type GoogleConfig struct {
	APIKey    string
	Model     string // default: text-embedding-004
	Endpoint  string // optional API endpoint override
	Dimension int    // default: 768
}

// NewGoogleEmbedder creates a Gemini embedding provider. Close releases the
// underlying client.
func NewGoogleEmbedder(ctx context.Context, cfg GoogleConfig) (*GoogleEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for google")
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = "text-embedding-004"
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = 768
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	model := client.EmbeddingModel(modelName)
	model.TaskType = genai.TaskTypeSemanticSimilarity

	return &GoogleEmbedder{
		client:    client,
		model:     model,
		modelName: modelName,
		dimension: dimension,
	}, nil
}

// Embed generates embeddings for the given texts in one batch request.
func (e *GoogleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := e.model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	resp, err := e.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}

	result := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb != nil {
			result[i] = emb.Values
		}
	}
	return result, nil
}

// Dimension returns the configured vector length.
func (e *GoogleEmbedder) Dimension() int { return e.dimension }

// Model returns the model name.
func (e *GoogleEmbedder) Model() string { return e.modelName }

// Name returns "google".
func (e *GoogleEmbedder) Name() string { return "google" }

// Close releases the client connection.
func (e *GoogleEmbedder) Close() error {
	return e.client.Close()
}
