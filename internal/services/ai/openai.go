package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

const (
	// DefaultEmbeddingModel is the default embedding model
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	// ErrNoEmbeddingsInResponse is returned when the API response has no embeddings
	ErrNoEmbeddingsInResponse = "no embeddings in response"
)

// OpenAIProvider implements EmbeddingProvider using OpenAI's embeddings API
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIProvider creates a new OpenAI embedding provider
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return NewOpenAIProviderWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIProviderWithLogger creates a new OpenAI embedding provider with logger support
func NewOpenAIProviderWithLogger(apiKey string, baseURL string, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

// Embed returns the embedding vector for a single text
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns embedding vectors for multiple texts in one call
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	}

	if p.logger != nil && p.debugMode {
		p.logger.Debug("embedding_api_request",
			zap.String("model", p.model),
			zap.Int("input_count", len(texts)),
		)
	}

	start := time.Now()
	resp, err := p.client.Embeddings.New(ctx, req)
	latency := time.Since(start)

	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("embedding_api_error",
				zap.String("model", p.model),
				zap.Error(err),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", apiErr)
		}
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New(ErrNoEmbeddingsInResponse)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vec := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}

	if p.logger != nil && p.debugMode {
		p.logger.Debug("embedding_api_response",
			zap.String("model", p.model),
			zap.Int("vector_count", len(vectors)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return vectors, nil
}

// RegisterOpenAI registers the OpenAI provider with the registry
func RegisterOpenAI(registry *ProviderRegistry) {
	registry.Register("openai", func(config map[string]string) (EmbeddingProvider, error) {
		apiKey, ok := config["api_key"]
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("openai api_key is required")
		}
		return NewOpenAIProvider(apiKey, config["model"]), nil
	})
}

var _ EmbeddingProvider = (*OpenAIProvider)(nil)
