package ai

import (
	"context"
	"fmt"
	"sync"
)

// EmbeddingProvider generates vector embeddings for context and action text
type EmbeddingProvider interface {
	// Embed returns the embedding vector for a single text
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns embedding vectors for multiple texts in one call
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ProviderFactory creates an embedding provider from configuration
type ProviderFactory func(config map[string]string) (EmbeddingProvider, error)

// ProviderRegistry manages available embedding providers
type ProviderRegistry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		factories: make(map[string]ProviderFactory),
	}
}

// Register registers a provider factory under a name
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create instantiates a provider by name
func (r *ProviderRegistry) Create(name string, config map[string]string) (EmbeddingProvider, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s", name)
	}
	return factory(config)
}
