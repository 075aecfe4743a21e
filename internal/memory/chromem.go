package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const defaultCollection = "interactions"

// ChromemIndex is an in-process similarity index over recorded interactions,
// backed by chromem-go. Embeddings are supplied by callers; chromem's own
// embedding function is never invoked, so the index works offline.
type ChromemIndex struct {
	collection *chromem.Collection
	logger     *zap.Logger
}

// NewChromemIndex creates an index persisted under path. An empty path
// keeps the index purely in memory (used by tests).
func NewChromemIndex(path string, logger *zap.Logger) (*ChromemIndex, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem db: %w", err)
		}
	}

	// The embedding func is a placeholder: documents and queries always
	// carry precomputed embeddings.
	collection, err := db.GetOrCreateCollection(defaultCollection, nil, func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embeddings must be precomputed")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	return &ChromemIndex{collection: collection, logger: logger}, nil
}

// Record stores an interaction with its embedding so later contexts can
// cluster against it.
func (i *ChromemIndex) Record(ctx context.Context, userID uuid.UUID, action string, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is required")
	}

	doc := chromem.Document{
		ID:        uuid.New().String(),
		Content:   action,
		Embedding: embedding,
		Metadata: map[string]string{
			"user_id":     userID.String(),
			"action":      action,
			"recorded_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := i.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("failed to add interaction: %w", err)
	}
	return nil
}

// FindSimilar returns stored interactions with cosine similarity at or
// above threshold, most similar first.
func (i *ChromemIndex) FindSimilar(ctx context.Context, embedding []float32, threshold float64) ([]SimilarItem, error) {
	count := i.collection.Count()
	if count == 0 {
		return nil, nil
	}
	k := 20
	if count < k {
		k = count
	}

	results, err := i.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query similarity index: %w", err)
	}

	items := make([]SimilarItem, 0, len(results))
	for _, res := range results {
		if float64(res.Similarity) < threshold {
			continue
		}
		action := res.Metadata["action"]
		if action == "" {
			action = res.Content
		}
		items = append(items, SimilarItem{
			Action:     action,
			Similarity: float64(res.Similarity),
			ClusterID:  res.Metadata["cluster_id"],
		})
	}
	return items, nil
}

var _ SimilarityIndex = (*ChromemIndex)(nil)
