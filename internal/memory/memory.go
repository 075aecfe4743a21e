// Package memory defines the narrow contracts to the collaborators the
// engine reads from: episodic recall, semantic similarity, user profiles,
// and the fire-and-forget consolidation sink. All lookups are fail-open:
// callers treat errors as empty results and log, never abort a
// suggestion or prediction call.
package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/praxislabs/foresight/internal/models"
)

// Episode is one recalled interaction event.
type Episode struct {
	Type      string    `json:"type"`
	Action    string    `json:"action"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EpisodicReader recalls a user's recent action history.
type EpisodicReader interface {
	// RecallRecent returns the most recent episodes within window, oldest
	// first, capped at limit.
	RecallRecent(ctx context.Context, userID uuid.UUID, window time.Duration, limit int) ([]Episode, error)

	// CausalChain returns the ordered antecedent events leading up to the
	// given episode within its session.
	CausalChain(ctx context.Context, userID uuid.UUID, episode Episode) ([]Episode, error)
}

// SimilarItem is a semantically similar stored interaction.
type SimilarItem struct {
	Action     string  `json:"action"`
	Similarity float64 `json:"similarity"`
	ClusterID  string  `json:"cluster_id,omitempty"`
}

// SimilarityIndex finds stored interactions semantically close to an
// embedding. Backs the cluster suggestion strategy.
type SimilarityIndex interface {
	FindSimilar(ctx context.Context, embedding []float32, threshold float64) ([]SimilarItem, error)
}

// ProfileStore bootstraps a user's preferences, patterns, and facts.
type ProfileStore interface {
	Bootstrap(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}

// ConsolidationPayload is the batch handed to the persistence sink.
type ConsolidationPayload struct {
	Interactions []Episode                `json:"interactions,omitempty"`
	Facts        []models.Fact            `json:"facts,omitempty"`
	Learnings    []models.FeedbackPattern `json:"learnings,omitempty"`
}

// Consolidator is the fire-and-forget persistence sink. Implementations
// must not block the caller on the actual write; delivery is best-effort
// with bounded retry and a dead-letter log.
type Consolidator interface {
	Consolidate(ctx context.Context, userID uuid.UUID, payload ConsolidationPayload) error
}
