package models

import (
	"time"

	"github.com/google/uuid"
)

// StrategyType identifies which strategy produced a suggestion or prediction.
type StrategyType string

const (
	StrategyPattern    StrategyType = "pattern"
	StrategyCluster    StrategyType = "cluster"
	StrategyContextual StrategyType = "contextual"
	StrategyHistorical StrategyType = "historical"
	StrategySequence   StrategyType = "sequence"
	StrategyTemporal   StrategyType = "temporal"
	StrategyBehavioral StrategyType = "behavioral"
)

// Suggestion is a ranked candidate next action offered proactively.
// Suggestions are request-scoped: created, scored, optionally cached,
// then discarded. Confidence is always clamped to [0, 1].
type Suggestion struct {
	ID         uuid.UUID      `json:"id"`
	Type       StrategyType   `json:"type"`
	Action     string         `json:"action"`
	Confidence float64        `json:"confidence"`
	Timing     string         `json:"timing,omitempty"`
	Reason     string         `json:"reason"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Prediction is a forecast of the user's next action. High-confidence,
// near-term predictions trigger resource preloading.
type Prediction struct {
	ID         uuid.UUID      `json:"id"`
	Action     string         `json:"action"`
	Confidence float64        `json:"confidence"`
	Timing     time.Duration  `json:"timing"`
	Sources    []StrategyType `json:"sources"`
	Reason     string         `json:"reason"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ClampConfidence bounds a confidence score to [0, 1]. Out-of-range values
// are a defect in a strategy's arithmetic; they are clamped, never raised.
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
