// Package tuner adjusts the engine's scoring parameters from aggregated
// feedback: per-type confidence thresholds, per-(type, action) multipliers,
// and the ranking feature-weight vector.
package tuner

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/models"
)

// Threshold blending and bounds. The new threshold is blended 90/10 with
// the previous one so a single noisy window cannot swing scoring.
const (
	thresholdBlendOld = 0.9
	thresholdBlendNew = 0.1
)

// ConfidenceBucket aggregates acceptance outcomes for suggestions whose
// confidence fell in [Low, High).
type ConfidenceBucket struct {
	Low            float64
	High           float64
	AcceptanceRate float64
	Samples        int
}

// Tuner owns per-type thresholds and the ranking weight vector, and routes
// acceptance observations into the weight store.
type Tuner struct {
	mu         sync.RWMutex
	thresholds map[models.StrategyType]float64
	rankings   models.RankingWeights
	weights    *WeightStore
	logger     *zap.Logger
}

// New creates a tuner with default thresholds and ranking weights
func New(weights *WeightStore, defaultThreshold float64, logger *zap.Logger) *Tuner {
	return &Tuner{
		thresholds: map[models.StrategyType]float64{
			models.StrategyPattern:    defaultThreshold,
			models.StrategyCluster:    defaultThreshold,
			models.StrategyContextual: defaultThreshold,
			models.StrategyHistorical: defaultThreshold,
		},
		rankings: models.DefaultRankingWeights(),
		weights:  weights,
		logger:   logger,
	}
}

// Weights exposes the underlying weight store for scoring reads
func (t *Tuner) Weights() *WeightStore {
	return t.weights
}

// Threshold returns the current confidence threshold for a strategy type
func (t *Tuner) Threshold(ptype models.StrategyType) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if threshold, ok := t.thresholds[ptype]; ok {
		return threshold
	}
	return models.ClampThreshold(0.6)
}

// Thresholds returns a snapshot of all per-type thresholds
func (t *Tuner) Thresholds() map[models.StrategyType]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snapshot := make(map[models.StrategyType]float64, len(t.thresholds))
	for ptype, threshold := range t.thresholds {
		snapshot[ptype] = threshold
	}
	return snapshot
}

// Rankings returns the current ranking weight vector
func (t *Tuner) Rankings() models.RankingWeights {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rankings
}

// AdjustThreshold moves a strategy's threshold toward the confidence bucket
// that historically maximized acceptanceRate x sampleShare, blended with the
// previous value and clamped to its bounds.
func (t *Tuner) AdjustThreshold(ptype models.StrategyType, buckets []ConfidenceBucket) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.thresholds[ptype]
	if !ok {
		current = 0.6
	}

	totalSamples := 0
	for _, bucket := range buckets {
		totalSamples += bucket.Samples
	}
	if totalSamples == 0 {
		return current
	}

	best := current
	bestScore := -1.0
	for _, bucket := range buckets {
		share := float64(bucket.Samples) / float64(totalSamples)
		score := bucket.AcceptanceRate * share
		if score > bestScore {
			bestScore = score
			best = bucket.Low
		}
	}

	adjusted := models.ClampThreshold(thresholdBlendOld*current + thresholdBlendNew*best)
	t.thresholds[ptype] = adjusted

	t.logger.Debug("threshold_adjusted",
		zap.String("strategy_type", string(ptype)),
		zap.Float64("previous", current),
		zap.Float64("adjusted", adjusted))

	return adjusted
}

// RecordOutcome folds one acceptance observation into the pattern weights.
// Scale is the orchestrator's decaying global learning rate.
func (t *Tuner) RecordOutcome(ctx context.Context, userID uuid.UUID, ptype models.StrategyType, action string, accepted bool, scale float64) *models.PatternWeight {
	return t.weights.Record(ctx, userID, ptype, action, accepted, scale)
}

// FineTuneRankings nudges ranking feature weights toward the observed
// contribution of each feature among accepted suggestions, then renormalizes
// so the vector keeps summing to 1.
func (t *Tuner) FineTuneRankings(observed models.RankingWeights, scale float64) models.RankingWeights {
	if scale <= 0 {
		scale = 1
	}
	step := DefaultLearningRate * scale

	t.mu.Lock()
	defer t.mu.Unlock()

	target := observed.Normalize()
	t.rankings = models.RankingWeights{
		Confidence:     t.rankings.Confidence + step*(target.Confidence-t.rankings.Confidence),
		Recency:        t.rankings.Recency + step*(target.Recency-t.rankings.Recency),
		Frequency:      t.rankings.Frequency + step*(target.Frequency-t.rankings.Frequency),
		UserPreference: t.rankings.UserPreference + step*(target.UserPreference-t.rankings.UserPreference),
		ContextMatch:   t.rankings.ContextMatch + step*(target.ContextMatch-t.rankings.ContextMatch),
	}.Normalize()

	return t.rankings
}
