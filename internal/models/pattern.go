package models

import "time"

const (
	// MultiplierMin and MultiplierMax bound a pattern's confidence multiplier.
	MultiplierMin = 0.5
	MultiplierMax = 1.5
	// MultiplierInitial is the neutral starting multiplier for a new pattern.
	MultiplierInitial = 1.0

	// ThresholdMin and ThresholdMax bound per-type confidence thresholds.
	ThresholdMin = 0.3
	ThresholdMax = 0.95
)

// PatternWeight tracks acceptance history for a (type, action) pair and
// carries the bounded multiplier applied to that pattern's base confidence.
type PatternWeight struct {
	Type       StrategyType `json:"type"`
	Action     string       `json:"action"`
	Positive   int          `json:"positive"`
	Negative   int          `json:"negative"`
	Total      int          `json:"total"`
	Multiplier float64      `json:"multiplier"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// AcceptanceRate returns positive/total, or 0 with no observations.
func (w *PatternWeight) AcceptanceRate() float64 {
	if w.Total == 0 {
		return 0
	}
	return float64(w.Positive) / float64(w.Total)
}

// ClampMultiplier bounds a multiplier to [MultiplierMin, MultiplierMax].
func ClampMultiplier(m float64) float64 {
	if m < MultiplierMin {
		return MultiplierMin
	}
	if m > MultiplierMax {
		return MultiplierMax
	}
	return m
}

// ClampThreshold bounds a confidence threshold to [ThresholdMin, ThresholdMax].
func ClampThreshold(t float64) float64 {
	if t < ThresholdMin {
		return ThresholdMin
	}
	if t > ThresholdMax {
		return ThresholdMax
	}
	return t
}

// SequencePattern is a frequency-weighted action sequence observed across
// episodes. The raw sequence string joins actions with "→".
type SequencePattern struct {
	Sequence  []string  `json:"sequence"`
	Frequency int       `json:"frequency"`
	LastSeen  time.Time `json:"last_seen"`
}

// RankingWeights is the linear feature-weight vector used to rank merged
// candidates. Weights are renormalized to sum to 1 after each tuning update.
type RankingWeights struct {
	Confidence     float64 `json:"confidence"`
	Recency        float64 `json:"recency"`
	Frequency      float64 `json:"frequency"`
	UserPreference float64 `json:"user_preference"`
	ContextMatch   float64 `json:"context_match"`
}

// DefaultRankingWeights returns the initial, already-normalized vector.
func DefaultRankingWeights() RankingWeights {
	return RankingWeights{
		Confidence:     0.3,
		Recency:        0.2,
		Frequency:      0.2,
		UserPreference: 0.15,
		ContextMatch:   0.15,
	}
}

// RankingFeatures holds one candidate's feature values, each in [0, 1].
// A strategy that carries no signal for a feature leaves it at zero.
type RankingFeatures struct {
	Confidence     float64
	Recency        float64
	Frequency      float64
	UserPreference float64
	ContextMatch   float64
}

// Score returns the weighted linear combination of the feature values.
func (r RankingWeights) Score(f RankingFeatures) float64 {
	return r.Confidence*f.Confidence +
		r.Recency*f.Recency +
		r.Frequency*f.Frequency +
		r.UserPreference*f.UserPreference +
		r.ContextMatch*f.ContextMatch
}

// Sum returns the total of all feature weights.
func (r RankingWeights) Sum() float64 {
	return r.Confidence + r.Recency + r.Frequency + r.UserPreference + r.ContextMatch
}

// Normalize scales the vector so its weights sum to 1. A zero vector is
// reset to the defaults rather than divided.
func (r RankingWeights) Normalize() RankingWeights {
	sum := r.Sum()
	if sum <= 0 {
		return DefaultRankingWeights()
	}
	return RankingWeights{
		Confidence:     r.Confidence / sum,
		Recency:        r.Recency / sum,
		Frequency:      r.Frequency / sum,
		UserPreference: r.UserPreference / sum,
		ContextMatch:   r.ContextMatch / sum,
	}
}
