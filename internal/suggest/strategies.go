package suggest

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/models"
)

// Strategy tuning constants. Pattern confidence combines a capped frequency
// term with an exponential recency term; cluster candidates need at least
// two supporting neighbors above the similarity floor.
const (
	patternMinFrequency  = 3
	patternRecencyDecay  = 7 * 24 * time.Hour
	clusterSimilarityMin = 0.7
	clusterMinOccurrence = 2
	historicalFactMin    = 0.7
	historicalConfidence = 0.75

	recallWindow = 2 * time.Hour
	recallLimit  = 50
)

type candidate struct {
	strategy    models.StrategyType
	action      string
	confidence  float64
	reason      string
	metadata    map[string]any
	errorDriven bool

	// Ranking feature values, each in [0, 1]. Strategies leave a feature
	// at zero when their evidence carries no signal for it.
	recency   float64
	frequency float64
	match     float64
}

// patternStrategy matches stored sequence patterns against the user's recent
// action sequence and emits the token following the matched prefix.
func (g *Generator) patternStrategy(ctx context.Context, sctx *models.Context) []candidate {
	episodes, err := g.episodes.RecallRecent(ctx, sctx.UserID, recallWindow, recallLimit)
	if err != nil {
		g.logger.Warn("episode_recall_failed", zap.Error(err))
		return nil
	}
	if len(episodes) == 0 {
		return nil
	}

	recent := make([]string, 0, len(episodes))
	for _, episode := range episodes {
		recent = append(recent, episode.Action)
	}

	patterns := g.patterns.SequencePatterns(ctx, sctx.UserID)

	var candidates []candidate
	for _, pattern := range patterns {
		if pattern.Frequency < patternMinFrequency || len(pattern.Sequence) < 2 {
			continue
		}
		prefix := pattern.Sequence[:len(pattern.Sequence)-1]
		if !hasSuffix(recent, prefix) {
			continue
		}

		next := pattern.Sequence[len(pattern.Sequence)-1]
		age := sctx.Timestamp.Sub(pattern.LastSeen)
		recency := math.Exp(-float64(age) / float64(patternRecencyDecay))
		confidence := math.Min(float64(pattern.Frequency)/10, 0.5) + recency*0.5

		candidates = append(candidates, candidate{
			strategy:   models.StrategyPattern,
			action:     next,
			confidence: confidence,
			reason:     "follows a sequence you repeat often",
			recency:    recency,
			frequency:  math.Min(float64(pattern.Frequency)/10, 1),
			metadata: map[string]any{
				"frequency": pattern.Frequency,
			},
		})
	}
	return candidates
}

// clusterStrategy finds semantically similar stored interactions and promotes
// actions that recur within the similarity set.
func (g *Generator) clusterStrategy(ctx context.Context, sctx *models.Context) []candidate {
	if !sctx.HasEmbedding() {
		return nil
	}

	similar, err := g.index.FindSimilar(ctx, sctx.Embedding, clusterSimilarityMin)
	if err != nil {
		g.logger.Warn("similarity_lookup_failed", zap.Error(err))
		return nil
	}
	if len(similar) == 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, item := range similar {
		counts[item.Action]++
	}

	clusterSize := len(similar)
	var candidates []candidate
	for action, frequency := range counts {
		if frequency < clusterMinOccurrence {
			continue
		}
		share := float64(frequency) / float64(clusterSize)
		confidence := math.Min(0.5+share*0.5, 1.0)
		candidates = append(candidates, candidate{
			strategy:   models.StrategyCluster,
			action:     action,
			confidence: confidence,
			reason:     "common in situations similar to this one",
			frequency:  share,
			match:      share,
			metadata: map[string]any{
				"cluster_size": clusterSize,
				"frequency":    frequency,
			},
		})
	}
	return candidates
}

// contextualStrategy applies the fixed rule set to the context snapshot.
func (g *Generator) contextualStrategy(_ context.Context, sctx *models.Context) []candidate {
	var candidates []candidate
	for _, rule := range g.rules.Match(sctx) {
		// Rules fire off the live snapshot, so recency and context match
		// are both at full strength.
		candidates = append(candidates, candidate{
			strategy:    models.StrategyContextual,
			action:      rule.Action,
			confidence:  rule.Confidence,
			reason:      rule.Reason,
			errorDriven: rule.OnError,
			recency:     1,
			match:       1,
			metadata: map[string]any{
				"rule": rule.Name,
			},
		})
	}
	return candidates
}

// historicalStrategy surfaces high-confidence facts about the user's
// frequent actions at a fixed confidence.
func (g *Generator) historicalStrategy(ctx context.Context, sctx *models.Context) []candidate {
	profile, err := g.profiles.Bootstrap(ctx, sctx.UserID)
	if err != nil {
		g.logger.Warn("profile_bootstrap_failed", zap.Error(err))
		return nil
	}
	if profile == nil {
		return nil
	}

	var candidates []candidate
	for _, fact := range profile.Facts {
		if fact.Confidence <= historicalFactMin || fact.Action == "" {
			continue
		}
		candidates = append(candidates, candidate{
			strategy:   models.StrategyHistorical,
			action:     fact.Action,
			confidence: historicalConfidence,
			reason:     fact.Content,
		})
	}
	return candidates
}

func hasSuffix(sequence, suffix []string) bool {
	if len(suffix) == 0 || len(suffix) > len(sequence) {
		return false
	}
	offset := len(sequence) - len(suffix)
	for i, token := range suffix {
		if sequence[offset+i] != token {
			return false
		}
	}
	return true
}

func newSuggestion(c candidate, now time.Time) *models.Suggestion {
	return &models.Suggestion{
		ID:         uuid.New(),
		Type:       c.strategy,
		Action:     c.action,
		Confidence: models.ClampConfidence(c.confidence),
		Reason:     c.reason,
		Metadata:   c.metadata,
		CreatedAt:  now,
	}
}
