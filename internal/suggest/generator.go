// Package suggest generates ranked proactive suggestions from four
// independent strategies and tracks whether they were accepted.
package suggest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/cache"
	"github.com/praxislabs/foresight/internal/memory"
	"github.com/praxislabs/foresight/internal/models"
	"github.com/praxislabs/foresight/internal/tuner"
)

// MaxSuggestions caps the ranked list returned per call
const MaxSuggestions = 5

// bufferTTL bounds how long an ungraded suggestion stays eligible for
// per-suggestion boosting.
const bufferTTL = 10 * time.Minute

// Merge adjustments: pattern-sourced candidates and error-driven triggers
// are promoted, actions carrying a generic marker are demoted.
const (
	patternBoost = 1.2
	errorBoost   = 1.3
	genericCut   = 0.8
)

var genericMarkers = []string{"best_practices", "general_advice"}

// PatternSource supplies the stored sequence patterns the pattern strategy
// matches against. Lookups fail open: implementations return nil on error.
type PatternSource interface {
	SequencePatterns(ctx context.Context, userID uuid.UUID) []models.SequencePattern
}

// FeedbackSink receives the feedback record appended on every tracked outcome
type FeedbackSink interface {
	Append(ctx context.Context, record *models.FeedbackRecord) error
}

type bufferedSuggestion struct {
	suggestion *models.Suggestion
	userID     uuid.UUID
	sessionID  string
	tracked    bool
	bufferedAt time.Time
}

// Generator produces ranked suggestions and routes acceptance outcomes into
// the tuner. Construct one per process and share it; all methods are safe
// for concurrent use.
type Generator struct {
	episodes memory.EpisodicReader
	index    memory.SimilarityIndex
	profiles memory.ProfileStore
	patterns PatternSource
	tuner    *tuner.Tuner
	rules    *RuleSet
	cache    *cache.SuggestionCache
	feedback FeedbackSink
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	buffer map[uuid.UUID]*bufferedSuggestion
}

// Config carries the Generator's collaborators
type Config struct {
	Episodes memory.EpisodicReader
	Index    memory.SimilarityIndex
	Profiles memory.ProfileStore
	Patterns PatternSource
	Tuner    *tuner.Tuner
	Rules    *RuleSet
	Cache    *cache.SuggestionCache
	Feedback FeedbackSink
	Logger   *zap.Logger
}

// NewGenerator creates a suggestion generator
func NewGenerator(cfg Config) *Generator {
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	return &Generator{
		episodes: cfg.Episodes,
		index:    cfg.Index,
		profiles: cfg.Profiles,
		patterns: cfg.Patterns,
		tuner:    cfg.Tuner,
		rules:    rules,
		cache:    cfg.Cache,
		feedback: cfg.Feedback,
		logger:   cfg.Logger,
		now:      time.Now,
		buffer:   make(map[uuid.UUID]*bufferedSuggestion),
	}
}

// Generate returns at most MaxSuggestions ranked suggestions for the
// context. An identical context within the cache TTL replays the cached
// list verbatim.
func (g *Generator) Generate(ctx context.Context, sctx *models.Context) []*models.Suggestion {
	if g.cache != nil {
		if cached := g.cache.Get(ctx, sctx); cached != nil {
			return cached
		}
	}

	candidates := g.runStrategies(ctx, sctx)
	merged := g.merge(ctx, sctx, candidates)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].score > merged[j].score
	})
	if len(merged) > MaxSuggestions {
		merged = merged[:MaxSuggestions]
	}

	suggestions := make([]*models.Suggestion, 0, len(merged))
	for _, rs := range merged {
		if rs.suggestion.Confidence >= g.tuner.Threshold(rs.suggestion.Type) {
			suggestions = append(suggestions, rs.suggestion)
		}
	}

	g.bufferSuggestions(sctx, suggestions)

	if g.cache != nil {
		if err := g.cache.Set(ctx, sctx, suggestions); err != nil {
			g.logger.Warn("suggestion_cache_write_failed", zap.Error(err))
		}
	}

	g.logger.Debug("suggestions_generated",
		zap.String("user_id", sctx.UserID.String()),
		zap.Int("count", len(suggestions)))

	return suggestions
}

// TrackOutcome records acceptance or rejection of a suggestion. The first
// report for a buffered suggestion updates its pattern weight; repeats and
// reports for expired suggestions still append feedback but no longer
// influence boosting.
func (g *Generator) TrackOutcome(ctx context.Context, suggestionID uuid.UUID, accepted bool, scale float64) {
	g.mu.Lock()
	g.evictLocked()
	entry, ok := g.buffer[suggestionID]
	var boost bool
	if ok && !entry.tracked {
		entry.tracked = true
		boost = true
	}
	g.mu.Unlock()

	record := &models.FeedbackRecord{
		ID:           uuid.New(),
		SuggestionID: suggestionID,
		Accepted:     accepted,
		Kind:         models.FeedbackImplicit,
		Timestamp:    g.now(),
	}
	if ok {
		record.UserID = entry.userID
		record.SessionID = entry.sessionID
		record.Type = entry.suggestion.Type
		record.Action = entry.suggestion.Action
		record.Confidence = entry.suggestion.Confidence
	}

	if boost {
		g.tuner.RecordOutcome(ctx, entry.userID, entry.suggestion.Type, entry.suggestion.Action, accepted, scale)
	}

	if g.feedback != nil {
		if err := g.feedback.Append(ctx, record); err != nil {
			g.logger.Warn("feedback_append_failed", zap.Error(err))
		}
	}
}

func (g *Generator) runStrategies(ctx context.Context, sctx *models.Context) []candidate {
	type strategyFn func(context.Context, *models.Context) []candidate
	strategies := []strategyFn{
		g.patternStrategy,
		g.clusterStrategy,
		g.contextualStrategy,
		g.historicalStrategy,
	}

	results := make([][]candidate, len(strategies))
	var wg sync.WaitGroup
	for i, strategy := range strategies {
		wg.Add(1)
		go func(i int, strategy strategyFn) {
			defer wg.Done()
			results[i] = strategy(ctx, sctx)
		}(i, strategy)
	}
	wg.Wait()

	var all []candidate
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}

type mergeKey struct {
	strategy models.StrategyType
	action   string
}

// rankedSuggestion pairs a suggestion with its linear feature score under
// the tuner's current ranking weight vector.
type rankedSuggestion struct {
	suggestion *models.Suggestion
	score      float64
}

func (g *Generator) merge(ctx context.Context, sctx *models.Context, candidates []candidate) []rankedSuggestion {
	best := make(map[mergeKey]candidate)
	order := make([]mergeKey, 0, len(candidates))
	for _, c := range candidates {
		key := mergeKey{strategy: c.strategy, action: c.action}
		existing, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = c
			continue
		}
		if c.confidence > existing.confidence {
			// Keep the stronger confidence but remember an error trigger
			// from either duplicate.
			c.errorDriven = c.errorDriven || existing.errorDriven
			best[key] = c
		} else if c.errorDriven {
			existing.errorDriven = true
			best[key] = existing
		}
	}

	now := g.now()
	rankings := g.tuner.Rankings()
	suggestions := make([]rankedSuggestion, 0, len(order))
	for _, key := range order {
		c := best[key]

		if c.strategy == models.StrategyPattern {
			c.confidence *= patternBoost
		}
		if c.errorDriven {
			c.confidence *= errorBoost
			if c.match < 1 {
				c.match = 1
			}
		}
		if isGeneric(c.action) {
			c.confidence *= genericCut
		}
		multiplier := g.tuner.Weights().Multiplier(ctx, sctx.UserID, c.strategy, c.action)
		c.confidence *= multiplier

		s := newSuggestion(c, now)
		score := rankings.Score(models.RankingFeatures{
			Confidence:     s.Confidence,
			Recency:        c.recency,
			Frequency:      c.frequency,
			UserPreference: (multiplier - models.MultiplierMin) / (models.MultiplierMax - models.MultiplierMin),
			ContextMatch:   c.match,
		})
		suggestions = append(suggestions, rankedSuggestion{suggestion: s, score: score})
	}
	return suggestions
}

func (g *Generator) bufferSuggestions(sctx *models.Context, suggestions []*models.Suggestion) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evictLocked()
	for _, s := range suggestions {
		g.buffer[s.ID] = &bufferedSuggestion{
			suggestion: s,
			userID:     sctx.UserID,
			sessionID:  sctx.SessionID,
			bufferedAt: g.now(),
		}
	}
}

func (g *Generator) evictLocked() {
	cutoff := g.now().Add(-bufferTTL)
	for id, entry := range g.buffer {
		if entry.bufferedAt.Before(cutoff) {
			delete(g.buffer, id)
		}
	}
}

func isGeneric(action string) bool {
	for _, marker := range genericMarkers {
		if strings.Contains(action, marker) {
			return true
		}
	}
	return false
}
