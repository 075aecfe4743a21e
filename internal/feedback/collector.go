// Package feedback records implicit and explicit feedback events,
// correlates them with recent actions, and mines durable feedback patterns.
package feedback

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/memory"
	"github.com/praxislabs/foresight/internal/models"
)

// Correlation scoring: exponential time decay with a one-minute half-life
// plus fixed bonuses for session and action-type matches. Pairs above the
// recording bar are kept.
const (
	correlationHalfLife = time.Minute
	sessionMatchBonus   = 0.3
	typeMatchBonus      = 0.3
	correlationBar      = 0.5
	correlationWindow   = 5 * time.Minute

	// Durable pattern detection: a (signal, actionType, abandoned) group
	// becomes a pattern at three occurrences once its confidence clears 0.6.
	patternMinOccurrences = 3
	patternConfidenceBar  = 0.6
)

type groupKey struct {
	signal     models.Signal
	actionType string
	abandoned  bool
}

type group struct {
	occurrences int
	sentiments  map[models.Sentiment]int
	firstSeen   time.Time
	lastSeen    time.Time
	persisted   bool
}

// Collector captures feedback, persists records, and feeds durable patterns
// into the consolidation sink. Safe for concurrent use.
type Collector struct {
	records      database.FeedbackRepositoryInterface
	episodes     memory.EpisodicReader
	consolidator memory.Consolidator
	logger       *zap.Logger
	now          func() time.Time

	mu           sync.Mutex
	groups       map[uuid.UUID]map[groupKey]*group
	correlations []models.Correlation
	accepted     int
	total        int
}

// NewCollector creates a feedback collector
func NewCollector(records database.FeedbackRepositoryInterface, episodes memory.EpisodicReader, consolidator memory.Consolidator, logger *zap.Logger) *Collector {
	return &Collector{
		records:      records,
		episodes:     episodes,
		consolidator: consolidator,
		logger:       logger,
		now:          time.Now,
		groups:       make(map[uuid.UUID]map[groupKey]*group),
	}
}

// CaptureImplicit records behavioral feedback, inferring the signal from the
// action-type tag.
func (c *Collector) CaptureImplicit(ctx context.Context, userID uuid.UUID, sessionID, actionType string) (uuid.UUID, error) {
	signal := models.InferSignal(actionType)
	record := &models.FeedbackRecord{
		ID:        uuid.New(),
		UserID:    userID,
		SessionID: sessionID,
		Action:    actionType,
		Kind:      models.FeedbackImplicit,
		Signal:    signal,
		Accepted:  signal == models.SignalSuccess,
		Timestamp: c.now(),
	}
	return record.ID, c.Append(ctx, record)
}

// CaptureExplicit records a 1-5 rating with an optional free-text correction.
// Strategy and actionType key the record to the suggestion being rated so
// downstream tuning can resolve its pattern weight.
func (c *Collector) CaptureExplicit(ctx context.Context, userID uuid.UUID, sessionID string, suggestionID uuid.UUID, strategy models.StrategyType, actionType string, rating int, correction string) (uuid.UUID, error) {
	record := &models.FeedbackRecord{
		ID:           uuid.New(),
		SuggestionID: suggestionID,
		UserID:       userID,
		SessionID:    sessionID,
		Type:         strategy,
		Action:       actionType,
		Kind:         models.FeedbackExplicit,
		Rating:       rating,
		Sentiment:    models.SentimentFromRating(rating),
		Correction:   correction,
		Accepted:     rating >= 4,
		Timestamp:    c.now(),
	}
	if correction != "" {
		record.Category = classifyCorrection(correction)
	}
	return record.ID, c.Append(ctx, record)
}

// Append persists a feedback record and folds it into correlations,
// acceptance aggregates, and pattern groups. Persistence failures are
// logged, not returned: feedback capture is fail-open.
func (c *Collector) Append(ctx context.Context, record *models.FeedbackRecord) error {
	if err := c.records.Create(ctx, record); err != nil {
		c.logger.Warn("feedback_persist_failed",
			zap.String("feedback_id", record.ID.String()),
			zap.Error(err))
	}

	c.correlate(ctx, record)

	c.mu.Lock()
	c.total++
	if record.Accepted {
		c.accepted++
	}
	pattern := c.updateGroupsLocked(record)
	c.mu.Unlock()

	if pattern != nil {
		c.persistPattern(ctx, record.UserID, pattern)
	}

	return nil
}

// AcceptanceRate returns accepted/total across all captured feedback
func (c *Collector) AcceptanceRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.total == 0 {
		return 0
	}
	return float64(c.accepted) / float64(c.total)
}

// Correlations returns the recorded feedback-action correlations
func (c *Collector) Correlations() []models.Correlation {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make([]models.Correlation, len(c.correlations))
	copy(snapshot, c.correlations)
	return snapshot
}

// correlate scores the new feedback against recent actions in the same
// session and records pairs above the bar.
func (c *Collector) correlate(ctx context.Context, record *models.FeedbackRecord) {
	if c.episodes == nil {
		return
	}

	episodes, err := c.episodes.RecallRecent(ctx, record.UserID, correlationWindow, 20)
	if err != nil {
		c.logger.Warn("correlation_recall_failed", zap.Error(err))
		return
	}

	for _, episode := range episodes {
		age := record.Timestamp.Sub(episode.Timestamp)
		if age < 0 {
			continue
		}
		score := math.Pow(0.5, float64(age)/float64(correlationHalfLife))
		if record.SessionID != "" && episode.SessionID == record.SessionID {
			score += sessionMatchBonus
		}
		if record.Action != "" && episode.Action == record.Action {
			score += typeMatchBonus
		}
		if score <= correlationBar {
			continue
		}

		c.mu.Lock()
		c.correlations = append(c.correlations, models.Correlation{
			FeedbackID: record.ID,
			Action:     episode.Action,
			ActionType: episode.Type,
			Score:      score,
			Timestamp:  record.Timestamp,
		})
		c.mu.Unlock()
	}
}

// updateGroupsLocked folds the record into its (signal, actionType,
// abandoned) group and returns a durable pattern the first time the group
// clears both bars.
func (c *Collector) updateGroupsLocked(record *models.FeedbackRecord) *models.FeedbackPattern {
	key := groupKey{
		signal:     record.Signal,
		actionType: record.Action,
		abandoned:  record.Kind == models.FeedbackImplicit && record.Signal == models.SignalFailure,
	}

	byKey, ok := c.groups[record.UserID]
	if !ok {
		byKey = make(map[groupKey]*group)
		c.groups[record.UserID] = byKey
	}
	g, ok := byKey[key]
	if !ok {
		g = &group{sentiments: make(map[models.Sentiment]int), firstSeen: record.Timestamp}
		byKey[key] = g
	}

	g.occurrences++
	g.lastSeen = record.Timestamp
	if record.Sentiment != "" {
		g.sentiments[record.Sentiment]++
	}

	if g.persisted || g.occurrences < patternMinOccurrences {
		return nil
	}

	confidence := groupConfidence(g)
	if confidence <= patternConfidenceBar {
		return nil
	}

	g.persisted = true
	return &models.FeedbackPattern{
		ID:          uuid.New(),
		Signal:      key.signal,
		ActionType:  key.actionType,
		Abandoned:   key.abandoned,
		Occurrences: g.occurrences,
		Confidence:  confidence,
		FirstSeen:   g.firstSeen,
		LastSeen:    g.lastSeen,
	}
}

func (c *Collector) persistPattern(ctx context.Context, userID uuid.UUID, pattern *models.FeedbackPattern) {
	if c.consolidator == nil {
		return
	}
	err := c.consolidator.Consolidate(ctx, userID, memory.ConsolidationPayload{
		Learnings: []models.FeedbackPattern{*pattern},
	})
	if err != nil {
		c.logger.Warn("pattern_consolidation_failed",
			zap.String("action_type", pattern.ActionType),
			zap.Error(err))
		return
	}
	c.logger.Info("feedback_pattern_detected",
		zap.String("signal", string(pattern.Signal)),
		zap.String("action_type", pattern.ActionType),
		zap.Int("occurrences", pattern.Occurrences),
		zap.Float64("confidence", pattern.Confidence))
}

// groupConfidence is base 0.5 plus a frequency bonus capped at 0.2 plus a
// sentiment-consistency bonus capped at 0.3.
func groupConfidence(g *group) float64 {
	confidence := 0.5

	frequencyBonus := float64(g.occurrences) / 20
	if frequencyBonus > 0.2 {
		frequencyBonus = 0.2
	}
	confidence += frequencyBonus

	if len(g.sentiments) > 0 {
		dominant := 0
		total := 0
		for _, count := range g.sentiments {
			total += count
			if count > dominant {
				dominant = count
			}
		}
		confidence += float64(dominant) / float64(total) * 0.3
	} else {
		// Implicit-only groups carry one signal by construction.
		confidence += 0.3
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// classifyCorrection buckets free-text corrections by keyword
func classifyCorrection(correction string) models.CorrectionCategory {
	text := strings.ToLower(correction)
	switch {
	case strings.Contains(text, "param") || strings.Contains(text, "argument") || strings.Contains(text, "value"):
		return models.CorrectionParameter
	case strings.Contains(text, "order") || strings.Contains(text, "sequence") || strings.Contains(text, "before") || strings.Contains(text, "after"):
		return models.CorrectionSequence
	case strings.Contains(text, "time") || strings.Contains(text, "timing") || strings.Contains(text, "early") || strings.Contains(text, "late"):
		return models.CorrectionTiming
	default:
		return models.CorrectionGeneral
	}
}
