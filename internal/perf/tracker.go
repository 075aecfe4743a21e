// Package perf tracks per-action execution statistics: rolling success
// rates, an incremental duration mean, and trend classification over the
// most recent observations.
package perf

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/models"
)

// Observation is one recorded execution outcome
type Observation struct {
	Success  bool
	Duration time.Duration
}

type actionWindow struct {
	recent []Observation // capped at models.TrendWindow, oldest first
	metric models.ActionMetric
}

// Tracker accumulates action metrics in memory and persists them through
// the metric repository. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	windows map[uuid.UUID]map[string]*actionWindow
	metrics database.ActionMetricRepositoryInterface
	logger  *zap.Logger
	now     func() time.Time
}

// NewTracker creates a performance tracker
func NewTracker(metrics database.ActionMetricRepositoryInterface, logger *zap.Logger) *Tracker {
	return &Tracker{
		windows: make(map[uuid.UUID]map[string]*actionWindow),
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Record updates the metric for an action with one observation. The duration
// mean is incremental, so no history beyond the trend window is kept. A
// trend turning declining records a regression.
func (t *Tracker) Record(ctx context.Context, userID uuid.UUID, action string, obs Observation) (*models.ActionMetric, error) {
	t.mu.Lock()
	window := t.window(userID, action)

	window.recent = append(window.recent, obs)
	if len(window.recent) > models.TrendWindow {
		window.recent = window.recent[len(window.recent)-models.TrendWindow:]
	}

	m := &window.metric
	previousTrend := m.Trend

	m.Action = action
	m.Total++
	if obs.Success {
		m.Successful++
	} else {
		m.Failed++
	}
	m.SuccessRate = float64(m.Successful) / float64(m.Total)

	// Incremental mean: avg' = avg + (x - avg) / n
	m.AvgTime += (obs.Duration - m.AvgTime) / time.Duration(m.Total)

	m.Trend = classifyTrend(window.recent)
	m.UpdatedAt = t.now()

	snapshot := *m
	regressed := previousTrend != models.TrendDeclining && m.Trend == models.TrendDeclining
	var regression *models.Regression
	if regressed {
		first, second := halfRates(window.recent)
		regression = &models.Regression{
			Action:     action,
			FromRate:   first,
			ToRate:     second,
			DetectedAt: m.UpdatedAt,
		}
	}
	t.mu.Unlock()

	if err := t.metrics.Upsert(ctx, userID, &snapshot); err != nil {
		t.logger.Error("action_metric_persist_failed",
			zap.String("action", action),
			zap.Error(err))
	}

	if regression != nil {
		t.logger.Warn("performance_regression_detected",
			zap.String("action", action),
			zap.Float64("from_rate", regression.FromRate),
			zap.Float64("to_rate", regression.ToRate))
		if err := t.metrics.CreateRegression(ctx, userID, regression); err != nil {
			t.logger.Error("regression_persist_failed",
				zap.String("action", action),
				zap.Error(err))
		}
	}

	return &snapshot, nil
}

// Metric returns the current in-memory metric for an action, or nil
func (t *Tracker) Metric(userID uuid.UUID, action string) *models.ActionMetric {
	t.mu.Lock()
	defer t.mu.Unlock()

	byAction, ok := t.windows[userID]
	if !ok {
		return nil
	}
	window, ok := byAction[action]
	if !ok {
		return nil
	}
	snapshot := window.metric
	return &snapshot
}

// Snapshot returns all in-memory metrics for a user
func (t *Tracker) Snapshot(userID uuid.UUID) []*models.ActionMetric {
	t.mu.Lock()
	defer t.mu.Unlock()

	byAction, ok := t.windows[userID]
	if !ok {
		return nil
	}
	metrics := make([]*models.ActionMetric, 0, len(byAction))
	for _, window := range byAction {
		snapshot := window.metric
		metrics = append(metrics, &snapshot)
	}
	return metrics
}

func (t *Tracker) window(userID uuid.UUID, action string) *actionWindow {
	byAction, ok := t.windows[userID]
	if !ok {
		byAction = make(map[string]*actionWindow)
		t.windows[userID] = byAction
	}
	window, ok := byAction[action]
	if !ok {
		window = &actionWindow{metric: models.ActionMetric{Action: action, Trend: models.TrendStable}}
		byAction[action] = window
	}
	return window
}

// classifyTrend compares the success rate of the first and second halves of
// the recent observations. Fewer than four observations is always stable.
func classifyTrend(recent []Observation) models.Trend {
	if len(recent) < 4 {
		return models.TrendStable
	}

	first, second := halfRates(recent)
	switch {
	case second-first > models.TrendDelta:
		return models.TrendImproving
	case first-second > models.TrendDelta:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

func halfRates(recent []Observation) (first, second float64) {
	mid := len(recent) / 2
	return successRate(recent[:mid]), successRate(recent[mid:])
}

func successRate(obs []Observation) float64 {
	if len(obs) == 0 {
		return 0
	}
	successes := 0
	for _, o := range obs {
		if o.Success {
			successes++
		}
	}
	return float64(successes) / float64(len(obs))
}
