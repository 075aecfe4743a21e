// Package learning coordinates tuning work across four cadences: an
// immediate schedule run synchronously on every event, a 5-second batch
// drain, and hourly, daily, and weekly maintenance schedules.
package learning

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/models"
	"github.com/praxislabs/foresight/internal/queue"
	"github.com/praxislabs/foresight/internal/tuner"
)

// EventType names a learning event source.
type EventType string

const (
	EventSuggestionOutcome   EventType = "suggestion_outcome"
	EventPredictionValidated EventType = "prediction_validated"
	EventWorkflowCompleted   EventType = "workflow_completed"
	EventFeedback            EventType = "feedback"
)

const (
	// Batch drain: every 5 seconds, up to 10 queued events, each weighted
	// by exp(-age/1day) x recentDataWeight. Updates below 0.1 are dropped.
	DefaultDrainInterval = 5 * time.Second
	drainBatchSize       = 10
	minUpdateWeight      = 0.1
	recencyScale         = 24 * time.Hour

	// Recent/historical data blending, rebalanced to 50/50 for one hour
	// when a single event type exceeds 80% of the last <=1000 events.
	defaultRecentWeight     = 0.7
	defaultHistoricalWeight = 0.3
	guardedWeight           = 0.5
	guardDuration           = time.Hour
	guardDominance          = 0.8
	guardSampleCap          = 1000
	guardSampleFloor        = 20

	// Global learning rate, decayed hourly.
	initialRate = 1.0
	rateDecay   = 0.99
	rateFloor   = 0.001

	feedbackRetention   = 30 * 24 * time.Hour
	regressionRetention = 7 * 24 * time.Hour
	weeklyDecayFactor   = 0.95
)

// Event is one learning observation fed into the orchestrator.
type Event struct {
	Type       EventType           `json:"type"`
	UserID     uuid.UUID           `json:"user_id"`
	Strategy   models.StrategyType `json:"strategy,omitempty"`
	Action     string              `json:"action,omitempty"`
	Confidence float64             `json:"confidence,omitempty"`
	Accepted   bool                `json:"accepted"`
	Timestamp  time.Time           `json:"timestamp"`
}

type namedTask struct {
	name string
	run  func(ctx context.Context) error
}

type bucketStats struct {
	accepted [5]int
	total    [5]int
}

func bucketIndex(confidence float64) int {
	idx := int(confidence * 5)
	if idx > 4 {
		idx = 4
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// Config carries the orchestrator's collaborators and schedule intervals.
// Zero intervals fall back to the production cadences.
type Config struct {
	Tuner    *tuner.Tuner
	Feedback database.FeedbackRepositoryInterface
	Metrics  database.ActionMetricRepositoryInterface
	Jobs     queue.JobQueue
	Logger   *zap.Logger

	DrainInterval  time.Duration
	HourlyInterval time.Duration
	DailyInterval  time.Duration
	WeeklyInterval time.Duration
}

// Orchestrator owns the event queue, the recent/historical blend, and the
// global decaying learning rate applied to every tuning update.
type Orchestrator struct {
	tuner    *tuner.Tuner
	feedback database.FeedbackRepositoryInterface
	metrics  database.ActionMetricRepositoryInterface
	jobs     queue.JobQueue
	logger   *zap.Logger
	now      func() time.Time

	drainInterval  time.Duration
	hourlyInterval time.Duration
	dailyInterval  time.Duration
	weeklyInterval time.Duration

	mu               sync.Mutex
	pending          []*Event
	recentTypes      []EventType
	buckets          map[models.StrategyType]*bucketStats
	users            map[uuid.UUID]struct{}
	recentWeight     float64
	historicalWeight float64
	guardUntil       time.Time
	rate             float64

	hourly []namedTask
	daily  []namedTask
	weekly []namedTask
}

// NewOrchestrator creates a learning orchestrator
func NewOrchestrator(cfg Config) *Orchestrator {
	o := &Orchestrator{
		tuner:            cfg.Tuner,
		feedback:         cfg.Feedback,
		metrics:          cfg.Metrics,
		jobs:             cfg.Jobs,
		logger:           cfg.Logger,
		now:              time.Now,
		drainInterval:    cfg.DrainInterval,
		hourlyInterval:   cfg.HourlyInterval,
		dailyInterval:    cfg.DailyInterval,
		weeklyInterval:   cfg.WeeklyInterval,
		buckets:          make(map[models.StrategyType]*bucketStats),
		users:            make(map[uuid.UUID]struct{}),
		recentWeight:     defaultRecentWeight,
		historicalWeight: defaultHistoricalWeight,
		rate:             initialRate,
	}
	if o.drainInterval <= 0 {
		o.drainInterval = DefaultDrainInterval
	}
	if o.hourlyInterval <= 0 {
		o.hourlyInterval = time.Hour
	}
	if o.dailyInterval <= 0 {
		o.dailyInterval = 24 * time.Hour
	}
	if o.weeklyInterval <= 0 {
		o.weeklyInterval = 7 * 24 * time.Hour
	}

	o.hourly = []namedTask{
		{"adjust_thresholds", o.adjustThresholds},
		{"decay_learning_rate", o.decayRate},
		{"restore_data_weights", o.restoreWeights},
	}
	o.daily = []namedTask{
		{"prune_stale_data", o.pruneStaleData},
		{"fine_tune_rankings", o.fineTuneRankings},
	}
	o.weekly = []namedTask{
		{"decay_pattern_weights", o.decayPatternWeights},
	}
	return o
}

// RegisterDaily appends a task to the daily schedule
func (o *Orchestrator) RegisterDaily(name string, run func(ctx context.Context) error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.daily = append(o.daily, namedTask{name, run})
}

// RegisterWeekly appends a task to the weekly schedule
func (o *Orchestrator) RegisterWeekly(name string, run func(ctx context.Context) error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.weekly = append(o.weekly, namedTask{name, run})
}

// CoordinateLearning enqueues the event and runs the immediate schedule
// synchronously before returning. Tuning itself happens in the batch drain.
func (o *Orchestrator) CoordinateLearning(ctx context.Context, event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = o.now()
	}

	o.mu.Lock()
	o.pending = append(o.pending, event)
	o.recentTypes = append(o.recentTypes, event.Type)
	if len(o.recentTypes) > guardSampleCap {
		o.recentTypes = o.recentTypes[len(o.recentTypes)-guardSampleCap:]
	}

	// Immediate schedule: bookkeeping that later cadences read.
	o.users[event.UserID] = struct{}{}
	if event.Strategy != "" {
		stats, ok := o.buckets[event.Strategy]
		if !ok {
			stats = &bucketStats{}
			o.buckets[event.Strategy] = stats
		}
		idx := bucketIndex(event.Confidence)
		stats.total[idx]++
		if event.Accepted {
			stats.accepted[idx]++
		}
	}

	o.checkOverfitLocked()
	o.mu.Unlock()
}

// GlobalRate returns the decaying learning rate scalar
func (o *Orchestrator) GlobalRate() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rate
}

// DataWeights returns the current recent/historical blend
func (o *Orchestrator) DataWeights() (recent, historical float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.recentWeight, o.historicalWeight
}

// Drain applies up to one batch of queued events, in enqueue order, each
// scaled by its recency weight and the global rate.
func (o *Orchestrator) Drain(ctx context.Context) int {
	o.mu.Lock()
	n := len(o.pending)
	if n > drainBatchSize {
		n = drainBatchSize
	}
	batch := o.pending[:n]
	o.pending = o.pending[n:]
	recentWeight := o.recentWeight
	rate := o.rate
	o.mu.Unlock()

	applied := 0
	now := o.now()
	for _, event := range batch {
		age := now.Sub(event.Timestamp)
		if age < 0 {
			age = 0
		}
		weight := math.Exp(-float64(age)/float64(recencyScale)) * recentWeight
		if weight < minUpdateWeight {
			continue
		}

		switch event.Type {
		case EventSuggestionOutcome, EventFeedback:
			if event.Strategy != "" && event.Action != "" {
				o.tuner.RecordOutcome(ctx, event.UserID, event.Strategy, event.Action, event.Accepted, weight*rate)
			}
		}
		applied++
	}

	if applied > 0 {
		o.logger.Debug("learning_batch_drained",
			zap.Int("batch", len(batch)),
			zap.Int("applied", applied))
	}
	return applied
}

// Start runs the drain and maintenance schedules until ctx is cancelled
func (o *Orchestrator) Start(ctx context.Context) {
	drain := time.NewTicker(o.drainInterval)
	hourly := time.NewTicker(o.hourlyInterval)
	daily := time.NewTicker(o.dailyInterval)
	weekly := time.NewTicker(o.weeklyInterval)
	defer drain.Stop()
	defer hourly.Stop()
	defer daily.Stop()
	defer weekly.Stop()

	o.logger.Info("learning_orchestrator_started",
		zap.Duration("drain_interval", o.drainInterval))

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("learning_orchestrator_stopped")
			return
		case <-drain.C:
			o.Drain(ctx)
		case <-hourly.C:
			o.RunHourly(ctx)
		case <-daily.C:
			o.RunDaily(ctx)
		case <-weekly.C:
			o.RunWeekly(ctx)
		}
	}
}

// RunHourly executes the hourly schedule in task order
func (o *Orchestrator) RunHourly(ctx context.Context) { o.runSchedule(ctx, "hourly", o.hourly) }

// RunDaily executes the daily schedule in task order
func (o *Orchestrator) RunDaily(ctx context.Context) { o.runSchedule(ctx, "daily", o.daily) }

// RunWeekly executes the weekly schedule in task order
func (o *Orchestrator) RunWeekly(ctx context.Context) { o.runSchedule(ctx, "weekly", o.weekly) }

func (o *Orchestrator) runSchedule(ctx context.Context, schedule string, tasks []namedTask) {
	for _, task := range tasks {
		if err := task.run(ctx); err != nil {
			o.logger.Warn("learning_task_failed",
				zap.String("schedule", schedule),
				zap.String("task", task.name),
				zap.Error(err))
		}
	}
}

// checkOverfitLocked rebalances the data weights when one event type
// dominates the recent stream.
func (o *Orchestrator) checkOverfitLocked() {
	if len(o.recentTypes) < guardSampleFloor {
		return
	}

	counts := make(map[EventType]int)
	dominant := 0
	for _, t := range o.recentTypes {
		counts[t]++
		if counts[t] > dominant {
			dominant = counts[t]
		}
	}

	if float64(dominant)/float64(len(o.recentTypes)) > guardDominance {
		if o.guardUntil.IsZero() || o.now().After(o.guardUntil) {
			o.logger.Warn("overfitting_guard_engaged",
				zap.Int("dominant", dominant),
				zap.Int("window", len(o.recentTypes)))
		}
		o.recentWeight = guardedWeight
		o.historicalWeight = guardedWeight
		o.guardUntil = o.now().Add(guardDuration)
	}
}

func (o *Orchestrator) restoreWeights(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.guardUntil.IsZero() && o.now().After(o.guardUntil) {
		o.recentWeight = defaultRecentWeight
		o.historicalWeight = defaultHistoricalWeight
		o.guardUntil = time.Time{}
		o.logger.Info("overfitting_guard_released")
	}
	return nil
}

func (o *Orchestrator) decayRate(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rate *= rateDecay
	if o.rate < rateFloor {
		o.rate = rateFloor
	}
	return nil
}

func (o *Orchestrator) adjustThresholds(ctx context.Context) error {
	o.mu.Lock()
	snapshot := make(map[models.StrategyType]bucketStats, len(o.buckets))
	for ptype, stats := range o.buckets {
		snapshot[ptype] = *stats
	}
	o.mu.Unlock()

	for ptype, stats := range snapshot {
		buckets := make([]tuner.ConfidenceBucket, 0, 5)
		for i := 0; i < 5; i++ {
			if stats.total[i] == 0 {
				continue
			}
			buckets = append(buckets, tuner.ConfidenceBucket{
				Low:            float64(i) * 0.2,
				High:           float64(i+1) * 0.2,
				AcceptanceRate: float64(stats.accepted[i]) / float64(stats.total[i]),
				Samples:        stats.total[i],
			})
		}
		if len(buckets) == 0 {
			continue
		}
		o.tuner.AdjustThreshold(ptype, buckets)
	}
	return nil
}

func (o *Orchestrator) pruneStaleData(ctx context.Context) error {
	now := o.now()

	removed, err := o.feedback.DeleteOlderThan(ctx, now.Add(-feedbackRetention))
	if err != nil {
		o.logger.Warn("feedback_prune_failed", zap.Error(err))
	} else if removed > 0 {
		o.logger.Info("feedback_pruned", zap.Int64("removed", removed))
	}

	removed, err = o.metrics.DeleteRegressionsOlderThan(ctx, now.Add(-regressionRetention))
	if err != nil {
		o.logger.Warn("regression_prune_failed", zap.Error(err))
	} else if removed > 0 {
		o.logger.Info("regressions_pruned", zap.Int64("removed", removed))
	}

	if o.jobs != nil {
		job, err := queue.NewJob(queue.JobTypeSweep, uuid.Nil, map[string]string{"reason": "daily_prune"})
		if err == nil {
			if err := o.jobs.Enqueue(ctx, job); err != nil {
				o.logger.Warn("sweep_enqueue_failed", zap.Error(err))
			}
		}
	}
	return nil
}

// fineTuneRankings nudges the confidence component toward what the bucket
// stats show: if high-confidence suggestions outperform the overall
// acceptance rate the component grows, otherwise it shrinks.
func (o *Orchestrator) fineTuneRankings(ctx context.Context) error {
	o.mu.Lock()
	var accepted, total, topAccepted, topTotal int
	for _, stats := range o.buckets {
		for i := 0; i < 5; i++ {
			accepted += stats.accepted[i]
			total += stats.total[i]
		}
		topAccepted += stats.accepted[4]
		topTotal += stats.total[4]
	}
	rate := o.rate
	o.mu.Unlock()

	if total == 0 || topTotal == 0 {
		return nil
	}

	observed := o.tuner.Rankings()
	overall := float64(accepted) / float64(total)
	top := float64(topAccepted) / float64(topTotal)
	if top > overall {
		observed.Confidence += 0.05
	} else if top < overall {
		observed.Confidence -= 0.05
		if observed.Confidence < 0.05 {
			observed.Confidence = 0.05
		}
	}

	o.tuner.FineTuneRankings(observed, rate)
	return nil
}

func (o *Orchestrator) decayPatternWeights(ctx context.Context) error {
	o.mu.Lock()
	users := make([]uuid.UUID, 0, len(o.users))
	for userID := range o.users {
		users = append(users, userID)
	}
	o.mu.Unlock()

	for _, userID := range users {
		o.tuner.Weights().Decay(ctx, userID, weeklyDecayFactor)
	}
	return nil
}
