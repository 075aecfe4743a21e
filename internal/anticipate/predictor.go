// Package anticipate forecasts a user's next actions from a derived user
// model and pre-warms resources for high-confidence, near-term predictions.
package anticipate

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/models"
	"github.com/praxislabs/foresight/internal/queue"
)

const (
	// PredictionWindow caps the predictions returned per call
	PredictionWindow = 3
	// PredictionThreshold is the minimum confidence a prediction needs
	PredictionThreshold = 0.7

	// Preload fires for predictions above this confidence expected within
	// the near-term horizon.
	preloadConfidence = 0.8
	preloadHorizon    = 5 * time.Minute

	// validationWindow bounds how old a prediction can be and still be
	// graded against the actual next action.
	validationWindow = 60 * time.Second
)

type rawPrediction struct {
	action     string
	confidence float64
	timing     time.Duration
	source     models.StrategyType
	reason     string
}

type bufferedPrediction struct {
	prediction *models.Prediction
	userID     uuid.UUID
	createdAt  time.Time
	graded     bool
}

// Predictor produces ranked next-action predictions. Safe for concurrent use.
type Predictor struct {
	builder *ModelBuilder
	queue   queue.JobQueue
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	buffer  []*bufferedPrediction
	correct int
	total   int
}

// NewPredictor creates an anticipation predictor. The queue may be nil, in
// which case preloading is disabled.
func NewPredictor(builder *ModelBuilder, q queue.JobQueue, logger *zap.Logger) *Predictor {
	return &Predictor{
		builder: builder,
		queue:   q,
		logger:  logger,
		now:     time.Now,
	}
}

// Predict returns at most PredictionWindow predictions with confidence at
// or above the threshold. High-confidence near-term predictions enqueue
// preload jobs as a side effect.
func (p *Predictor) Predict(ctx context.Context, sctx *models.Context) []*models.Prediction {
	model := p.builder.Model(ctx, sctx.UserID)

	var raw []rawPrediction
	raw = append(raw, p.sequenceStrategy(ctx, model, sctx)...)
	raw = append(raw, p.temporalStrategy(model, sctx)...)
	raw = append(raw, p.contextualStrategy(model, sctx)...)
	raw = append(raw, p.behavioralStrategy(ctx, model, sctx)...)

	predictions := p.combine(raw)

	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Confidence > predictions[j].Confidence
	})
	if len(predictions) > PredictionWindow {
		predictions = predictions[:PredictionWindow]
	}

	p.bufferPredictions(sctx.UserID, predictions)
	p.preload(ctx, sctx.UserID, predictions)

	p.logger.Debug("predictions_generated",
		zap.String("user_id", sctx.UserID.String()),
		zap.Int("count", len(predictions)))

	return predictions
}

// Validate grades buffered predictions against the action the user actually
// took. Each call counts one observation toward the accuracy metric.
func (p *Predictor) Validate(userID uuid.UUID, actualAction string) {
	now := p.now()
	cutoff := now.Add(-validationWindow)

	p.mu.Lock()
	defer p.mu.Unlock()

	matched := false
	kept := p.buffer[:0]
	for _, entry := range p.buffer {
		if entry.createdAt.Before(cutoff) {
			continue
		}
		if !entry.graded && entry.userID == userID && entry.prediction.Action == actualAction {
			entry.graded = true
			matched = true
		}
		kept = append(kept, entry)
	}
	p.buffer = kept

	p.total++
	if matched {
		p.correct++
	}
}

// Accuracy returns correct/total graded predictions, 0 before any grading
func (p *Predictor) Accuracy() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total == 0 {
		return 0
	}
	return float64(p.correct) / float64(p.total)
}

// sequenceStrategy predicts the most likely continuation of the user's
// recent actions from the model's sequence table.
func (p *Predictor) sequenceStrategy(ctx context.Context, model *models.UserModel, sctx *models.Context) []rawPrediction {
	episodes, err := p.builder.episodes.RecallRecent(ctx, sctx.UserID, time.Hour, 10)
	if err != nil {
		p.logger.Warn("prediction_recall_failed", zap.Error(err))
		return nil
	}
	if len(episodes) == 0 {
		return nil
	}
	last := episodes[len(episodes)-1].Action

	prefix := last + sequenceSeparator
	totalFromLast := 0
	continuations := make(map[string]int)
	for key, frequency := range model.Sequences {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok || strings.Contains(rest, sequenceSeparator) {
			continue
		}
		continuations[rest] = frequency
		totalFromLast += frequency
	}
	if totalFromLast == 0 {
		return nil
	}

	var raw []rawPrediction
	for action, frequency := range continuations {
		raw = append(raw, rawPrediction{
			action:     action,
			confidence: float64(frequency) / float64(totalFromLast),
			timing:     30 * time.Second,
			source:     models.StrategySequence,
			reason:     describeSequence(prefix + action),
		})
	}
	return raw
}

// temporalStrategy predicts habitual actions in the current hour bucket.
func (p *Predictor) temporalStrategy(model *models.UserModel, sctx *models.Context) []rawPrediction {
	hour := sctx.HourOfDay()
	var raw []rawPrediction
	for _, habit := range model.Habits {
		if hour < habit.HourStart || hour >= habit.HourEnd {
			continue
		}
		raw = append(raw, rawPrediction{
			action:     habit.Action,
			confidence: habit.Strength,
			timing:     10 * time.Minute,
			source:     models.StrategyTemporal,
			reason:     "habitual at this hour",
		})
	}
	return raw
}

// contextualStrategy predicts from error state, file type, and preferences.
func (p *Predictor) contextualStrategy(model *models.UserModel, sctx *models.Context) []rawPrediction {
	var raw []rawPrediction
	if sctx.Error {
		raw = append(raw, rawPrediction{
			action:     "debug_assistance",
			confidence: 0.85,
			timing:     30 * time.Second,
			source:     models.StrategyContextual,
			reason:     "an error was just encountered",
		})
	}
	if strings.Contains(sctx.CurrentFile, "_test") || strings.Contains(sctx.CurrentFile, ".spec.") {
		raw = append(raw, rawPrediction{
			action:     "run_tests",
			confidence: 0.8,
			timing:     time.Minute,
			source:     models.StrategyContextual,
			reason:     "a test file is open",
		})
	}
	if model.Preferences.AutoFormat && sctx.CurrentFile != "" {
		raw = append(raw, rawPrediction{
			action:     "format_code",
			confidence: 0.75,
			timing:     time.Minute,
			source:     models.StrategyContextual,
			reason:     "autoformat preference is enabled",
		})
	}
	return raw
}

// behavioralStrategy predicts the next step of a workflow the user appears
// to be partway through.
func (p *Predictor) behavioralStrategy(ctx context.Context, model *models.UserModel, sctx *models.Context) []rawPrediction {
	if len(model.Workflows) == 0 {
		return nil
	}

	episodes, err := p.builder.episodes.RecallRecent(ctx, sctx.UserID, time.Hour, 10)
	if err != nil || len(episodes) == 0 {
		return nil
	}
	last := episodes[len(episodes)-1].Action

	var raw []rawPrediction
	for _, workflow := range model.Workflows {
		for i, step := range workflow.Steps {
			if step.Action != last || i+1 >= len(workflow.Steps) {
				continue
			}
			confidence := 0.7
			if workflow.ExecutionCount >= 5 {
				confidence = 0.8
			}
			raw = append(raw, rawPrediction{
				action:     workflow.Steps[i+1].Action,
				confidence: confidence,
				timing:     2 * time.Minute,
				source:     models.StrategyBehavioral,
				reason:     "next step of workflow " + workflow.Name,
			})
			break
		}
	}
	return raw
}

// combine groups raw predictions by action, keeps the maximum confidence,
// and records every contributing strategy. Predictions below the threshold
// are dropped here.
func (p *Predictor) combine(raw []rawPrediction) []*models.Prediction {
	type group struct {
		best    rawPrediction
		sources []models.StrategyType
	}
	groups := make(map[string]*group)
	order := make([]string, 0, len(raw))
	for _, r := range raw {
		g, ok := groups[r.action]
		if !ok {
			order = append(order, r.action)
			groups[r.action] = &group{best: r, sources: []models.StrategyType{r.source}}
			continue
		}
		g.sources = append(g.sources, r.source)
		if r.confidence > g.best.confidence {
			g.best = r
		}
	}

	now := p.now()
	var predictions []*models.Prediction
	for _, action := range order {
		g := groups[action]
		confidence := models.ClampConfidence(g.best.confidence)
		if confidence < PredictionThreshold {
			continue
		}
		predictions = append(predictions, &models.Prediction{
			ID:         uuid.New(),
			Action:     action,
			Confidence: confidence,
			Timing:     g.best.timing,
			Sources:    g.sources,
			Reason:     g.best.reason,
			CreatedAt:  now,
		})
	}
	return predictions
}

func (p *Predictor) bufferPredictions(userID uuid.UUID, predictions []*models.Prediction) {
	now := p.now()
	cutoff := now.Add(-validationWindow)

	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.buffer[:0]
	for _, entry := range p.buffer {
		if !entry.createdAt.Before(cutoff) {
			kept = append(kept, entry)
		}
	}
	p.buffer = kept
	for _, prediction := range predictions {
		p.buffer = append(p.buffer, &bufferedPrediction{
			prediction: prediction,
			userID:     userID,
			createdAt:  now,
		})
	}
}

// preload enqueues pre-warm work for confident near-term predictions.
// Enqueue failures are logged; preloading is an optimization, never a
// correctness requirement.
func (p *Predictor) preload(ctx context.Context, userID uuid.UUID, predictions []*models.Prediction) {
	if p.queue == nil {
		return
	}
	for _, prediction := range predictions {
		if prediction.Confidence <= preloadConfidence || prediction.Timing > preloadHorizon {
			continue
		}
		job, err := queue.NewJob(queue.JobTypePreload, userID, map[string]any{
			"action":     prediction.Action,
			"confidence": prediction.Confidence,
		})
		if err != nil {
			p.logger.Warn("preload_job_build_failed", zap.Error(err))
			continue
		}
		deadline := p.now().Add(prediction.Timing + preloadHorizon)
		job.NotAfter = &deadline
		if err := p.queue.Enqueue(ctx, job); err != nil {
			p.logger.Warn("preload_enqueue_failed",
				zap.String("action", prediction.Action),
				zap.Error(err))
		}
	}
}
