package learning

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/models"
	"github.com/praxislabs/foresight/internal/queue"
	"github.com/praxislabs/foresight/internal/tuner"
)

type mockWeightRepo struct {
	mu      sync.Mutex
	weights map[string]*models.PatternWeight
}

var _ database.PatternWeightRepositoryInterface = (*mockWeightRepo)(nil)

func (m *mockWeightRepo) Get(ctx context.Context, userID uuid.UUID, patternType, action string) (*models.PatternWeight, error) {
	return nil, nil
}

func (m *mockWeightRepo) GetAllByUserID(ctx context.Context, userID uuid.UUID) ([]*models.PatternWeight, error) {
	return nil, nil
}

func (m *mockWeightRepo) Upsert(ctx context.Context, userID uuid.UUID, weight *models.PatternWeight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.weights == nil {
		m.weights = make(map[string]*models.PatternWeight)
	}
	m.weights[string(weight.Type)+"|"+weight.Action] = weight
	return nil
}

type mockFeedbackRepo struct {
	cutoff time.Time
}

var _ database.FeedbackRepositoryInterface = (*mockFeedbackRepo)(nil)

func (m *mockFeedbackRepo) Create(ctx context.Context, record *models.FeedbackRecord) error {
	return nil
}

func (m *mockFeedbackRepo) GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.FeedbackRecord, error) {
	return nil, nil
}

func (m *mockFeedbackRepo) GetBySessionID(ctx context.Context, userID uuid.UUID, sessionID string) ([]*models.FeedbackRecord, error) {
	return nil, nil
}

func (m *mockFeedbackRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.cutoff = cutoff
	return 3, nil
}

type mockMetricRepo struct {
	regressionCutoff time.Time
}

var _ database.ActionMetricRepositoryInterface = (*mockMetricRepo)(nil)

func (m *mockMetricRepo) Get(ctx context.Context, userID uuid.UUID, action string) (*models.ActionMetric, error) {
	return nil, nil
}

func (m *mockMetricRepo) GetAllByUserID(ctx context.Context, userID uuid.UUID) ([]*models.ActionMetric, error) {
	return nil, nil
}

func (m *mockMetricRepo) Upsert(ctx context.Context, userID uuid.UUID, metric *models.ActionMetric) error {
	return nil
}

func (m *mockMetricRepo) CreateRegression(ctx context.Context, userID uuid.UUID, regression *models.Regression) error {
	return nil
}

func (m *mockMetricRepo) GetRegressions(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.Regression, error) {
	return nil, nil
}

func (m *mockMetricRepo) DeleteRegressionsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.regressionCutoff = cutoff
	return 1, nil
}

type mockJobQueue struct {
	mu   sync.Mutex
	jobs []*queue.Job
}

var _ queue.JobQueue = (*mockJobQueue)(nil)

func (m *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockJobQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, nil
}

func (m *mockJobQueue) Close() error { return nil }

func (m *mockJobQueue) HealthCheck(ctx context.Context) error { return nil }

func newTestOrchestrator() (*Orchestrator, *mockWeightRepo, *mockFeedbackRepo, *mockMetricRepo, *mockJobQueue) {
	weightRepo := &mockWeightRepo{}
	feedbackRepo := &mockFeedbackRepo{}
	metricRepo := &mockMetricRepo{}
	jobs := &mockJobQueue{}

	store := tuner.NewWeightStore(weightRepo, tuner.DefaultLearningRate, zap.NewNop())
	tn := tuner.New(store, 0.6, zap.NewNop())

	o := NewOrchestrator(Config{
		Tuner:    tn,
		Feedback: feedbackRepo,
		Metrics:  metricRepo,
		Jobs:     jobs,
		Logger:   zap.NewNop(),
	})
	return o, weightRepo, feedbackRepo, metricRepo, jobs
}

func TestDrainAppliesFreshEvents(t *testing.T) {
	o, _, _, _, _ := newTestOrchestrator()
	userID := uuid.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		o.CoordinateLearning(ctx, &Event{
			Type:       EventSuggestionOutcome,
			UserID:     userID,
			Strategy:   models.StrategyPattern,
			Action:     "commit",
			Confidence: 0.9,
			Accepted:   true,
		})
	}

	if applied := o.Drain(ctx); applied != 3 {
		t.Fatalf("Drain() applied = %d, want 3", applied)
	}

	got := o.tuner.Weights().Multiplier(ctx, userID, models.StrategyPattern, "commit")
	if got <= models.MultiplierInitial {
		t.Errorf("multiplier = %f, want > %f after accepted outcomes", got, models.MultiplierInitial)
	}
}

func TestDrainRespectsBatchSize(t *testing.T) {
	o, _, _, _, _ := newTestOrchestrator()
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		o.CoordinateLearning(ctx, &Event{
			Type:     EventSuggestionOutcome,
			UserID:   uuid.New(),
			Strategy: models.StrategyPattern,
			Action:   "commit",
			Accepted: true,
		})
	}

	if applied := o.Drain(ctx); applied != drainBatchSize {
		t.Errorf("first Drain() applied = %d, want %d", applied, drainBatchSize)
	}
	if applied := o.Drain(ctx); applied != 5 {
		t.Errorf("second Drain() applied = %d, want 5", applied)
	}
	if applied := o.Drain(ctx); applied != 0 {
		t.Errorf("third Drain() applied = %d, want 0", applied)
	}
}

func TestDrainDiscardsDecayedEvents(t *testing.T) {
	o, _, _, _, _ := newTestOrchestrator()
	userID := uuid.New()
	ctx := context.Background()

	o.CoordinateLearning(ctx, &Event{
		Type:      EventSuggestionOutcome,
		UserID:    userID,
		Strategy:  models.StrategyPattern,
		Action:    "commit",
		Accepted:  true,
		Timestamp: time.Now().Add(-10 * 24 * time.Hour),
	})

	if applied := o.Drain(ctx); applied != 0 {
		t.Errorf("Drain() applied = %d, want 0 for decayed event", applied)
	}

	got := o.tuner.Weights().Multiplier(ctx, userID, models.StrategyPattern, "commit")
	if got != models.MultiplierInitial {
		t.Errorf("multiplier = %f, want untouched initial", got)
	}
}

func TestOverfittingGuardRebalancesAndRestores(t *testing.T) {
	o, _, _, _, _ := newTestOrchestrator()
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		o.CoordinateLearning(ctx, &Event{Type: EventFeedback, UserID: uuid.New()})
	}

	recent, historical := o.DataWeights()
	if recent != guardedWeight || historical != guardedWeight {
		t.Fatalf("weights = %f/%f, want %f/%f under guard", recent, historical, guardedWeight, guardedWeight)
	}

	// Jump past the guard window; the hourly schedule restores the blend.
	o.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	o.RunHourly(ctx)

	recent, historical = o.DataWeights()
	if recent != defaultRecentWeight || historical != defaultHistoricalWeight {
		t.Errorf("weights = %f/%f, want %f/%f restored", recent, historical, defaultRecentWeight, defaultHistoricalWeight)
	}
}

func TestMixedEventStreamLeavesWeightsAlone(t *testing.T) {
	o, _, _, _, _ := newTestOrchestrator()
	ctx := context.Background()

	types := []EventType{EventFeedback, EventSuggestionOutcome, EventPredictionValidated}
	for i := 0; i < 30; i++ {
		o.CoordinateLearning(ctx, &Event{Type: types[i%len(types)], UserID: uuid.New()})
	}

	recent, historical := o.DataWeights()
	if recent != defaultRecentWeight || historical != defaultHistoricalWeight {
		t.Errorf("weights = %f/%f, want defaults for a balanced stream", recent, historical)
	}
}

func TestGlobalRateDecaysToFloor(t *testing.T) {
	o, _, _, _, _ := newTestOrchestrator()
	ctx := context.Background()

	if got := o.GlobalRate(); got != initialRate {
		t.Fatalf("initial rate = %f, want %f", got, initialRate)
	}

	o.RunHourly(ctx)
	if got := o.GlobalRate(); got != initialRate*rateDecay {
		t.Errorf("rate after one hour = %f, want %f", got, initialRate*rateDecay)
	}

	for i := 0; i < 2000; i++ {
		o.RunHourly(ctx)
	}
	if got := o.GlobalRate(); got != rateFloor {
		t.Errorf("rate = %f, want floor %f", got, rateFloor)
	}
}

func TestDailyPruneAndSweep(t *testing.T) {
	o, _, feedbackRepo, metricRepo, jobs := newTestOrchestrator()
	now := time.Now()
	o.now = func() time.Time { return now }

	o.RunDaily(context.Background())

	wantFeedback := now.Add(-feedbackRetention)
	if !feedbackRepo.cutoff.Equal(wantFeedback) {
		t.Errorf("feedback cutoff = %v, want %v", feedbackRepo.cutoff, wantFeedback)
	}
	wantRegression := now.Add(-regressionRetention)
	if !metricRepo.regressionCutoff.Equal(wantRegression) {
		t.Errorf("regression cutoff = %v, want %v", metricRepo.regressionCutoff, wantRegression)
	}

	if len(jobs.jobs) != 1 {
		t.Fatalf("expected 1 sweep job, got %d", len(jobs.jobs))
	}
	if jobs.jobs[0].Type != queue.JobTypeSweep {
		t.Errorf("job type = %q, want sweep", jobs.jobs[0].Type)
	}
}

func TestHourlyThresholdAdjustment(t *testing.T) {
	o, _, _, _, _ := newTestOrchestrator()
	ctx := context.Background()

	// High-confidence suggestions are accepted, low-confidence rejected;
	// the threshold should drift toward the winning bucket's floor.
	for i := 0; i < 10; i++ {
		o.CoordinateLearning(ctx, &Event{
			Type:       EventSuggestionOutcome,
			UserID:     uuid.New(),
			Strategy:   models.StrategyPattern,
			Action:     "commit",
			Confidence: 0.9,
			Accepted:   true,
		})
		o.CoordinateLearning(ctx, &Event{
			Type:       EventSuggestionOutcome,
			UserID:     uuid.New(),
			Strategy:   models.StrategyPattern,
			Action:     "commit",
			Confidence: 0.3,
			Accepted:   false,
		})
	}

	before := o.tuner.Threshold(models.StrategyPattern)
	o.RunHourly(ctx)
	after := o.tuner.Threshold(models.StrategyPattern)

	if after <= before {
		t.Errorf("threshold = %f, want > %f after adjustment toward the 0.8 bucket", after, before)
	}
	if after < models.ThresholdMin || after > models.ThresholdMax {
		t.Errorf("threshold %f outside bounds", after)
	}
}

func TestWeeklyDecayRelaxesMultipliers(t *testing.T) {
	o, _, _, _, _ := newTestOrchestrator()
	userID := uuid.New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		o.CoordinateLearning(ctx, &Event{
			Type:       EventSuggestionOutcome,
			UserID:     userID,
			Strategy:   models.StrategyPattern,
			Action:     "commit",
			Confidence: 0.9,
			Accepted:   true,
		})
		o.Drain(ctx)
	}

	boosted := o.tuner.Weights().Multiplier(ctx, userID, models.StrategyPattern, "commit")
	if boosted <= models.MultiplierInitial {
		t.Fatalf("multiplier = %f, want boosted before decay", boosted)
	}

	o.RunWeekly(ctx)

	decayed := o.tuner.Weights().Multiplier(ctx, userID, models.StrategyPattern, "commit")
	if decayed >= boosted {
		t.Errorf("multiplier = %f, want < %f after weekly decay", decayed, boosted)
	}
	if decayed < models.MultiplierInitial {
		t.Errorf("decay moved multiplier %f past neutral", decayed)
	}
}
