package workers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/anticipate"
	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/learning"
	"github.com/praxislabs/foresight/internal/memory"
	"github.com/praxislabs/foresight/internal/models"
	"github.com/praxislabs/foresight/internal/queue"
	"github.com/praxislabs/foresight/internal/tuner"
)

type mockEpisodeRepo struct {
	created []*models.EpisodeRecord
}

func (m *mockEpisodeRepo) Create(ctx context.Context, episode *models.EpisodeRecord) error {
	m.created = append(m.created, episode)
	return nil
}

func (m *mockEpisodeRepo) GetRecent(ctx context.Context, userID uuid.UUID, window time.Duration, limit int) ([]*models.EpisodeRecord, error) {
	return nil, nil
}

func (m *mockEpisodeRepo) GetBySessionID(ctx context.Context, userID uuid.UUID, sessionID string) ([]*models.EpisodeRecord, error) {
	return nil, nil
}

type mockProfileRepo struct {
	appended []models.Fact
}

func (m *mockProfileRepo) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	return &models.Profile{UserID: userID}, nil
}

func (m *mockProfileRepo) Upsert(ctx context.Context, profile *models.Profile) error {
	return nil
}

func (m *mockProfileRepo) AppendFacts(ctx context.Context, userID uuid.UUID, facts []models.Fact) error {
	m.appended = append(m.appended, facts...)
	return nil
}

type mockFeedbackRepo struct {
	deleteCutoff time.Time
}

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
	m.deleteCutoff = cutoff
	return 3, nil
}

type mockMetricRepo struct {
	regressionCutoff time.Time
}

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

type mockWeightRepo struct{}

func (m *mockWeightRepo) Get(ctx context.Context, userID uuid.UUID, patternType, action string) (*models.PatternWeight, error) {
	return nil, nil
}

func (m *mockWeightRepo) GetAllByUserID(ctx context.Context, userID uuid.UUID) ([]*models.PatternWeight, error) {
	return nil, nil
}

func (m *mockWeightRepo) Upsert(ctx context.Context, userID uuid.UUID, weight *models.PatternWeight) error {
	return nil
}

type mockJobQueue struct {
	enqueued []*queue.Job
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	m.enqueued = append(m.enqueued, job)
	return nil
}

func (m *mockJobQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, nil
}

func (m *mockJobQueue) Close() error { return nil }

func (m *mockJobQueue) HealthCheck(ctx context.Context) error { return nil }

type mockWorkflowRepo struct{}

func (m *mockWorkflowRepo) Create(ctx context.Context, workflow *models.Workflow) error { return nil }

func (m *mockWorkflowRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	return nil, nil
}

func (m *mockWorkflowRepo) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Workflow, error) {
	return nil, nil
}

func (m *mockWorkflowRepo) Update(ctx context.Context, workflow *models.Workflow) error { return nil }

func (m *mockWorkflowRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

var (
	_ database.EpisodeRepositoryInterface       = (*mockEpisodeRepo)(nil)
	_ database.ProfileRepositoryInterface       = (*mockProfileRepo)(nil)
	_ database.FeedbackRepositoryInterface      = (*mockFeedbackRepo)(nil)
	_ database.ActionMetricRepositoryInterface  = (*mockMetricRepo)(nil)
	_ database.PatternWeightRepositoryInterface = (*mockWeightRepo)(nil)
	_ queue.JobQueue                            = (*mockJobQueue)(nil)
	_ database.WorkflowRepositoryInterface      = (*mockWorkflowRepo)(nil)
)

func newTestProcessor(t *testing.T) (*JobProcessor, *mockEpisodeRepo, *mockProfileRepo, *mockFeedbackRepo, *mockMetricRepo) {
	t.Helper()

	logger := zap.NewNop()
	episodes := &mockEpisodeRepo{}
	profiles := &mockProfileRepo{}
	feedbackRepo := &mockFeedbackRepo{}
	metrics := &mockMetricRepo{}
	jobs := &mockJobQueue{}

	store := tuner.NewWeightStore(&mockWeightRepo{}, 0.1, logger)
	engineTuner := tuner.New(store, 0.6, logger)
	orchestrator := learning.NewOrchestrator(learning.Config{
		Tuner:    engineTuner,
		Feedback: feedbackRepo,
		Metrics:  metrics,
		Jobs:     jobs,
		Logger:   logger,
	})

	builder := anticipate.NewModelBuilder(
		memory.NewEpisodeStore(episodes),
		memory.NewDBProfileStore(profiles),
		&mockWorkflowRepo{},
		5*time.Minute,
		logger,
	)

	processor := NewJobProcessor(orchestrator, builder, episodes, profiles, feedbackRepo, metrics, jobs, logger)
	return processor, episodes, profiles, feedbackRepo, metrics
}

func TestProcessConsolidationPersistsInteractionsAndFacts(t *testing.T) {
	processor, episodes, profiles, _, _ := newTestProcessor(t)
	userID := uuid.New()

	payload := memory.ConsolidationPayload{
		Interactions: []memory.Episode{
			{Type: "action", Action: "run_tests", SessionID: "s1", Timestamp: time.Now()},
			{Type: "error", Action: "build_failure", SessionID: "s1", Timestamp: time.Now()},
		},
		Facts: []models.Fact{
			{Content: "runs tests after edits", Action: "run_tests", Confidence: 0.8},
		},
		Learnings: []models.FeedbackPattern{
			{Signal: models.SignalRetry, ActionType: "deploy", Occurrences: 4, Confidence: 0.7},
		},
	}
	job, err := queue.NewJob(queue.JobTypeConsolidation, userID, payload)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	if err := processor.processConsolidation(context.Background(), job); err != nil {
		t.Fatalf("processConsolidation: %v", err)
	}

	if len(episodes.created) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(episodes.created))
	}
	if episodes.created[0].Action != "run_tests" || episodes.created[0].UserID != userID {
		t.Errorf("unexpected first episode: %+v", episodes.created[0])
	}

	// One supplied fact plus one derived from the feedback pattern
	if len(profiles.appended) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(profiles.appended))
	}
	if profiles.appended[1].Action != "deploy" {
		t.Errorf("expected derived fact for deploy, got %q", profiles.appended[1].Action)
	}
}

func TestProcessSweepUsesRetentionCutoffs(t *testing.T) {
	processor, _, _, feedbackRepo, metrics := newTestProcessor(t)

	job, err := queue.NewJob(queue.JobTypeSweep, uuid.Nil, map[string]string{"reason": "daily_prune"})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	before := time.Now()
	if err := processor.processSweep(context.Background(), job); err != nil {
		t.Fatalf("processSweep: %v", err)
	}

	wantFeedback := before.Add(-feedbackRetention)
	if feedbackRepo.deleteCutoff.Before(wantFeedback.Add(-time.Minute)) || feedbackRepo.deleteCutoff.After(wantFeedback.Add(time.Minute)) {
		t.Errorf("feedback cutoff %v not near %v", feedbackRepo.deleteCutoff, wantFeedback)
	}
	wantRegression := before.Add(-regressionRetention)
	if metrics.regressionCutoff.Before(wantRegression.Add(-time.Minute)) || metrics.regressionCutoff.After(wantRegression.Add(time.Minute)) {
		t.Errorf("regression cutoff %v not near %v", metrics.regressionCutoff, wantRegression)
	}
}

func TestProcessLearningEventFillsMissingFields(t *testing.T) {
	processor, _, _, _, _ := newTestProcessor(t)
	userID := uuid.New()

	event := learning.Event{
		Type:       learning.EventSuggestionOutcome,
		Strategy:   models.StrategyPattern,
		Action:     "run_tests",
		Confidence: 0.8,
		Accepted:   true,
	}
	job, err := queue.NewJob(queue.JobTypeLearningEvent, userID, event)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	if err := processor.processLearningEvent(context.Background(), job); err != nil {
		t.Fatalf("processLearningEvent: %v", err)
	}

	// The event lands in the orchestrator's batch and applies on drain
	if drained := processor.orchestrator.Drain(context.Background()); drained != 1 {
		t.Fatalf("expected 1 drained event, got %d", drained)
	}
}

func TestProcessPreloadRebuildsModel(t *testing.T) {
	processor, episodes, _, _, _ := newTestProcessor(t)
	userID := uuid.New()

	now := time.Now()
	for i := 0; i < 4; i++ {
		episodes.created = append(episodes.created, &models.EpisodeRecord{
			UserID:    userID,
			Type:      models.EpisodeTypeAction,
			Action:    "open_editor",
			CreatedAt: now.Add(time.Duration(-i) * time.Minute),
		})
	}

	job, err := queue.NewJob(queue.JobTypePreload, userID, map[string]any{
		"action":     "open_editor",
		"confidence": 0.9,
	})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	if err := processor.processPreload(context.Background(), job); err != nil {
		t.Fatalf("processPreload: %v", err)
	}
}
