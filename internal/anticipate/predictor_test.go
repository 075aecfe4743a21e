package anticipate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/memory"
	"github.com/praxislabs/foresight/internal/models"
	"github.com/praxislabs/foresight/internal/queue"
)

type mockEpisodes struct {
	episodes []memory.Episode
}

func (m *mockEpisodes) RecallRecent(ctx context.Context, userID uuid.UUID, window time.Duration, limit int) ([]memory.Episode, error) {
	return m.episodes, nil
}

func (m *mockEpisodes) CausalChain(ctx context.Context, userID uuid.UUID, episode memory.Episode) ([]memory.Episode, error) {
	return nil, nil
}

type mockProfiles struct {
	profile *models.Profile
}

func (m *mockProfiles) Bootstrap(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	if m.profile != nil {
		return m.profile, nil
	}
	return &models.Profile{UserID: userID}, nil
}

type mockQueue struct {
	mu   sync.Mutex
	jobs []*queue.Job
}

func (m *mockQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, nil
}

func (m *mockQueue) Close() error                        { return nil }
func (m *mockQueue) HealthCheck(ctx context.Context) error { return nil }

var _ queue.JobQueue = (*mockQueue)(nil)

func repeatedEpisodes(now time.Time, sequence []string, repeats int) []memory.Episode {
	var episodes []memory.Episode
	ts := now.Add(-time.Duration(len(sequence)*repeats) * time.Minute)
	for i := 0; i < repeats; i++ {
		for _, action := range sequence {
			episodes = append(episodes, memory.Episode{Action: action, Timestamp: ts})
			ts = ts.Add(time.Minute)
		}
	}
	return episodes
}

func newTestPredictor(episodes *mockEpisodes, q queue.JobQueue) *Predictor {
	builder := NewModelBuilder(episodes, &mockProfiles{}, nil, 5*time.Minute, zap.NewNop())
	return NewPredictor(builder, q, zap.NewNop())
}

func TestPredictSequenceContinuation(t *testing.T) {
	now := time.Now()
	// Strong edit_file -> run_tests pattern ending on edit_file.
	episodes := repeatedEpisodes(now, []string{"edit_file", "run_tests"}, 6)
	episodes = append(episodes, memory.Episode{Action: "edit_file", Timestamp: now})

	p := newTestPredictor(&mockEpisodes{episodes: episodes}, nil)

	sctx := &models.Context{UserID: uuid.New(), Timestamp: now}
	predictions := p.Predict(context.Background(), sctx)

	if len(predictions) == 0 {
		t.Fatal("expected at least one prediction")
	}
	if len(predictions) > PredictionWindow {
		t.Fatalf("expected at most %d predictions, got %d", PredictionWindow, len(predictions))
	}

	found := false
	for _, prediction := range predictions {
		if prediction.Confidence < PredictionThreshold {
			t.Errorf("prediction %s below threshold: %f", prediction.Action, prediction.Confidence)
		}
		if prediction.Action == "run_tests" {
			found = true
			hasSequenceSource := false
			for _, source := range prediction.Sources {
				if source == models.StrategySequence {
					hasSequenceSource = true
				}
			}
			if !hasSequenceSource {
				t.Error("expected sequence strategy among sources")
			}
		}
	}
	if !found {
		t.Error("expected run_tests to be predicted after edit_file")
	}
}

func TestPredictErrorContext(t *testing.T) {
	p := newTestPredictor(&mockEpisodes{}, nil)

	sctx := &models.Context{UserID: uuid.New(), Error: true, Timestamp: time.Now()}
	predictions := p.Predict(context.Background(), sctx)

	found := false
	for _, prediction := range predictions {
		if prediction.Action == "debug_assistance" {
			found = true
		}
	}
	if !found {
		t.Error("expected debug_assistance prediction for error context")
	}
}

func TestPredictPreloadsHighConfidence(t *testing.T) {
	q := &mockQueue{}
	p := newTestPredictor(&mockEpisodes{}, q)

	// Error context yields 0.85 confidence with 30s timing, above the
	// preload bar.
	sctx := &models.Context{UserID: uuid.New(), Error: true, Timestamp: time.Now()}
	p.Predict(context.Background(), sctx)

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		t.Fatal("expected a preload job to be enqueued")
	}
	if q.jobs[0].Type != queue.JobTypePreload {
		t.Errorf("expected preload job type, got %s", q.jobs[0].Type)
	}
	if q.jobs[0].NotAfter == nil {
		t.Error("expected preload job to carry an expiry")
	}
}

func TestValidateAccuracy(t *testing.T) {
	p := newTestPredictor(&mockEpisodes{}, nil)
	userID := uuid.New()

	sctx := &models.Context{UserID: userID, Error: true, Timestamp: time.Now()}
	p.Predict(context.Background(), sctx)

	p.Validate(userID, "debug_assistance")
	p.Validate(userID, "unrelated_action")

	if got := p.Accuracy(); got != 0.5 {
		t.Errorf("expected accuracy 0.5, got %f", got)
	}
}

func TestValidateIgnoresExpiredPredictions(t *testing.T) {
	p := newTestPredictor(&mockEpisodes{}, nil)
	userID := uuid.New()

	base := time.Now()
	p.now = func() time.Time { return base }

	sctx := &models.Context{UserID: userID, Error: true, Timestamp: base}
	p.Predict(context.Background(), sctx)

	// Grading after the 60s window finds nothing to match.
	p.now = func() time.Time { return base.Add(2 * time.Minute) }
	p.Validate(userID, "debug_assistance")

	if got := p.Accuracy(); got != 0 {
		t.Errorf("expected accuracy 0 for expired prediction, got %f", got)
	}
}

func TestModelBuilderCachesWithinRebuildWindow(t *testing.T) {
	episodes := &mockEpisodes{episodes: repeatedEpisodes(time.Now(), []string{"a", "b"}, 3)}
	builder := NewModelBuilder(episodes, &mockProfiles{}, nil, 5*time.Minute, zap.NewNop())
	userID := uuid.New()

	first := builder.Model(context.Background(), userID)
	episodes.episodes = nil
	second := builder.Model(context.Background(), userID)

	if first != second {
		t.Error("expected cached model within the rebuild window")
	}

	builder.Invalidate(userID)
	third := builder.Model(context.Background(), userID)
	if third == first {
		t.Error("expected a rebuilt model after invalidation")
	}
}

func TestModelBuilderMinesHabits(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var episodes []memory.Episode
	for i := 0; i < 4; i++ {
		episodes = append(episodes, memory.Episode{Action: "review_prs", Timestamp: now.Add(time.Duration(i) * 24 * time.Hour)})
	}
	builder := NewModelBuilder(&mockEpisodes{episodes: episodes}, &mockProfiles{}, nil, 5*time.Minute, zap.NewNop())

	model := builder.Model(context.Background(), uuid.New())

	found := false
	for _, habit := range model.Habits {
		if habit.Action == "review_prs" && habit.HourStart == 9 {
			found = true
			if habit.Strength != 1.0 {
				t.Errorf("expected habit strength 1.0, got %f", habit.Strength)
			}
		}
	}
	if !found {
		t.Error("expected a 9am review_prs habit to be mined")
	}
}
