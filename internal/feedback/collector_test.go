package feedback

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/memory"
	"github.com/praxislabs/foresight/internal/models"
)

type mockFeedbackRepo struct {
	mu      sync.Mutex
	records []*models.FeedbackRecord
	err     error
}

var _ database.FeedbackRepositoryInterface = (*mockFeedbackRepo)(nil)

func (m *mockFeedbackRepo) Create(ctx context.Context, record *models.FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, record)
	return nil
}

func (m *mockFeedbackRepo) GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.FeedbackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records, nil
}

func (m *mockFeedbackRepo) GetBySessionID(ctx context.Context, userID uuid.UUID, sessionID string) ([]*models.FeedbackRecord, error) {
	return nil, nil
}

func (m *mockFeedbackRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type mockEpisodes struct {
	episodes []memory.Episode
}

var _ memory.EpisodicReader = (*mockEpisodes)(nil)

func (m *mockEpisodes) RecallRecent(ctx context.Context, userID uuid.UUID, window time.Duration, limit int) ([]memory.Episode, error) {
	return m.episodes, nil
}

func (m *mockEpisodes) CausalChain(ctx context.Context, userID uuid.UUID, episode memory.Episode) ([]memory.Episode, error) {
	return nil, nil
}

type mockConsolidator struct {
	mu       sync.Mutex
	payloads []memory.ConsolidationPayload
}

var _ memory.Consolidator = (*mockConsolidator)(nil)

func (m *mockConsolidator) Consolidate(ctx context.Context, userID uuid.UUID, payload memory.ConsolidationPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
	return nil
}

func newTestCollector() (*Collector, *mockFeedbackRepo, *mockConsolidator) {
	repo := &mockFeedbackRepo{}
	consolidator := &mockConsolidator{}
	c := NewCollector(repo, &mockEpisodes{}, consolidator, zap.NewNop())
	return c, repo, consolidator
}

func TestCaptureImplicitInfersSignal(t *testing.T) {
	tests := []struct {
		actionType string
		want       models.Signal
	}{
		{"code_modification", models.SignalModification},
		{"edit_suggestion", models.SignalModification},
		{"retry_command", models.SignalRetry},
		{"build_failure", models.SignalFailure},
		{"task_abandoned", models.SignalFailure},
		{"run_tests", models.SignalSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.actionType, func(t *testing.T) {
			c, repo, _ := newTestCollector()
			userID := uuid.New()

			id, err := c.CaptureImplicit(context.Background(), userID, "sess-1", tt.actionType)
			if err != nil {
				t.Fatalf("CaptureImplicit() error = %v", err)
			}

			if len(repo.records) != 1 {
				t.Fatalf("expected 1 persisted record, got %d", len(repo.records))
			}
			record := repo.records[0]
			if record.ID != id {
				t.Errorf("returned id %v does not match persisted id %v", id, record.ID)
			}
			if record.Signal != tt.want {
				t.Errorf("signal = %q, want %q", record.Signal, tt.want)
			}
			if record.Kind != models.FeedbackImplicit {
				t.Errorf("kind = %q, want implicit", record.Kind)
			}
		})
	}
}

func TestCaptureExplicitSentimentAndCategory(t *testing.T) {
	tests := []struct {
		name          string
		rating        int
		correction    string
		wantSentiment models.Sentiment
		wantCategory  models.CorrectionCategory
		wantAccepted  bool
	}{
		{"positive", 5, "", models.SentimentPositive, "", true},
		{"neutral", 3, "", models.SentimentNeutral, "", false},
		{"parameter", 2, "wrong parameter value", models.SentimentNegative, models.CorrectionParameter, false},
		{"sequence", 1, "should run lint before tests", models.SentimentNegative, models.CorrectionSequence, false},
		{"timing", 2, "suggested too early", models.SentimentNegative, models.CorrectionTiming, false},
		{"general", 1, "not helpful", models.SentimentNegative, models.CorrectionGeneral, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, repo, _ := newTestCollector()

			_, err := c.CaptureExplicit(context.Background(), uuid.New(), "sess-1", uuid.New(), models.StrategyPattern, "commit", tt.rating, tt.correction)
			if err != nil {
				t.Fatalf("CaptureExplicit() error = %v", err)
			}

			record := repo.records[0]
			if record.Sentiment != tt.wantSentiment {
				t.Errorf("sentiment = %q, want %q", record.Sentiment, tt.wantSentiment)
			}
			if record.Category != tt.wantCategory {
				t.Errorf("category = %q, want %q", record.Category, tt.wantCategory)
			}
			if record.Accepted != tt.wantAccepted {
				t.Errorf("accepted = %v, want %v", record.Accepted, tt.wantAccepted)
			}
			if record.Type != models.StrategyPattern || record.Action != "commit" {
				t.Errorf("record keyed to (%s, %s), want (pattern, commit)", record.Type, record.Action)
			}
		})
	}
}

func TestCorrelationRecordsHighScoringPairs(t *testing.T) {
	now := time.Now()
	episodes := &mockEpisodes{episodes: []memory.Episode{
		{Type: "action", Action: "run_tests", SessionID: "sess-1", Timestamp: now.Add(-10 * time.Second)},
		{Type: "action", Action: "open_file", SessionID: "sess-other", Timestamp: now.Add(-5 * time.Minute)},
	}}

	c := NewCollector(&mockFeedbackRepo{}, episodes, &mockConsolidator{}, zap.NewNop())
	c.now = func() time.Time { return now }

	_, err := c.CaptureImplicit(context.Background(), uuid.New(), "sess-1", "run_tests")
	if err != nil {
		t.Fatalf("CaptureImplicit() error = %v", err)
	}

	correlations := c.Correlations()
	if len(correlations) != 1 {
		t.Fatalf("expected 1 correlation, got %d", len(correlations))
	}

	// decay(10s) + session match + type match
	want := math.Pow(0.5, float64(10*time.Second)/float64(time.Minute)) + 0.3 + 0.3
	if math.Abs(correlations[0].Score-want) > 1e-9 {
		t.Errorf("score = %f, want %f", correlations[0].Score, want)
	}
	if correlations[0].Action != "run_tests" {
		t.Errorf("action = %q, want run_tests", correlations[0].Action)
	}
}

func TestCorrelationIgnoresStaleUnrelatedActions(t *testing.T) {
	now := time.Now()
	episodes := &mockEpisodes{episodes: []memory.Episode{
		{Type: "action", Action: "open_file", SessionID: "sess-other", Timestamp: now.Add(-4 * time.Minute)},
	}}

	c := NewCollector(&mockFeedbackRepo{}, episodes, &mockConsolidator{}, zap.NewNop())
	c.now = func() time.Time { return now }

	if _, err := c.CaptureImplicit(context.Background(), uuid.New(), "sess-1", "run_tests"); err != nil {
		t.Fatalf("CaptureImplicit() error = %v", err)
	}

	if got := c.Correlations(); len(got) != 0 {
		t.Errorf("expected no correlations, got %d", len(got))
	}
}

func TestPatternPersistedOnceAtThreshold(t *testing.T) {
	c, _, consolidator := newTestCollector()
	userID := uuid.New()

	for i := 0; i < 4; i++ {
		if _, err := c.CaptureImplicit(context.Background(), userID, "sess-1", "build_failure"); err != nil {
			t.Fatalf("CaptureImplicit() error = %v", err)
		}
	}

	if len(consolidator.payloads) != 1 {
		t.Fatalf("expected exactly 1 consolidation, got %d", len(consolidator.payloads))
	}
	learnings := consolidator.payloads[0].Learnings
	if len(learnings) != 1 {
		t.Fatalf("expected 1 learning, got %d", len(learnings))
	}

	pattern := learnings[0]
	if pattern.Signal != models.SignalFailure {
		t.Errorf("signal = %q, want failure", pattern.Signal)
	}
	if !pattern.Abandoned {
		t.Error("expected failure group to be marked abandoned")
	}
	if pattern.Occurrences != 3 {
		t.Errorf("occurrences = %d, want 3", pattern.Occurrences)
	}
	if pattern.Confidence <= 0.6 {
		t.Errorf("confidence = %f, want > 0.6", pattern.Confidence)
	}
}

func TestNoPatternBelowOccurrenceFloor(t *testing.T) {
	c, _, consolidator := newTestCollector()
	userID := uuid.New()

	for i := 0; i < 2; i++ {
		if _, err := c.CaptureImplicit(context.Background(), userID, "sess-1", "build_failure"); err != nil {
			t.Fatalf("CaptureImplicit() error = %v", err)
		}
	}

	if len(consolidator.payloads) != 0 {
		t.Errorf("expected no consolidations, got %d", len(consolidator.payloads))
	}
}

func TestAcceptanceRate(t *testing.T) {
	c, _, _ := newTestCollector()
	userID := uuid.New()

	if got := c.AcceptanceRate(); got != 0 {
		t.Errorf("empty collector rate = %f, want 0", got)
	}

	for i := 0; i < 3; i++ {
		if _, err := c.CaptureExplicit(context.Background(), userID, "sess-1", uuid.New(), models.StrategyPattern, "commit", 5, ""); err != nil {
			t.Fatalf("CaptureExplicit() error = %v", err)
		}
	}
	if _, err := c.CaptureExplicit(context.Background(), userID, "sess-1", uuid.New(), models.StrategyPattern, "commit", 1, ""); err != nil {
		t.Fatalf("CaptureExplicit() error = %v", err)
	}

	if got := c.AcceptanceRate(); got != 0.75 {
		t.Errorf("rate = %f, want 0.75", got)
	}
}

func TestAppendSurvivesPersistenceFailure(t *testing.T) {
	repo := &mockFeedbackRepo{err: context.DeadlineExceeded}
	c := NewCollector(repo, &mockEpisodes{}, &mockConsolidator{}, zap.NewNop())

	record := &models.FeedbackRecord{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Accepted:  true,
		Kind:      models.FeedbackImplicit,
		Signal:    models.SignalSuccess,
		Timestamp: time.Now(),
	}
	if err := c.Append(context.Background(), record); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if got := c.AcceptanceRate(); got != 1.0 {
		t.Errorf("rate = %f, want 1.0 despite persistence failure", got)
	}
}
