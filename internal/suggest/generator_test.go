package suggest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/memory"
	"github.com/praxislabs/foresight/internal/models"
	"github.com/praxislabs/foresight/internal/tuner"
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

type mockIndex struct {
	items []memory.SimilarItem
}

func (m *mockIndex) FindSimilar(ctx context.Context, embedding []float32, threshold float64) ([]memory.SimilarItem, error) {
	return m.items, nil
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

type mockPatterns struct {
	patterns []models.SequencePattern
}

func (m *mockPatterns) SequencePatterns(ctx context.Context, userID uuid.UUID) []models.SequencePattern {
	return m.patterns
}

type mockFeedbackSink struct {
	mu      sync.Mutex
	records []*models.FeedbackRecord
}

func (m *mockFeedbackSink) Append(ctx context.Context, record *models.FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

type countingWeightRepo struct {
	mu      sync.Mutex
	upserts int
}

func (m *countingWeightRepo) Get(ctx context.Context, userID uuid.UUID, patternType, action string) (*models.PatternWeight, error) {
	return nil, nil
}

func (m *countingWeightRepo) GetAllByUserID(ctx context.Context, userID uuid.UUID) ([]*models.PatternWeight, error) {
	return nil, nil
}

func (m *countingWeightRepo) Upsert(ctx context.Context, userID uuid.UUID, weight *models.PatternWeight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	return nil
}

func (m *countingWeightRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

var _ database.PatternWeightRepositoryInterface = (*countingWeightRepo)(nil)

func newTestGenerator(repo database.PatternWeightRepositoryInterface, cfg Config) *Generator {
	if repo == nil {
		repo = &countingWeightRepo{}
	}
	store := tuner.NewWeightStore(repo, tuner.DefaultLearningRate, zap.NewNop())
	cfg.Tuner = tuner.New(store, 0.6, zap.NewNop())
	if cfg.Episodes == nil {
		cfg.Episodes = &mockEpisodes{}
	}
	if cfg.Index == nil {
		cfg.Index = &mockIndex{}
	}
	if cfg.Profiles == nil {
		cfg.Profiles = &mockProfiles{}
	}
	if cfg.Patterns == nil {
		cfg.Patterns = &mockPatterns{}
	}
	cfg.Logger = zap.NewNop()
	return NewGenerator(cfg)
}

func TestGenerateBoundsAndUniqueness(t *testing.T) {
	now := time.Now()
	episodes := &mockEpisodes{episodes: []memory.Episode{
		{Action: "edit_file", Timestamp: now.Add(-3 * time.Minute)},
		{Action: "run_tests", Timestamp: now.Add(-2 * time.Minute)},
	}}
	patterns := &mockPatterns{patterns: []models.SequencePattern{
		{Sequence: []string{"edit_file", "run_tests", "commit"}, Frequency: 8, LastSeen: now.Add(-time.Hour)},
		{Sequence: []string{"run_tests", "deploy"}, Frequency: 5, LastSeen: now.Add(-2 * time.Hour)},
	}}
	index := &mockIndex{items: []memory.SimilarItem{
		{Action: "commit", Similarity: 0.9},
		{Action: "commit", Similarity: 0.85},
		{Action: "push", Similarity: 0.8},
		{Action: "push", Similarity: 0.75},
	}}
	profiles := &mockProfiles{profile: &models.Profile{Facts: []models.Fact{
		{Content: "you format before committing", Action: "format_code", Confidence: 0.9},
	}}}

	g := newTestGenerator(nil, Config{Episodes: episodes, Patterns: patterns, Index: index, Profiles: profiles})

	sctx := &models.Context{
		UserID:      uuid.New(),
		CurrentFile: "handler_test.go",
		Embedding:   []float32{0.1, 0.2},
		Timestamp:   now,
	}

	suggestions := g.Generate(context.Background(), sctx)

	if len(suggestions) > MaxSuggestions {
		t.Fatalf("expected at most %d suggestions, got %d", MaxSuggestions, len(suggestions))
	}

	seen := make(map[string]bool)
	for _, s := range suggestions {
		if s.Confidence < 0 || s.Confidence > 1 {
			t.Errorf("confidence %f out of [0, 1] for %s", s.Confidence, s.Action)
		}
		key := string(s.Type) + "|" + s.Action
		if seen[key] {
			t.Errorf("duplicate (type, action) pair: %s", key)
		}
		seen[key] = true
	}
}

// Ranking follows the tuned feature-weight vector, not raw confidence: the
// same candidate set must reorder when the vector shifts from frequency to
// context match.
func TestRankingVectorReordersSuggestions(t *testing.T) {
	// 3 AM keeps the time-of-day rules quiet so only the error rule and
	// the sequence pattern compete.
	now := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	episodes := &mockEpisodes{episodes: []memory.Episode{
		{Action: "edit_file", Timestamp: now.Add(-2 * time.Minute)},
		{Action: "run_tests", Timestamp: now.Add(-time.Minute)},
	}}
	patterns := &mockPatterns{patterns: []models.SequencePattern{
		{Sequence: []string{"edit_file", "run_tests", "commit"}, Frequency: 10, LastSeen: now},
	}}

	sctx := &models.Context{
		UserID:       uuid.New(),
		Error:        true,
		ErrorMessage: "build broken",
		Timestamp:    now,
	}

	// FineTuneRankings with a full-strength step lands the vector exactly
	// on the normalized target.
	fullStep := 1.0 / tuner.DefaultLearningRate

	g := newTestGenerator(nil, Config{Episodes: episodes, Patterns: patterns})
	g.tuner.FineTuneRankings(models.RankingWeights{Frequency: 1}, fullStep)
	byFrequency := g.Generate(context.Background(), sctx)
	if len(byFrequency) < 2 {
		t.Fatalf("expected both candidates, got %d", len(byFrequency))
	}
	if byFrequency[0].Action != "commit" {
		t.Errorf("frequency-weighted first = %q, want the frequent pattern commit", byFrequency[0].Action)
	}

	g = newTestGenerator(nil, Config{Episodes: episodes, Patterns: patterns})
	g.tuner.FineTuneRankings(models.RankingWeights{ContextMatch: 1}, fullStep)
	byMatch := g.Generate(context.Background(), sctx)
	if len(byMatch) < 2 {
		t.Fatalf("expected both candidates, got %d", len(byMatch))
	}
	if byMatch[0].Action != "debug_assistance" {
		t.Errorf("match-weighted first = %q, want the error-driven debug_assistance", byMatch[0].Action)
	}
}

func TestGenerateErrorContextSurfacesDebugAssistance(t *testing.T) {
	g := newTestGenerator(nil, Config{})

	sctx := &models.Context{
		UserID:       uuid.New(),
		Error:        true,
		ErrorMessage: "nil pointer dereference",
		Timestamp:    time.Now(),
	}

	suggestions := g.Generate(context.Background(), sctx)

	found := false
	for _, s := range suggestions {
		if s.Action == "debug_assistance" {
			found = true
			if s.Confidence < 0.85 {
				t.Errorf("expected debug_assistance confidence >= 0.85, got %f", s.Confidence)
			}
		}
	}
	if !found {
		t.Fatal("expected a debug_assistance suggestion for an error context")
	}
}

func TestGenerateFiltersBelowThreshold(t *testing.T) {
	// Only a weak morning rule could fire; a context outside every rule
	// window must produce nothing.
	g := newTestGenerator(nil, Config{})

	sctx := &models.Context{
		UserID:    uuid.New(),
		Timestamp: time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC),
	}

	suggestions := g.Generate(context.Background(), sctx)
	for _, s := range suggestions {
		if s.Confidence < 0.6 {
			t.Errorf("suggestion %s below threshold: %f", s.Action, s.Confidence)
		}
	}
}

func TestTrackOutcomeBoostsOnce(t *testing.T) {
	repo := &countingWeightRepo{}
	sink := &mockFeedbackSink{}
	g := newTestGenerator(repo, Config{Feedback: sink})

	sctx := &models.Context{UserID: uuid.New(), Error: true, Timestamp: time.Now()}
	suggestions := g.Generate(context.Background(), sctx)
	if len(suggestions) == 0 {
		t.Fatal("expected at least one suggestion")
	}

	id := suggestions[0].ID
	g.TrackOutcome(context.Background(), id, true, 1.0)
	after := repo.count()
	if after == 0 {
		t.Fatal("expected first outcome to update the pattern weight")
	}

	// A second report on the same suggestion appends feedback but must not
	// boost the weight again.
	g.TrackOutcome(context.Background(), id, true, 1.0)
	if repo.count() != after {
		t.Error("expected repeated outcome to leave the pattern weight untouched")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.records) != 2 {
		t.Errorf("expected 2 feedback records, got %d", len(sink.records))
	}
}

func TestTrackOutcomeUnknownSuggestion(t *testing.T) {
	repo := &countingWeightRepo{}
	sink := &mockFeedbackSink{}
	g := newTestGenerator(repo, Config{Feedback: sink})

	g.TrackOutcome(context.Background(), uuid.New(), false, 1.0)

	if repo.count() != 0 {
		t.Error("expected no weight update for an unknown suggestion")
	}
	if len(sink.records) != 1 {
		t.Errorf("expected feedback to still be appended, got %d records", len(sink.records))
	}
}

func TestPatternStrategyPrefixMatch(t *testing.T) {
	now := time.Now()
	episodes := &mockEpisodes{episodes: []memory.Episode{
		{Action: "edit_file", Timestamp: now.Add(-2 * time.Minute)},
		{Action: "run_tests", Timestamp: now.Add(-time.Minute)},
	}}
	patterns := &mockPatterns{patterns: []models.SequencePattern{
		{Sequence: []string{"edit_file", "run_tests", "commit"}, Frequency: 5, LastSeen: now},
		{Sequence: []string{"deploy", "verify"}, Frequency: 5, LastSeen: now},
		{Sequence: []string{"edit_file", "run_tests", "push"}, Frequency: 2, LastSeen: now},
	}}

	g := newTestGenerator(nil, Config{Episodes: episodes, Patterns: patterns})
	sctx := &models.Context{UserID: uuid.New(), Timestamp: now}

	candidates := g.patternStrategy(context.Background(), sctx)

	if len(candidates) != 1 {
		t.Fatalf("expected exactly one pattern candidate, got %d", len(candidates))
	}
	if candidates[0].action != "commit" {
		t.Errorf("expected commit, got %s", candidates[0].action)
	}
	// frequency 5, fresh pattern: min(5/10, 0.5) + ~1.0*0.5
	if candidates[0].confidence < 0.9 {
		t.Errorf("expected confidence near 1.0 for a fresh frequent pattern, got %f", candidates[0].confidence)
	}
}

func TestClusterStrategyRequiresRecurrence(t *testing.T) {
	index := &mockIndex{items: []memory.SimilarItem{
		{Action: "commit", Similarity: 0.9},
		{Action: "commit", Similarity: 0.8},
		{Action: "push", Similarity: 0.75},
	}}
	g := newTestGenerator(nil, Config{Index: index})

	sctx := &models.Context{UserID: uuid.New(), Embedding: []float32{0.5}, Timestamp: time.Now()}
	candidates := g.clusterStrategy(context.Background(), sctx)

	if len(candidates) != 1 {
		t.Fatalf("expected one cluster candidate, got %d", len(candidates))
	}
	if candidates[0].action != "commit" {
		t.Errorf("expected commit (2 occurrences), got %s", candidates[0].action)
	}
	// 0.5 + 2/3*0.5
	want := 0.5 + 2.0/3.0*0.5
	if diff := candidates[0].confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected confidence %f, got %f", want, candidates[0].confidence)
	}
}

func TestClusterStrategyNoEmbedding(t *testing.T) {
	g := newTestGenerator(nil, Config{Index: &mockIndex{items: []memory.SimilarItem{{Action: "commit"}}}})
	sctx := &models.Context{UserID: uuid.New(), Timestamp: time.Now()}

	if got := g.clusterStrategy(context.Background(), sctx); got != nil {
		t.Errorf("expected no candidates without an embedding, got %d", len(got))
	}
}
