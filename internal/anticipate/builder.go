package anticipate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/memory"
	"github.com/praxislabs/foresight/internal/models"
)

// Model build inputs. Habits need a minimum recurrence within an hour
// bucket before they count as behavior rather than coincidence.
const (
	modelRecallWindow = 7 * 24 * time.Hour
	modelRecallLimit  = 500
	habitMinCount     = 3
	sequenceSeparator = "→"
)

// ModelBuilder assembles per-user model snapshots from the persistence
// layer. Snapshots are rebuilt at most once per rebuild interval; callers
// between rebuilds read the cached snapshot, stale or not.
type ModelBuilder struct {
	episodes  memory.EpisodicReader
	profiles  memory.ProfileStore
	workflows database.WorkflowRepositoryInterface
	rebuild   time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.Mutex
	models map[uuid.UUID]*models.UserModel
}

// NewModelBuilder creates a user model builder
func NewModelBuilder(episodes memory.EpisodicReader, profiles memory.ProfileStore, workflows database.WorkflowRepositoryInterface, rebuild time.Duration, logger *zap.Logger) *ModelBuilder {
	return &ModelBuilder{
		episodes:  episodes,
		profiles:  profiles,
		workflows: workflows,
		rebuild:   rebuild,
		logger:    logger,
		now:       time.Now,
		models:    make(map[uuid.UUID]*models.UserModel),
	}
}

// Model returns the user's model snapshot, rebuilding it when stale
func (b *ModelBuilder) Model(ctx context.Context, userID uuid.UUID) *models.UserModel {
	b.mu.Lock()
	cached, ok := b.models[userID]
	if ok && !cached.Stale(b.now(), b.rebuild) {
		b.mu.Unlock()
		return cached
	}
	b.mu.Unlock()

	built := b.build(ctx, userID)

	b.mu.Lock()
	b.models[userID] = built
	b.mu.Unlock()
	return built
}

// Invalidate drops a user's cached snapshot so the next read rebuilds
func (b *ModelBuilder) Invalidate(userID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.models, userID)
}

// SequencePatterns exposes the model's mined sequences plus profile
// patterns in the shape the pattern strategy consumes. Fail-open: an
// unbuildable model yields nil.
func (b *ModelBuilder) SequencePatterns(ctx context.Context, userID uuid.UUID) []models.SequencePattern {
	model := b.Model(ctx, userID)
	if model == nil {
		return nil
	}

	var patterns []models.SequencePattern
	for key, frequency := range model.Sequences {
		patterns = append(patterns, models.SequencePattern{
			Sequence:  strings.Split(key, sequenceSeparator),
			Frequency: frequency,
			LastSeen:  model.BuiltAt,
		})
	}
	for _, projectPatterns := range model.ProjectPatterns {
		patterns = append(patterns, projectPatterns...)
	}
	return patterns
}

// build assembles a fresh snapshot. Each input that fails is logged and
// skipped so one unavailable collaborator never blocks prediction.
func (b *ModelBuilder) build(ctx context.Context, userID uuid.UUID) *models.UserModel {
	model := &models.UserModel{
		UserID:          userID,
		Sequences:       make(map[string]int),
		ProjectPatterns: make(map[string][]models.SequencePattern),
		BuiltAt:         b.now(),
	}

	episodes, err := b.episodes.RecallRecent(ctx, userID, modelRecallWindow, modelRecallLimit)
	if err != nil {
		b.logger.Warn("model_episode_recall_failed",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	} else {
		b.mineSequences(model, episodes)
		b.mineHabits(model, episodes)
	}

	if b.profiles != nil {
		profile, err := b.profiles.Bootstrap(ctx, userID)
		if err != nil {
			b.logger.Warn("model_profile_bootstrap_failed",
				zap.String("user_id", userID.String()),
				zap.Error(err))
		} else if profile != nil {
			model.Preferences = profile.Preferences
			if len(profile.Patterns) > 0 {
				model.ProjectPatterns["profile"] = profile.Patterns
			}
		}
	}

	if b.workflows != nil {
		workflows, err := b.workflows.GetByUserID(ctx, userID)
		if err != nil {
			b.logger.Warn("model_workflow_load_failed",
				zap.String("user_id", userID.String()),
				zap.Error(err))
		} else {
			for _, workflow := range workflows {
				if workflow.Enabled {
					model.Workflows = append(model.Workflows, *workflow)
				}
			}
		}
	}

	return model
}

// mineSequences counts contiguous pairs and triples across session-ordered
// episodes.
func (b *ModelBuilder) mineSequences(model *models.UserModel, episodes []memory.Episode) {
	for i := 0; i+1 < len(episodes); i++ {
		pair := sequenceKey(episodes[i].Action, episodes[i+1].Action)
		model.Sequences[pair]++

		if i+2 < len(episodes) {
			triple := sequenceKey(episodes[i].Action, episodes[i+1].Action, episodes[i+2].Action)
			model.Sequences[triple]++
		}
	}
}

// mineHabits buckets actions by hour of day; recurring buckets become
// habits with a strength proportional to how concentrated they are.
func (b *ModelBuilder) mineHabits(model *models.UserModel, episodes []memory.Episode) {
	type habitKey struct {
		action string
		hour   int
	}
	counts := make(map[habitKey]int)
	totals := make(map[string]int)
	for _, episode := range episodes {
		counts[habitKey{action: episode.Action, hour: episode.Timestamp.Hour()}]++
		totals[episode.Action]++
	}

	for key, count := range counts {
		if count < habitMinCount {
			continue
		}
		model.Habits = append(model.Habits, models.Habit{
			Action:    key.action,
			HourStart: key.hour,
			HourEnd:   key.hour + 1,
			Strength:  float64(count) / float64(totals[key.action]),
		})
	}
}

func sequenceKey(actions ...string) string {
	return strings.Join(actions, sequenceSeparator)
}

// describeSequence renders a sequence key for logs and reasons
func describeSequence(key string) string {
	return fmt.Sprintf("sequence %s", key)
}
