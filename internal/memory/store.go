package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/models"
	"github.com/praxislabs/foresight/internal/queue"
)

// EpisodeStore implements EpisodicReader over the episode repository
type EpisodeStore struct {
	episodes database.EpisodeRepositoryInterface
}

// NewEpisodeStore creates an episodic reader backed by the database
func NewEpisodeStore(episodes database.EpisodeRepositoryInterface) *EpisodeStore {
	return &EpisodeStore{episodes: episodes}
}

// RecallRecent returns the most recent episodes within window, oldest first
func (s *EpisodeStore) RecallRecent(ctx context.Context, userID uuid.UUID, window time.Duration, limit int) ([]Episode, error) {
	records, err := s.episodes.GetRecent(ctx, userID, window, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to recall recent episodes: %w", err)
	}
	return toEpisodes(records), nil
}

// CausalChain returns the session events that preceded the given episode
func (s *EpisodeStore) CausalChain(ctx context.Context, userID uuid.UUID, episode Episode) ([]Episode, error) {
	if episode.SessionID == "" {
		return nil, nil
	}

	records, err := s.episodes.GetBySessionID(ctx, userID, episode.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session episodes: %w", err)
	}

	var chain []Episode
	for _, record := range records {
		if !record.CreatedAt.Before(episode.Timestamp) {
			break
		}
		chain = append(chain, Episode{
			Type:      string(record.Type),
			Action:    record.Action,
			SessionID: record.SessionID,
			Timestamp: record.CreatedAt,
		})
	}
	return chain, nil
}

func toEpisodes(records []*models.EpisodeRecord) []Episode {
	episodes := make([]Episode, 0, len(records))
	for _, record := range records {
		episodes = append(episodes, Episode{
			Type:      string(record.Type),
			Action:    record.Action,
			SessionID: record.SessionID,
			Timestamp: record.CreatedAt,
		})
	}
	return episodes
}

// DBProfileStore implements ProfileStore over the profile repository
type DBProfileStore struct {
	profiles database.ProfileRepositoryInterface
}

// NewDBProfileStore creates a profile store backed by the database
func NewDBProfileStore(profiles database.ProfileRepositoryInterface) *DBProfileStore {
	return &DBProfileStore{profiles: profiles}
}

// Bootstrap loads a user's profile; a missing profile returns an empty one
func (s *DBProfileStore) Bootstrap(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap profile: %w", err)
	}
	return profile, nil
}

// QueueConsolidator implements Consolidator by enqueueing a consolidation
// job. The write itself happens in the worker, so callers never block on
// persistence.
type QueueConsolidator struct {
	queue queue.JobQueue
}

// NewQueueConsolidator creates a queue-backed consolidation sink
func NewQueueConsolidator(q queue.JobQueue) *QueueConsolidator {
	return &QueueConsolidator{queue: q}
}

// Consolidate enqueues the payload for asynchronous persistence
func (c *QueueConsolidator) Consolidate(ctx context.Context, userID uuid.UUID, payload ConsolidationPayload) error {
	job, err := queue.NewJob(queue.JobTypeConsolidation, userID, payload)
	if err != nil {
		return fmt.Errorf("failed to build consolidation job: %w", err)
	}
	if err := c.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue consolidation: %w", err)
	}
	return nil
}

var (
	_ EpisodicReader = (*EpisodeStore)(nil)
	_ ProfileStore   = (*DBProfileStore)(nil)
	_ Consolidator   = (*QueueConsolidator)(nil)
)
