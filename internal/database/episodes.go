package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praxislabs/foresight/internal/models"
)

// EpisodeRepository handles episode database operations
type EpisodeRepository struct {
	db *DB
}

// NewEpisodeRepository creates a new episode repository
func NewEpisodeRepository(db *DB) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

// Create inserts an episode
func (r *EpisodeRepository) Create(ctx context.Context, episode *models.EpisodeRecord) error {
	query := `
		INSERT INTO episodes (id, user_id, type, action, session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		episode.ID,
		episode.UserID,
		episode.Type,
		episode.Action,
		episode.SessionID,
		episode.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create episode: %w", err)
	}

	return nil
}

// GetRecent retrieves a user's most recent episodes within the window,
// returned oldest first and capped at limit
func (r *EpisodeRepository) GetRecent(ctx context.Context, userID uuid.UUID, window time.Duration, limit int) ([]*models.EpisodeRecord, error) {
	query := `
		SELECT id, user_id, type, action, session_id, created_at
		FROM episodes
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, time.Now().Add(-window), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	episodes, err := scanEpisodeRows(rows)
	if err != nil {
		return nil, err
	}

	// The query walks newest first so the limit keeps the latest events;
	// callers read the slice tail as the user's last action, so flip back
	// to chronological order.
	reverseEpisodes(episodes)
	return episodes, nil
}

// GetBySessionID retrieves a session's episodes in order
func (r *EpisodeRepository) GetBySessionID(ctx context.Context, userID uuid.UUID, sessionID string) ([]*models.EpisodeRecord, error) {
	query := `
		SELECT id, user_id, type, action, session_id, created_at
		FROM episodes
		WHERE user_id = $1 AND session_id = $2
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session episodes: %w", err)
	}
	defer rows.Close()

	return scanEpisodeRows(rows)
}

func reverseEpisodes(episodes []*models.EpisodeRecord) {
	for i, j := 0, len(episodes)-1; i < j; i, j = i+1, j-1 {
		episodes[i], episodes[j] = episodes[j], episodes[i]
	}
}

func scanEpisodeRows(rows *sql.Rows) ([]*models.EpisodeRecord, error) {
	var episodes []*models.EpisodeRecord
	for rows.Next() {
		episode := &models.EpisodeRecord{}
		var sessionID sql.NullString

		err := rows.Scan(
			&episode.ID,
			&episode.UserID,
			&episode.Type,
			&episode.Action,
			&sessionID,
			&episode.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		episode.SessionID = sessionID.String

		episodes = append(episodes, episode)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate episodes: %w", err)
	}
	return episodes, nil
}
