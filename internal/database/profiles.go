package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praxislabs/foresight/internal/models"
)

// ProfileRepository handles user profile database operations
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get retrieves a user's profile; a missing profile returns an empty one
func (r *ProfileRepository) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile := &models.Profile{UserID: userID}
	var preferencesJSON, factsJSON []byte

	query := `
		SELECT preferences, facts
		FROM profiles
		WHERE user_id = $1
	`

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&preferencesJSON, &factsJSON)
	if err == sql.ErrNoRows {
		return profile, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if err := json.Unmarshal(preferencesJSON, &profile.Preferences); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}
	if err := json.Unmarshal(factsJSON, &profile.Facts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal facts: %w", err)
	}

	return profile, nil
}

// Upsert writes a user's profile
func (r *ProfileRepository) Upsert(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO profiles (user_id, preferences, facts, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			preferences = EXCLUDED.preferences,
			facts = EXCLUDED.facts,
			updated_at = EXCLUDED.updated_at
	`

	preferencesJSON, err := json.Marshal(profile.Preferences)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	factsJSON, err := json.Marshal(profile.Facts)
	if err != nil {
		return fmt.Errorf("failed to marshal facts: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, profile.UserID, preferencesJSON, factsJSON, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}

// AppendFacts adds consolidated facts to an existing profile
func (r *ProfileRepository) AppendFacts(ctx context.Context, userID uuid.UUID, facts []models.Fact) error {
	if len(facts) == 0 {
		return nil
	}

	profile, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}

	profile.Facts = append(profile.Facts, facts...)
	return r.Upsert(ctx, profile)
}
