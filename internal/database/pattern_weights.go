package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/praxislabs/foresight/internal/models"
)

// PatternWeightRepository handles pattern weight database operations
type PatternWeightRepository struct {
	db *DB
}

// NewPatternWeightRepository creates a new pattern weight repository
func NewPatternWeightRepository(db *DB) *PatternWeightRepository {
	return &PatternWeightRepository{db: db}
}

// Get retrieves the weight for a (type, action) pair, or nil if none exists
func (r *PatternWeightRepository) Get(ctx context.Context, userID uuid.UUID, patternType, action string) (*models.PatternWeight, error) {
	weight := &models.PatternWeight{}

	query := `
		SELECT type, action, positive, negative, total, multiplier, updated_at
		FROM pattern_weights
		WHERE user_id = $1 AND type = $2 AND action = $3
	`

	err := r.db.QueryRowContext(ctx, query, userID, patternType, action).Scan(
		&weight.Type,
		&weight.Action,
		&weight.Positive,
		&weight.Negative,
		&weight.Total,
		&weight.Multiplier,
		&weight.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pattern weight: %w", err)
	}

	return weight, nil
}

// GetAllByUserID retrieves all pattern weights for a user
func (r *PatternWeightRepository) GetAllByUserID(ctx context.Context, userID uuid.UUID) ([]*models.PatternWeight, error) {
	query := `
		SELECT type, action, positive, negative, total, multiplier, updated_at
		FROM pattern_weights
		WHERE user_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern weights: %w", err)
	}
	defer rows.Close()

	var weights []*models.PatternWeight
	for rows.Next() {
		weight := &models.PatternWeight{}
		err := rows.Scan(
			&weight.Type,
			&weight.Action,
			&weight.Positive,
			&weight.Negative,
			&weight.Total,
			&weight.Multiplier,
			&weight.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern weight: %w", err)
		}
		weights = append(weights, weight)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pattern weights: %w", err)
	}
	return weights, nil
}

// Upsert writes the weight for a (type, action) pair
func (r *PatternWeightRepository) Upsert(ctx context.Context, userID uuid.UUID, weight *models.PatternWeight) error {
	query := `
		INSERT INTO pattern_weights (user_id, type, action, positive, negative, total, multiplier, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, type, action) DO UPDATE SET
			positive = EXCLUDED.positive,
			negative = EXCLUDED.negative,
			total = EXCLUDED.total,
			multiplier = EXCLUDED.multiplier,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		userID,
		weight.Type,
		weight.Action,
		weight.Positive,
		weight.Negative,
		weight.Total,
		weight.Multiplier,
		weight.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pattern weight: %w", err)
	}

	return nil
}
