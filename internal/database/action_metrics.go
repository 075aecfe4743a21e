package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praxislabs/foresight/internal/models"
)

// ActionMetricRepository handles action metric database operations
type ActionMetricRepository struct {
	db *DB
}

// NewActionMetricRepository creates a new action metric repository
func NewActionMetricRepository(db *DB) *ActionMetricRepository {
	return &ActionMetricRepository{db: db}
}

// Get retrieves the metric for an action, or nil if none exists
func (r *ActionMetricRepository) Get(ctx context.Context, userID uuid.UUID, action string) (*models.ActionMetric, error) {
	metric := &models.ActionMetric{}
	var avgTimeMs int64

	query := `
		SELECT action, total, successful, failed, avg_time_ms, success_rate, trend, updated_at
		FROM action_metrics
		WHERE user_id = $1 AND action = $2
	`

	err := r.db.QueryRowContext(ctx, query, userID, action).Scan(
		&metric.Action,
		&metric.Total,
		&metric.Successful,
		&metric.Failed,
		&avgTimeMs,
		&metric.SuccessRate,
		&metric.Trend,
		&metric.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action metric: %w", err)
	}

	metric.AvgTime = time.Duration(avgTimeMs) * time.Millisecond
	return metric, nil
}

// GetAllByUserID retrieves all action metrics for a user
func (r *ActionMetricRepository) GetAllByUserID(ctx context.Context, userID uuid.UUID) ([]*models.ActionMetric, error) {
	query := `
		SELECT action, total, successful, failed, avg_time_ms, success_rate, trend, updated_at
		FROM action_metrics
		WHERE user_id = $1
		ORDER BY action
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query action metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*models.ActionMetric
	for rows.Next() {
		metric := &models.ActionMetric{}
		var avgTimeMs int64
		err := rows.Scan(
			&metric.Action,
			&metric.Total,
			&metric.Successful,
			&metric.Failed,
			&avgTimeMs,
			&metric.SuccessRate,
			&metric.Trend,
			&metric.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action metric: %w", err)
		}
		metric.AvgTime = time.Duration(avgTimeMs) * time.Millisecond
		metrics = append(metrics, metric)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action metrics: %w", err)
	}
	return metrics, nil
}

// Upsert writes the metric for an action
func (r *ActionMetricRepository) Upsert(ctx context.Context, userID uuid.UUID, metric *models.ActionMetric) error {
	query := `
		INSERT INTO action_metrics (user_id, action, total, successful, failed, avg_time_ms, success_rate, trend, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, action) DO UPDATE SET
			total = EXCLUDED.total,
			successful = EXCLUDED.successful,
			failed = EXCLUDED.failed,
			avg_time_ms = EXCLUDED.avg_time_ms,
			success_rate = EXCLUDED.success_rate,
			trend = EXCLUDED.trend,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		userID,
		metric.Action,
		metric.Total,
		metric.Successful,
		metric.Failed,
		metric.AvgTime.Milliseconds(),
		metric.SuccessRate,
		metric.Trend,
		metric.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert action metric: %w", err)
	}

	return nil
}

// CreateRegression records a detected performance regression
func (r *ActionMetricRepository) CreateRegression(ctx context.Context, userID uuid.UUID, regression *models.Regression) error {
	query := `
		INSERT INTO regressions (id, user_id, action, from_rate, to_rate, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		uuid.New(),
		userID,
		regression.Action,
		regression.FromRate,
		regression.ToRate,
		regression.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create regression: %w", err)
	}

	return nil
}

// GetRegressions retrieves regressions detected since the given time
func (r *ActionMetricRepository) GetRegressions(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.Regression, error) {
	query := `
		SELECT action, from_rate, to_rate, detected_at
		FROM regressions
		WHERE user_id = $1 AND detected_at >= $2
		ORDER BY detected_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query regressions: %w", err)
	}
	defer rows.Close()

	var regressions []*models.Regression
	for rows.Next() {
		regression := &models.Regression{}
		err := rows.Scan(
			&regression.Action,
			&regression.FromRate,
			&regression.ToRate,
			&regression.DetectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan regression: %w", err)
		}
		regressions = append(regressions, regression)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate regressions: %w", err)
	}
	return regressions, nil
}

// DeleteRegressionsOlderThan removes regressions detected before the cutoff
func (r *ActionMetricRepository) DeleteRegressionsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM regressions WHERE detected_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old regressions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return deleted, nil
}
