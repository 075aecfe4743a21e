package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praxislabs/foresight/internal/models"
)

// FeedbackRepository handles feedback record database operations
type FeedbackRepository struct {
	db *DB
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(db *DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create inserts a feedback record. Records are immutable once written.
func (r *FeedbackRepository) Create(ctx context.Context, record *models.FeedbackRecord) error {
	query := `
		INSERT INTO feedback_records (id, suggestion_id, user_id, session_id, type, action,
			confidence, accepted, kind, signal, rating, sentiment, correction, category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	var suggestionID any
	if record.SuggestionID != uuid.Nil {
		suggestionID = record.SuggestionID
	}

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		suggestionID,
		record.UserID,
		record.SessionID,
		record.Type,
		record.Action,
		record.Confidence,
		record.Accepted,
		record.Kind,
		record.Signal,
		record.Rating,
		record.Sentiment,
		record.Correction,
		record.Category,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create feedback record: %w", err)
	}

	return nil
}

// GetByUserID retrieves the most recent feedback records for a user
func (r *FeedbackRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.FeedbackRecord, error) {
	query := selectFeedback + `
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback records: %w", err)
	}
	defer rows.Close()

	return scanFeedbackRows(rows)
}

// GetBySessionID retrieves feedback records for a session, oldest first
func (r *FeedbackRepository) GetBySessionID(ctx context.Context, userID uuid.UUID, sessionID string) ([]*models.FeedbackRecord, error) {
	query := selectFeedback + `
		WHERE user_id = $1 AND session_id = $2
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session feedback: %w", err)
	}
	defer rows.Close()

	return scanFeedbackRows(rows)
}

// DeleteOlderThan removes feedback records created before the cutoff
func (r *FeedbackRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM feedback_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old feedback records: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return deleted, nil
}

const selectFeedback = `
	SELECT id, suggestion_id, user_id, session_id, type, action,
		confidence, accepted, kind, signal, rating, sentiment, correction, category, created_at
	FROM feedback_records
`

func scanFeedbackRows(rows *sql.Rows) ([]*models.FeedbackRecord, error) {
	var records []*models.FeedbackRecord
	for rows.Next() {
		record := &models.FeedbackRecord{}
		var suggestionID uuid.NullUUID
		var sessionID, signal, sentiment, correction, category sql.NullString
		var rating sql.NullInt64

		err := rows.Scan(
			&record.ID,
			&suggestionID,
			&record.UserID,
			&sessionID,
			&record.Type,
			&record.Action,
			&record.Confidence,
			&record.Accepted,
			&record.Kind,
			&signal,
			&rating,
			&sentiment,
			&correction,
			&category,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback record: %w", err)
		}

		if suggestionID.Valid {
			record.SuggestionID = suggestionID.UUID
		}
		record.SessionID = sessionID.String
		record.Signal = models.Signal(signal.String)
		if rating.Valid {
			record.Rating = int(rating.Int64)
		}
		record.Sentiment = models.Sentiment(sentiment.String)
		record.Correction = correction.String
		record.Category = models.CorrectionCategory(category.String)

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback records: %w", err)
	}
	return records, nil
}
