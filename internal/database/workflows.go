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

// WorkflowRepository handles workflow database operations
type WorkflowRepository struct {
	db *DB
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Create creates a new workflow
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	query := `
		INSERT INTO workflows (id, user_id, name, steps, execution_count, average_time_ms, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	stepsJSON, err := json.Marshal(workflow.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	now := time.Now()
	err = r.db.QueryRowContext(ctx, query,
		workflow.ID,
		workflow.UserID,
		workflow.Name,
		stepsJSON,
		workflow.ExecutionCount,
		workflow.AverageTime.Milliseconds(),
		workflow.Enabled,
		now,
		now,
	).Scan(&workflow.CreatedAt, &workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	return nil
}

// GetByID retrieves a workflow by ID
func (r *WorkflowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	workflow := &models.Workflow{}
	var stepsJSON []byte
	var avgTimeMs int64

	query := `
		SELECT id, user_id, name, steps, execution_count, average_time_ms, enabled, created_at, updated_at
		FROM workflows
		WHERE id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&workflow.ID,
		&workflow.UserID,
		&workflow.Name,
		&stepsJSON,
		&workflow.ExecutionCount,
		&avgTimeMs,
		&workflow.Enabled,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workflow not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if err := json.Unmarshal(stepsJSON, &workflow.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}
	workflow.AverageTime = time.Duration(avgTimeMs) * time.Millisecond

	return workflow, nil
}

// GetByUserID retrieves all workflows for a user
func (r *WorkflowRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Workflow, error) {
	query := `
		SELECT id, user_id, name, steps, execution_count, average_time_ms, enabled, created_at, updated_at
		FROM workflows
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		workflow := &models.Workflow{}
		var stepsJSON []byte
		var avgTimeMs int64

		err := rows.Scan(
			&workflow.ID,
			&workflow.UserID,
			&workflow.Name,
			&stepsJSON,
			&workflow.ExecutionCount,
			&avgTimeMs,
			&workflow.Enabled,
			&workflow.CreatedAt,
			&workflow.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		if err := json.Unmarshal(stepsJSON, &workflow.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
		}
		workflow.AverageTime = time.Duration(avgTimeMs) * time.Millisecond

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflows: %w", err)
	}
	return workflows, nil
}

// Update updates a workflow's steps, bookkeeping, and enabled flag
func (r *WorkflowRepository) Update(ctx context.Context, workflow *models.Workflow) error {
	query := `
		UPDATE workflows
		SET name = $2, steps = $3, execution_count = $4, average_time_ms = $5, enabled = $6, updated_at = $7
		WHERE id = $1
	`

	stepsJSON, err := json.Marshal(workflow.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	workflow.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		stepsJSON,
		workflow.ExecutionCount,
		workflow.AverageTime.Milliseconds(),
		workflow.Enabled,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("workflow not found")
	}

	return nil
}

// Delete removes a workflow
func (r *WorkflowRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("workflow not found")
	}

	return nil
}
