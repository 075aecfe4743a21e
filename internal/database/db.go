package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Postgres driver
	_ "github.com/lib/pq"
)

// DB wraps the sql database connection pool
type DB struct {
	*sql.DB
}

// New creates a new database connection pool
func New(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// HealthCheck verifies the database connection is healthy
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Migrate creates the schema if it does not exist
func (db *DB) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS feedback_records (
			id UUID PRIMARY KEY,
			suggestion_id UUID,
			user_id UUID NOT NULL,
			session_id TEXT,
			type TEXT NOT NULL,
			action TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			accepted BOOLEAN NOT NULL DEFAULT FALSE,
			kind TEXT NOT NULL,
			signal TEXT,
			rating INT,
			sentiment TEXT,
			correction TEXT,
			category TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_user_created ON feedback_records (user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS pattern_weights (
			user_id UUID NOT NULL,
			type TEXT NOT NULL,
			action TEXT NOT NULL,
			positive INT NOT NULL DEFAULT 0,
			negative INT NOT NULL DEFAULT 0,
			total INT NOT NULL DEFAULT 0,
			multiplier DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, type, action)
		)`,
		`CREATE TABLE IF NOT EXISTS action_metrics (
			user_id UUID NOT NULL,
			action TEXT NOT NULL,
			total INT NOT NULL DEFAULT 0,
			successful INT NOT NULL DEFAULT 0,
			failed INT NOT NULL DEFAULT 0,
			avg_time_ms BIGINT NOT NULL DEFAULT 0,
			success_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			trend TEXT NOT NULL DEFAULT 'stable',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, action)
		)`,
		`CREATE TABLE IF NOT EXISTS regressions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			action TEXT NOT NULL,
			from_rate DOUBLE PRECISION NOT NULL,
			to_rate DOUBLE PRECISION NOT NULL,
			detected_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS workflows (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			name TEXT NOT NULL,
			steps JSONB NOT NULL DEFAULT '[]',
			execution_count INT NOT NULL DEFAULT 0,
			average_time_ms BIGINT NOT NULL DEFAULT 0,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_user ON workflows (user_id)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id UUID PRIMARY KEY,
			preferences JSONB NOT NULL DEFAULT '{}',
			facts JSONB NOT NULL DEFAULT '[]',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS episodes (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			type TEXT NOT NULL,
			action TEXT NOT NULL,
			session_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_user_created ON episodes (user_id, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
