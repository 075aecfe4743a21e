package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/praxislabs/foresight/internal/models"
)

// FeedbackRepositoryInterface defines the interface for feedback repository operations
// This interface enables better testability by allowing mock implementations
type FeedbackRepositoryInterface interface {
	Create(ctx context.Context, record *models.FeedbackRecord) error
	GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.FeedbackRecord, error)
	GetBySessionID(ctx context.Context, userID uuid.UUID, sessionID string) ([]*models.FeedbackRecord, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PatternWeightRepositoryInterface defines the interface for pattern weight repository operations
type PatternWeightRepositoryInterface interface {
	Get(ctx context.Context, userID uuid.UUID, patternType, action string) (*models.PatternWeight, error)
	GetAllByUserID(ctx context.Context, userID uuid.UUID) ([]*models.PatternWeight, error)
	Upsert(ctx context.Context, userID uuid.UUID, weight *models.PatternWeight) error
}

// ActionMetricRepositoryInterface defines the interface for action metric repository operations
type ActionMetricRepositoryInterface interface {
	Get(ctx context.Context, userID uuid.UUID, action string) (*models.ActionMetric, error)
	GetAllByUserID(ctx context.Context, userID uuid.UUID) ([]*models.ActionMetric, error)
	Upsert(ctx context.Context, userID uuid.UUID, metric *models.ActionMetric) error
	CreateRegression(ctx context.Context, userID uuid.UUID, regression *models.Regression) error
	GetRegressions(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.Regression, error)
	DeleteRegressionsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// WorkflowRepositoryInterface defines the interface for workflow repository operations
type WorkflowRepositoryInterface interface {
	Create(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Workflow, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Workflow, error)
	Update(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProfileRepositoryInterface defines the interface for profile repository operations
type ProfileRepositoryInterface interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	Upsert(ctx context.Context, profile *models.Profile) error
	AppendFacts(ctx context.Context, userID uuid.UUID, facts []models.Fact) error
}

// EpisodeRepositoryInterface defines the interface for episode repository operations
type EpisodeRepositoryInterface interface {
	Create(ctx context.Context, episode *models.EpisodeRecord) error
	GetRecent(ctx context.Context, userID uuid.UUID, window time.Duration, limit int) ([]*models.EpisodeRecord, error)
	GetBySessionID(ctx context.Context, userID uuid.UUID, sessionID string) ([]*models.EpisodeRecord, error)
}

// Ensure concrete types implement the interfaces
var (
	_ FeedbackRepositoryInterface      = (*FeedbackRepository)(nil)
	_ PatternWeightRepositoryInterface = (*PatternWeightRepository)(nil)
	_ ActionMetricRepositoryInterface  = (*ActionMetricRepository)(nil)
	_ WorkflowRepositoryInterface      = (*WorkflowRepository)(nil)
	_ ProfileRepositoryInterface       = (*ProfileRepository)(nil)
	_ EpisodeRepositoryInterface       = (*EpisodeRepository)(nil)
)
