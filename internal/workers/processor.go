// Package workers processes queued jobs: learning events arriving out of
// band, preload warmups, consolidation writes, and retention sweeps.
package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/anticipate"
	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/learning"
	"github.com/praxislabs/foresight/internal/memory"
	"github.com/praxislabs/foresight/internal/models"
	"github.com/praxislabs/foresight/internal/queue"
)

// Retention cutoffs applied by sweep jobs. They mirror the orchestrator's
// daily prune so a sweep landing on the worker is idempotent.
const (
	feedbackRetention   = 30 * 24 * time.Hour
	regressionRetention = 7 * 24 * time.Hour
)

const retryBaseDelay = 5 * time.Second

// JobProcessor dispatches queued jobs to the engine's collaborators
type JobProcessor struct {
	orchestrator *learning.Orchestrator
	builder      *anticipate.ModelBuilder
	episodes     database.EpisodeRepositoryInterface
	profiles     database.ProfileRepositoryInterface
	feedback     database.FeedbackRepositoryInterface
	metrics      database.ActionMetricRepositoryInterface
	jobs         queue.JobQueue
	logger       *zap.Logger
}

// NewJobProcessor creates a job processor
func NewJobProcessor(
	orchestrator *learning.Orchestrator,
	builder *anticipate.ModelBuilder,
	episodes database.EpisodeRepositoryInterface,
	profiles database.ProfileRepositoryInterface,
	feedback database.FeedbackRepositoryInterface,
	metrics database.ActionMetricRepositoryInterface,
	jobs queue.JobQueue,
	logger *zap.Logger,
) *JobProcessor {
	return &JobProcessor{
		orchestrator: orchestrator,
		builder:      builder,
		episodes:     episodes,
		profiles:     profiles,
		feedback:     feedback,
		metrics:      metrics,
		jobs:         jobs,
		logger:       logger,
	}
}

// ProcessJob handles one delivered message: dispatch, acknowledgment, and
// retry with exponential delay. A job past NotAfter is acknowledged and
// dropped; a job out of retries goes to the DLQ.
func (p *JobProcessor) ProcessJob(ctx context.Context, msg *queue.Message) error {
	job := msg.GetJob()

	if job.IsExpired() {
		p.logger.Info("job_expired",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)))
		if err := msg.Ack(); err != nil {
			return fmt.Errorf("failed to ack expired job: %w", err)
		}
		return nil
	}

	if !job.ShouldProcess() {
		// Delivered ahead of NotBefore; requeue and let the delay pass
		if err := p.requeue(ctx, job); err != nil {
			p.logger.Warn("early_job_requeue_failed", zap.Error(err))
			if nackErr := msg.Nack(true); nackErr != nil {
				return fmt.Errorf("failed to nack early job: %w", nackErr)
			}
			return nil
		}
		if err := msg.Ack(); err != nil {
			return fmt.Errorf("failed to ack early job: %w", err)
		}
		return nil
	}

	var procErr error
	switch job.Type {
	case queue.JobTypeLearningEvent:
		procErr = p.processLearningEvent(ctx, job)
	case queue.JobTypePreload:
		procErr = p.processPreload(ctx, job)
	case queue.JobTypeConsolidation:
		procErr = p.processConsolidation(ctx, job)
	case queue.JobTypeSweep:
		procErr = p.processSweep(ctx, job)
	default:
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("unknown_job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	if procErr != nil {
		return p.handleJobError(ctx, msg, job, procErr)
	}

	if err := msg.Ack(); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// handleJobError retries failed jobs with exponential delay until the
// retry budget runs out, then dead-letters them.
func (p *JobProcessor) handleJobError(ctx context.Context, msg *queue.Message, job *queue.Job, err error) error {
	if !job.CanRetry() {
		p.logger.Error("job_failed_permanently",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.Int("retry_count", job.RetryCount),
			zap.Error(err))
		if nackErr := msg.Nack(false); nackErr != nil {
			return fmt.Errorf("failed to nack exhausted job: %w", nackErr)
		}
		return nil
	}

	job.IncrementRetry()
	delay := retryBaseDelay * time.Duration(1<<uint(job.RetryCount))
	notBefore := time.Now().Add(delay)
	job.NotBefore = &notBefore

	p.logger.Warn("job_failed_retrying",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.Int("retry_count", job.RetryCount),
		zap.Duration("retry_delay", delay),
		zap.Error(err))

	if requeueErr := p.requeue(ctx, job); requeueErr != nil {
		p.logger.Error("job_requeue_failed", zap.Error(requeueErr))
		if nackErr := msg.Nack(true); nackErr != nil {
			return fmt.Errorf("failed to nack job for retry: %w", nackErr)
		}
		return nil
	}
	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack retried job: %w", ackErr)
	}
	return nil
}

func (p *JobProcessor) requeue(ctx context.Context, job *queue.Job) error {
	return p.jobs.Enqueue(ctx, job)
}

// processLearningEvent feeds an out-of-band learning event into the
// orchestrator's batch. Clients that track outcomes offline enqueue these
// directly instead of calling the HTTP surface.
func (p *JobProcessor) processLearningEvent(ctx context.Context, job *queue.Job) error {
	var event learning.Event
	if err := job.DecodePayload(&event); err != nil {
		return fmt.Errorf("failed to decode learning event: %w", err)
	}
	if event.UserID == uuid.Nil {
		event.UserID = job.UserID
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = job.CreatedAt
	}
	p.orchestrator.CoordinateLearning(ctx, &event)
	return nil
}

// processPreload warms the user model so the predicted action resolves
// against fresh data when it arrives.
func (p *JobProcessor) processPreload(ctx context.Context, job *queue.Job) error {
	var payload struct {
		Action     string  `json:"action"`
		Confidence float64 `json:"confidence"`
	}
	if err := job.DecodePayload(&payload); err != nil {
		return fmt.Errorf("failed to decode preload payload: %w", err)
	}

	p.builder.Invalidate(job.UserID)
	model := p.builder.Model(ctx, job.UserID)

	p.logger.Info("preload_completed",
		zap.String("user_id", job.UserID.String()),
		zap.String("action", payload.Action),
		zap.Float64("confidence", payload.Confidence),
		zap.Int("sequence_count", len(model.Sequences)))
	return nil
}

// processConsolidation persists a consolidation batch: interactions become
// episodes, facts and detected feedback patterns land on the profile.
func (p *JobProcessor) processConsolidation(ctx context.Context, job *queue.Job) error {
	var payload memory.ConsolidationPayload
	if err := job.DecodePayload(&payload); err != nil {
		return fmt.Errorf("failed to decode consolidation payload: %w", err)
	}

	for _, interaction := range payload.Interactions {
		record := &models.EpisodeRecord{
			ID:        uuid.New(),
			UserID:    job.UserID,
			Type:      models.EpisodeType(interaction.Type),
			Action:    interaction.Action,
			SessionID: interaction.SessionID,
			CreatedAt: interaction.Timestamp,
		}
		if err := p.episodes.Create(ctx, record); err != nil {
			return fmt.Errorf("failed to persist interaction: %w", err)
		}
	}

	facts := append([]models.Fact(nil), payload.Facts...)
	for _, pattern := range payload.Learnings {
		facts = append(facts, models.Fact{
			Content:    fmt.Sprintf("%s feedback recurs for %s actions", pattern.Signal, pattern.ActionType),
			Action:     pattern.ActionType,
			Confidence: pattern.Confidence,
		})
	}
	if len(facts) > 0 {
		if err := p.profiles.AppendFacts(ctx, job.UserID, facts); err != nil {
			return fmt.Errorf("failed to append facts: %w", err)
		}
	}

	p.logger.Info("consolidation_persisted",
		zap.String("user_id", job.UserID.String()),
		zap.Int("interactions", len(payload.Interactions)),
		zap.Int("facts", len(facts)))
	return nil
}

// processSweep prunes aged feedback and regressions
func (p *JobProcessor) processSweep(ctx context.Context, job *queue.Job) error {
	now := time.Now()

	removedFeedback, err := p.feedback.DeleteOlderThan(ctx, now.Add(-feedbackRetention))
	if err != nil {
		return fmt.Errorf("failed to prune feedback: %w", err)
	}
	removedRegressions, err := p.metrics.DeleteRegressionsOlderThan(ctx, now.Add(-regressionRetention))
	if err != nil {
		return fmt.Errorf("failed to prune regressions: %w", err)
	}

	p.logger.Info("sweep_completed",
		zap.String("job_id", job.ID.String()),
		zap.Int64("feedback_removed", removedFeedback),
		zap.Int64("regressions_removed", removedRegressions))
	return nil
}
