package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeLearningEvent carries one learning event into the worker's
	// batched drain.
	JobTypeLearningEvent JobType = "learning_event"
	// JobTypePreload asks the worker to pre-warm resources for a
	// high-confidence prediction.
	JobTypePreload JobType = "preload"
	// JobTypeConsolidation is a fire-and-forget persistence write.
	JobTypeConsolidation JobType = "consolidation"
	// JobTypeSweep prunes aged feedback and regressions.
	JobTypeSweep JobType = "sweep"
)

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID       `json:"id"`
	Type       JobType         `json:"type"`
	UserID     uuid.UUID       `json:"user_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	NotBefore  *time.Time      `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter   *time.Time      `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	CreatedAt  time.Time       `json:"created_at"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, userID uuid.UUID, payload any) (*Job, error) {
	job := &Job{
		ID:         uuid.New(),
		Type:       jobType,
		UserID:     userID,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: 3,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		job.Payload = raw
	}
	return job, nil
}

// DecodePayload unmarshals the job payload into out.
func (j *Job) DecodePayload(out any) error {
	if len(j.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(j.Payload, out)
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()

	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
