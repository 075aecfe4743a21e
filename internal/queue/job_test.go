package queue

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewJob(t *testing.T) {
	userID := uuid.New()
	payload := map[string]string{"action": "run_tests"}

	job, err := NewJob(JobTypeLearningEvent, userID, payload)
	if err != nil {
		t.Fatalf("NewJob returned error: %v", err)
	}

	if job.ID == uuid.Nil {
		t.Error("expected job ID to be set")
	}
	if job.Type != JobTypeLearningEvent {
		t.Errorf("expected type %s, got %s", JobTypeLearningEvent, job.Type)
	}
	if job.UserID != userID {
		t.Errorf("expected user ID %s, got %s", userID, job.UserID)
	}
	if job.MaxRetries != 3 {
		t.Errorf("expected max retries 3, got %d", job.MaxRetries)
	}

	var decoded map[string]string
	if err := job.DecodePayload(&decoded); err != nil {
		t.Fatalf("DecodePayload returned error: %v", err)
	}
	if decoded["action"] != "run_tests" {
		t.Errorf("expected action run_tests, got %s", decoded["action"])
	}
}

func TestJobShouldProcess(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name      string
		notBefore *time.Time
		want      bool
	}{
		{"no constraint", nil, true},
		{"not before in past", &past, true},
		{"not before in future", &future, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &Job{NotBefore: tt.notBefore}
			if got := job.ShouldProcess(); got != tt.want {
				t.Errorf("ShouldProcess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJobIsExpired(t *testing.T) {
	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name     string
		notAfter *time.Time
		want     bool
	}{
		{"no deadline", nil, false},
		{"deadline in future", &future, false},
		{"deadline in past", &past, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &Job{NotAfter: tt.notAfter}
			if got := job.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJobRetry(t *testing.T) {
	job := &Job{MaxRetries: 2}

	if !job.CanRetry() {
		t.Error("expected job with 0 retries to be retryable")
	}

	job.IncrementRetry()
	if !job.CanRetry() {
		t.Error("expected job with 1 retry to be retryable")
	}

	job.IncrementRetry()
	if job.CanRetry() {
		t.Error("expected job at max retries to not be retryable")
	}
}
