package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowStep is one ordered step of an executable workflow. A required
// step's failure aborts the whole execution; an optional step's failure is
// recorded and skipped.
type WorkflowStep struct {
	Action   string         `json:"action"`
	Type     string         `json:"type"`
	Required bool           `json:"required"`
	Params   map[string]any `json:"params,omitempty"`
}

// Workflow is an ordered, executable sequence of steps, mined from repeated
// behavior or created explicitly. Only execution bookkeeping and the enabled
// flag mutate after creation.
type Workflow struct {
	ID             uuid.UUID      `json:"id"`
	UserID         uuid.UUID      `json:"user_id"`
	Name           string         `json:"name"`
	Steps          []WorkflowStep `json:"steps"`
	ExecutionCount int            `json:"execution_count"`
	AverageTime    time.Duration  `json:"average_time"`
	Enabled        bool           `json:"enabled"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// StepResult is the outcome of one executed step.
type StepResult struct {
	Action   string         `json:"action"`
	Success  bool           `json:"success"`
	Error    string         `json:"error,omitempty"`
	Output   map[string]any `json:"output,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// ExecutionResult is the outcome of a workflow run.
type ExecutionResult struct {
	WorkflowID    uuid.UUID     `json:"workflow_id"`
	Success       bool          `json:"success"`
	Results       []StepResult  `json:"results"`
	Error         string        `json:"error,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// Opportunity is a mined candidate for automation: a sequence seen at least
// three times whose automation confidence cleared the surfacing bar (0.75).
type Opportunity struct {
	Sequence    []string `json:"sequence"`
	Occurrences int      `json:"occurrences"`
	Confidence  float64  `json:"confidence"`
}
