package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/models"
)

// StepRunner executes one workflow step against the outside world. The
// execution context carries outputs of earlier steps merged under their
// action names.
type StepRunner interface {
	RunStep(ctx context.Context, step models.WorkflowStep, execContext map[string]any) (map[string]any, error)
}

// StepRunnerFunc adapts a function to the StepRunner interface
type StepRunnerFunc func(ctx context.Context, step models.WorkflowStep, execContext map[string]any) (map[string]any, error)

// RunStep calls the wrapped function
func (f StepRunnerFunc) RunStep(ctx context.Context, step models.WorkflowStep, execContext map[string]any) (map[string]any, error) {
	return f(ctx, step, execContext)
}

// Executor creates and runs workflows
type Executor struct {
	workflows database.WorkflowRepositoryInterface
	runner    StepRunner
	logger    *zap.Logger
	now       func() time.Time
}

// NewExecutor creates a workflow executor
func NewExecutor(workflows database.WorkflowRepositoryInterface, runner StepRunner, logger *zap.Logger) *Executor {
	return &Executor{
		workflows: workflows,
		runner:    runner,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateWorkflow persists a new workflow from an explicit step list
func (e *Executor) CreateWorkflow(ctx context.Context, userID uuid.UUID, name string, steps []models.WorkflowStep) (*models.Workflow, error) {
	if name == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("workflow needs at least one step")
	}
	if len(steps) > maxWorkflowSteps {
		return nil, fmt.Errorf("workflow exceeds %d steps", maxWorkflowSteps)
	}

	workflow := &models.Workflow{
		ID:      uuid.New(),
		UserID:  userID,
		Name:    name,
		Steps:   steps,
		Enabled: true,
	}
	if err := e.workflows.Create(ctx, workflow); err != nil {
		return nil, err
	}

	e.logger.Info("workflow_created",
		zap.String("workflow_id", workflow.ID.String()),
		zap.String("name", name),
		zap.Int("step_count", len(steps)))

	return workflow, nil
}

// CreateFromOpportunity materializes a mined opportunity into a workflow.
// Every step is required; callers relax that explicitly if wanted.
func (e *Executor) CreateFromOpportunity(ctx context.Context, userID uuid.UUID, opportunity models.Opportunity) (*models.Workflow, error) {
	steps := make([]models.WorkflowStep, 0, len(opportunity.Sequence))
	for _, action := range opportunity.Sequence {
		steps = append(steps, models.WorkflowStep{
			Action:   action,
			Type:     "mined",
			Required: true,
		})
	}
	name := strings.Join(opportunity.Sequence, " then ")
	return e.CreateWorkflow(ctx, userID, name, steps)
}

// Execute runs a workflow's steps strictly in order. A required step's
// failure aborts the run; an optional step's failure is recorded and
// skipped. Execution bookkeeping (count, running average time) updates on
// every run, successful or not.
func (e *Executor) Execute(ctx context.Context, workflowID uuid.UUID, input map[string]any) (*models.ExecutionResult, error) {
	workflow, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if !workflow.Enabled {
		return nil, fmt.Errorf("workflow is disabled")
	}

	start := e.now()
	execContext := make(map[string]any, len(input))
	for key, value := range input {
		execContext[key] = value
	}

	result := &models.ExecutionResult{
		WorkflowID: workflow.ID,
		Success:    true,
	}

	for _, step := range workflow.Steps {
		stepStart := e.now()
		output, err := e.runner.RunStep(ctx, step, execContext)
		stepResult := models.StepResult{
			Action:   step.Action,
			Success:  err == nil,
			Output:   output,
			Duration: e.now().Sub(stepStart),
		}
		if err != nil {
			stepResult.Error = err.Error()
		}
		result.Results = append(result.Results, stepResult)

		if err != nil {
			if step.Required {
				result.Success = false
				result.Error = fmt.Sprintf("required step %s failed: %v", step.Action, err)
				break
			}
			e.logger.Warn("optional_step_failed",
				zap.String("workflow_id", workflow.ID.String()),
				zap.String("action", step.Action),
				zap.Error(err))
			continue
		}

		// Later steps see earlier outputs under the producing action name.
		if output != nil {
			execContext[step.Action] = output
		}
	}

	result.ExecutionTime = e.now().Sub(start)

	workflow.ExecutionCount++
	workflow.AverageTime += (result.ExecutionTime - workflow.AverageTime) / time.Duration(workflow.ExecutionCount)
	if err := e.workflows.Update(ctx, workflow); err != nil {
		e.logger.Error("workflow_bookkeeping_failed",
			zap.String("workflow_id", workflow.ID.String()),
			zap.Error(err))
	}

	e.logger.Info("workflow_executed",
		zap.String("workflow_id", workflow.ID.String()),
		zap.Bool("success", result.Success),
		zap.Duration("execution_time", result.ExecutionTime))

	return result, nil
}

// SetEnabled toggles a workflow without touching its steps
func (e *Executor) SetEnabled(ctx context.Context, workflowID uuid.UUID, enabled bool) error {
	workflow, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}
	workflow.Enabled = enabled
	return e.workflows.Update(ctx, workflow)
}
