package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/models"
	"github.com/praxislabs/foresight/internal/validation"
)

// WorkflowService creates and executes workflows.
type WorkflowService interface {
	CreateWorkflow(ctx context.Context, userID uuid.UUID, name string, steps []models.WorkflowStep) (*models.Workflow, error)
	CreateFromOpportunity(ctx context.Context, userID uuid.UUID, opportunity models.Opportunity) (*models.Workflow, error)
	Execute(ctx context.Context, workflowID uuid.UUID, input map[string]any) (*models.ExecutionResult, error)
	SetEnabled(ctx context.Context, workflowID uuid.UUID, enabled bool) error
}

// OpportunityDetector mines automation opportunities from recent episodes.
type OpportunityDetector interface {
	DetectOpportunities(ctx context.Context, userID uuid.UUID) []models.Opportunity
}

// WorkflowHandler handles workflow-related requests
type WorkflowHandler struct {
	service WorkflowService
	miner   OpportunityDetector
	repo    database.WorkflowRepositoryInterface
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(service WorkflowService, miner OpportunityDetector, repo database.WorkflowRepositoryInterface) *WorkflowHandler {
	return &WorkflowHandler{service: service, miner: miner, repo: repo}
}

// RegisterRoutes registers workflow routes on the given router
// The router should already have the /workflows prefix
func (h *WorkflowHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListWorkflows).Methods("GET")
	r.HandleFunc("", h.CreateWorkflow).Methods("POST")
	r.HandleFunc("/opportunities", h.DetectOpportunities).Methods("GET")
	r.HandleFunc("/{id}", h.SetEnabled).Methods("PATCH")
	r.HandleFunc("/{id}/execute", h.ExecuteWorkflow).Methods("POST")
}

// CreateWorkflowRequest represents a create workflow request
type CreateWorkflowRequest struct {
	UserID      uuid.UUID             `json:"user_id" validate:"required"`
	Name        string                `json:"name,omitempty" validate:"omitempty,max=200"`
	Steps       []models.WorkflowStep `json:"steps,omitempty"`
	Opportunity *models.Opportunity   `json:"opportunity,omitempty"`
}

// ListWorkflows lists a user's workflows
func (h *WorkflowHandler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid or missing user_id")
		return
	}

	workflows, err := h.repo.GetByUserID(r.Context(), userID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list workflows")
		return
	}
	respondJSON(w, http.StatusOK, workflows)
}

// CreateWorkflow creates a workflow from explicit steps or a mined opportunity
func (h *WorkflowHandler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	var workflow *models.Workflow
	var err error
	if req.Opportunity != nil {
		workflow, err = h.service.CreateFromOpportunity(r.Context(), req.UserID, *req.Opportunity)
	} else {
		workflow, err = h.service.CreateWorkflow(r.Context(), req.UserID, validation.SanitizeText(req.Name), req.Steps)
	}
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, workflow)
}

// ExecuteWorkflowRequest carries the initial execution context
type ExecuteWorkflowRequest struct {
	Input map[string]any `json:"input,omitempty"`
}

// ExecuteWorkflow runs a workflow's steps in order
func (h *WorkflowHandler) ExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	workflowID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid workflow ID")
		return
	}

	var req ExecuteWorkflowRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
			return
		}
	}

	result, err := h.service.Execute(r.Context(), workflowID, req.Input)
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}

	// A required-step failure is a valid execution result, not a transport
	// error. The result carries success=false and the step error.
	respondJSON(w, http.StatusOK, result)
}

// SetEnabledRequest toggles a workflow on or off
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// SetEnabled enables or disables a workflow
func (h *WorkflowHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	workflowID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid workflow ID")
		return
	}

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}

	if err := h.service.SetEnabled(r.Context(), workflowID, req.Enabled); err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"workflow_id": workflowID, "enabled": req.Enabled})
}

// DetectOpportunities returns mined automation opportunities for a user
func (h *WorkflowHandler) DetectOpportunities(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid or missing user_id")
		return
	}

	opportunities := h.miner.DetectOpportunities(r.Context(), userID)
	respondJSON(w, http.StatusOK, opportunities)
}
