package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/praxislabs/foresight/internal/learning"
	"github.com/praxislabs/foresight/internal/models"
	"github.com/praxislabs/foresight/internal/services/ai"
	"github.com/praxislabs/foresight/internal/validation"
)

// SuggestionEngine generates suggestions and records their outcomes.
type SuggestionEngine interface {
	Generate(ctx context.Context, sctx *models.Context) []*models.Suggestion
	TrackOutcome(ctx context.Context, suggestionID uuid.UUID, accepted bool, scale float64)
}

// PredictionEngine predicts next actions and grades buffered predictions.
type PredictionEngine interface {
	Predict(ctx context.Context, sctx *models.Context) []*models.Prediction
	Validate(userID uuid.UUID, actualAction string)
	Accuracy() float64
}

// FeedbackService captures implicit and explicit feedback.
type FeedbackService interface {
	CaptureImplicit(ctx context.Context, userID uuid.UUID, sessionID, actionType string) (uuid.UUID, error)
	CaptureExplicit(ctx context.Context, userID uuid.UUID, sessionID string, suggestionID uuid.UUID, strategy models.StrategyType, actionType string, rating int, correction string) (uuid.UUID, error)
	AcceptanceRate() float64
}

// LearningCoordinator feeds learning events into the orchestrator.
type LearningCoordinator interface {
	CoordinateLearning(ctx context.Context, event *learning.Event)
	GlobalRate() float64
}

// TuningSnapshot exposes the current thresholds and ranking weights.
type TuningSnapshot interface {
	Thresholds() map[models.StrategyType]float64
	Rankings() models.RankingWeights
}

// EngineHandler handles suggestion, prediction, and feedback requests
type EngineHandler struct {
	suggestions SuggestionEngine
	predictions PredictionEngine
	feedback    FeedbackService
	learning    LearningCoordinator
	tuning      TuningSnapshot
	embedder    ai.EmbeddingProvider
}

// EngineOption configures optional collaborators on the handler
type EngineOption func(*EngineHandler)

// WithContextEmbedder backfills embeddings for contexts that arrive
// without one. Provider failures are swallowed; the cluster strategy then
// contributes nothing for that call.
func WithContextEmbedder(embedder ai.EmbeddingProvider) EngineOption {
	return func(h *EngineHandler) { h.embedder = embedder }
}

// NewEngineHandler creates a new engine handler
func NewEngineHandler(suggestions SuggestionEngine, predictions PredictionEngine, feedback FeedbackService, learning LearningCoordinator, tuning TuningSnapshot, opts ...EngineOption) *EngineHandler {
	h := &EngineHandler{
		suggestions: suggestions,
		predictions: predictions,
		feedback:    feedback,
		learning:    learning,
		tuning:      tuning,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers engine routes on the given router
func (h *EngineHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/suggestions", h.GenerateSuggestions).Methods("POST")
	r.HandleFunc("/suggestions/{id}/outcome", h.TrackSuggestionOutcome).Methods("POST")
	r.HandleFunc("/predictions", h.PredictNextActions).Methods("POST")
	r.HandleFunc("/predictions/validate", h.ValidatePrediction).Methods("POST")
	r.HandleFunc("/feedback", h.CaptureFeedback).Methods("POST")
	r.HandleFunc("/metrics", h.GetMetrics).Methods("GET")
}

// ContextRequest carries the caller's current context
type ContextRequest struct {
	UserID       uuid.UUID `json:"user_id" validate:"required"`
	SessionID    string    `json:"session_id,omitempty"`
	ProjectID    string    `json:"project_id,omitempty"`
	CurrentFile  string    `json:"current_file,omitempty"`
	Error        bool      `json:"error,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
}

func (req *ContextRequest) toContext() *models.Context {
	return &models.Context{
		UserID:       req.UserID,
		SessionID:    req.SessionID,
		ProjectID:    req.ProjectID,
		CurrentFile:  req.CurrentFile,
		Error:        req.Error,
		ErrorMessage: req.ErrorMessage,
		Embedding:    req.Embedding,
		Timestamp:    time.Now(),
	}
}

// buildContext converts the request and, when an embedder is configured,
// backfills a missing embedding before strategy fan-out.
func (h *EngineHandler) buildContext(ctx context.Context, req *ContextRequest) *models.Context {
	sctx := req.toContext()
	if sctx.HasEmbedding() || h.embedder == nil {
		return sctx
	}
	text := sctx.EmbeddingText()
	if text == "" {
		return sctx
	}
	if embedding, err := h.embedder.Embed(ctx, text); err == nil {
		sctx.Embedding = embedding
	}
	return sctx
}

// GenerateSuggestions returns ranked suggestions for the caller's context
func (h *EngineHandler) GenerateSuggestions(w http.ResponseWriter, r *http.Request) {
	var req ContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	suggestions := h.suggestions.Generate(r.Context(), h.buildContext(r.Context(), &req))
	respondJSON(w, http.StatusOK, suggestions)
}

// PredictNextActions returns predicted next actions for the caller's context
func (h *EngineHandler) PredictNextActions(w http.ResponseWriter, r *http.Request) {
	var req ContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	predictions := h.predictions.Predict(r.Context(), h.buildContext(r.Context(), &req))
	respondJSON(w, http.StatusOK, predictions)
}

// OutcomeRequest reports whether a suggestion was accepted
type OutcomeRequest struct {
	UserID     uuid.UUID           `json:"user_id" validate:"required"`
	Accepted   bool                `json:"accepted"`
	Type       models.StrategyType `json:"type,omitempty" validate:"omitempty,strategy_type"`
	Action     string              `json:"action,omitempty"`
	Confidence float64             `json:"confidence,omitempty"`
}

// TrackSuggestionOutcome records an acceptance or rejection for a suggestion
func (h *EngineHandler) TrackSuggestionOutcome(w http.ResponseWriter, r *http.Request) {
	suggestionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid suggestion ID")
		return
	}

	var req OutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	h.suggestions.TrackOutcome(r.Context(), suggestionID, req.Accepted, h.learning.GlobalRate())
	h.learning.CoordinateLearning(r.Context(), &learning.Event{
		Type:       learning.EventSuggestionOutcome,
		UserID:     req.UserID,
		Strategy:   req.Type,
		Action:     req.Action,
		Confidence: req.Confidence,
		Accepted:   req.Accepted,
	})

	respondJSON(w, http.StatusOK, map[string]any{"suggestion_id": suggestionID, "accepted": req.Accepted})
}

// ValidateRequest reports the action the user actually took
type ValidateRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Action string    `json:"action" validate:"required"`
}

// ValidatePrediction grades buffered predictions against the actual action
func (h *EngineHandler) ValidatePrediction(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	h.predictions.Validate(req.UserID, req.Action)
	h.learning.CoordinateLearning(r.Context(), &learning.Event{
		Type:   learning.EventPredictionValidated,
		UserID: req.UserID,
		Action: req.Action,
	})

	respondJSON(w, http.StatusOK, map[string]any{"accuracy": h.predictions.Accuracy()})
}

// FeedbackRequest captures implicit or explicit feedback. Strategy names
// which suggestion strategy produced the action being rated; with it and
// ActionType set, explicit feedback reaches that pattern's weight.
type FeedbackRequest struct {
	UserID       uuid.UUID           `json:"user_id" validate:"required"`
	SessionID    string              `json:"session_id,omitempty"`
	Kind         string              `json:"kind" validate:"required,feedback_kind"`
	Strategy     models.StrategyType `json:"strategy,omitempty" validate:"omitempty,strategy_type"`
	ActionType   string              `json:"action_type,omitempty"`
	SuggestionID uuid.UUID           `json:"suggestion_id,omitempty"`
	Rating       int                 `json:"rating,omitempty"`
	Correction   string              `json:"correction,omitempty"`
}

// CaptureFeedback records a feedback event and feeds it into learning
func (h *EngineHandler) CaptureFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	var feedbackID uuid.UUID
	var accepted bool
	var err error
	switch models.FeedbackKind(req.Kind) {
	case models.FeedbackImplicit:
		if req.ActionType == "" {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "action_type is required for implicit feedback")
			return
		}
		accepted = models.InferSignal(req.ActionType) == models.SignalSuccess
		feedbackID, err = h.feedback.CaptureImplicit(r.Context(), req.UserID, req.SessionID, req.ActionType)
	case models.FeedbackExplicit:
		if err := validation.ValidateRating(req.Rating); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		accepted = req.Rating >= 4
		feedbackID, err = h.feedback.CaptureExplicit(r.Context(), req.UserID, req.SessionID, req.SuggestionID, req.Strategy, req.ActionType, req.Rating, validation.SanitizeText(req.Correction))
	}
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to capture feedback")
		return
	}

	h.learning.CoordinateLearning(r.Context(), &learning.Event{
		Type:     learning.EventFeedback,
		UserID:   req.UserID,
		Strategy: req.Strategy,
		Action:   req.ActionType,
		Accepted: accepted,
	})

	respondJSON(w, http.StatusCreated, map[string]any{"feedback_id": feedbackID})
}

// MetricsResponse is the flat snapshot exposed to dashboards
type MetricsResponse struct {
	AcceptanceRate     float64                         `json:"acceptance_rate"`
	PredictionAccuracy float64                         `json:"prediction_accuracy"`
	ActiveThresholds   map[models.StrategyType]float64 `json:"active_thresholds"`
	Rankings           models.RankingWeights           `json:"rankings"`
	GlobalLearningRate float64                         `json:"global_learning_rate"`
}

// GetMetrics returns a flat metrics snapshot
func (h *EngineHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, MetricsResponse{
		AcceptanceRate:     h.feedback.AcceptanceRate(),
		PredictionAccuracy: h.predictions.Accuracy(),
		ActiveThresholds:   h.tuning.Thresholds(),
		Rankings:           h.tuning.Rankings(),
		GlobalLearningRate: h.learning.GlobalRate(),
	})
}
