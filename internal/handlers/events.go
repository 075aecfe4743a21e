package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/praxislabs/foresight/internal/database"
	"github.com/praxislabs/foresight/internal/models"
	"github.com/praxislabs/foresight/internal/perf"
	"github.com/praxislabs/foresight/internal/services/ai"
	"github.com/praxislabs/foresight/internal/validation"
)

// InteractionIndex stores action embeddings for cluster-based suggestions.
type InteractionIndex interface {
	Record(ctx context.Context, userID uuid.UUID, action string, embedding []float32) error
}

// EventHandler ingests raw interaction events. Each event becomes an
// episode, a performance observation, and (when an embedding is available)
// an entry in the similarity index.
type EventHandler struct {
	episodes database.EpisodeRepositoryInterface
	tracker  *perf.Tracker
	index    InteractionIndex
	embedder ai.EmbeddingProvider
	logger   *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(episodes database.EpisodeRepositoryInterface, tracker *perf.Tracker, index InteractionIndex, embedder ai.EmbeddingProvider, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		episodes: episodes,
		tracker:  tracker,
		index:    index,
		embedder: embedder,
		logger:   logger,
	}
}

// RegisterRoutes registers event routes on the given router
func (h *EventHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/events", h.RecordEvent).Methods("POST")
	r.HandleFunc("/events/performance", h.GetPerformance).Methods("GET")
}

// EventRequest is one raw interaction event
type EventRequest struct {
	UserID     uuid.UUID `json:"user_id" validate:"required"`
	SessionID  string    `json:"session_id,omitempty"`
	Type       string    `json:"type,omitempty"`
	Action     string    `json:"action" validate:"required,max=500"`
	Success    *bool     `json:"success,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// RecordEvent persists an interaction event and its derived observations
func (h *EventHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	episodeType := models.EpisodeTypeAction
	if req.Type != "" {
		episodeType = models.EpisodeType(req.Type)
	}

	episode := &models.EpisodeRecord{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Type:      episodeType,
		Action:    validation.SanitizeText(req.Action),
		SessionID: req.SessionID,
		CreatedAt: time.Now(),
	}
	if err := h.episodes.Create(r.Context(), episode); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to record event")
		return
	}

	if req.Success != nil {
		_, err := h.tracker.Record(r.Context(), req.UserID, episode.Action, perf.Observation{
			Success:  *req.Success,
			Duration: time.Duration(req.DurationMS) * time.Millisecond,
		})
		if err != nil {
			h.logger.Warn("performance_record_failed",
				zap.String("action", episode.Action),
				zap.Error(err))
		}
	}

	h.indexEvent(r.Context(), req, episode.Action)

	respondJSON(w, http.StatusCreated, map[string]any{"event_id": episode.ID})
}

// indexEvent stores the action embedding, computing one when the caller
// did not supply it. Index failures never fail the ingest.
func (h *EventHandler) indexEvent(ctx context.Context, req EventRequest, action string) {
	if h.index == nil {
		return
	}

	embedding := req.Embedding
	if len(embedding) == 0 && h.embedder != nil {
		computed, err := h.embedder.Embed(ctx, action)
		if err != nil {
			h.logger.Debug("embedding_unavailable",
				zap.String("action", action),
				zap.Error(err))
			return
		}
		embedding = computed
	}
	if len(embedding) == 0 {
		return
	}

	if err := h.index.Record(ctx, req.UserID, action, embedding); err != nil {
		h.logger.Warn("similarity_index_record_failed",
			zap.String("action", action),
			zap.Error(err))
	}
}

// GetPerformance returns the in-memory action metrics for a user
func (h *EventHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid or missing user_id")
		return
	}

	respondJSON(w, http.StatusOK, h.tracker.Snapshot(userID))
}
