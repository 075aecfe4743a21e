package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/praxislabs/foresight/internal/models"
	"github.com/praxislabs/foresight/internal/validation"
)

// InsightService produces insights and periodic reports.
type InsightService interface {
	GenerateInsights(ctx context.Context, userID uuid.UUID) []models.Insight
	Report(ctx context.Context, userID uuid.UUID, period models.ReportPeriod) *models.Report
}

// InsightHandler handles insight and report requests
type InsightHandler struct {
	service InsightService
}

// NewInsightHandler creates a new insight handler
func NewInsightHandler(service InsightService) *InsightHandler {
	return &InsightHandler{service: service}
}

// RegisterRoutes registers insight routes on the given router
// The router should already have the /insights prefix
func (h *InsightHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetInsights).Methods("GET")
	r.HandleFunc("/report", h.GetReport).Methods("GET")
}

// GetInsights returns the current actionable insights for a user
func (h *InsightHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid or missing user_id")
		return
	}

	insights := h.service.GenerateInsights(r.Context(), userID)
	respondJSON(w, http.StatusOK, insights)
}

// GetReport returns a daily or weekly insight rollup
func (h *InsightHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid or missing user_id")
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = string(models.ReportDaily)
	}
	if err := validation.ValidateReportPeriod(period); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	report := h.service.Report(r.Context(), userID, models.ReportPeriod(period))
	respondJSON(w, http.StatusOK, report)
}
