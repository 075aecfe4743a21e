package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthCheckFunc probes one dependency.
type HealthCheckFunc func(ctx context.Context) error

// HealthChecker handles health check requests
type HealthChecker struct {
	checks map[string]HealthCheckFunc
}

// NewHealthChecker creates a health checker over named dependency probes
func NewHealthChecker(checks map[string]HealthCheckFunc) *HealthChecker {
	return &HealthChecker{checks: checks}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if r.URL.Query().Get("mode") == "extended" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		results := make(map[string]string, len(h.checks))
		for name, check := range h.checks {
			if err := check(ctx); err != nil {
				response.Status = "unhealthy"
				results[name] = "unhealthy: " + err.Error()
			} else {
				results[name] = "healthy"
			}
		}
		response.Checks = results
	}

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
