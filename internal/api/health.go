package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Version is reported by the root banner.
const Version = "1.0.0"

// Pinger checks a storage backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health check and the root banner.
type HealthHandler struct {
	db       Pinger
	provider string
}

// NewHealthHandler creates the handler. provider names the LLM backend.
func NewHealthHandler(db Pinger, provider string) *HealthHandler {
	return &HealthHandler{db: db, provider: provider}
}

// RegisterRoutes registers the health and banner routes.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Banner)
	r.Get("/api/health", h.Health)
}

// Health reports service and database status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	status := http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			dbStatus = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	JSON(w, status, map[string]string{"status": overall, "database": dbStatus})
}

// Banner lists the available endpoints.
func (h *HealthHandler) Banner(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"message":  "CareerMate AI Backend API",
		"version":  Version,
		"provider": h.provider,
		"endpoints": []string{
			"POST /api/analyze-resume",
			"POST /api/interview/next-question",
			"POST /api/interview/evaluate",
			"POST /api/interview/report",
			"POST /api/speech-to-text",
			"POST /api/career-assistant",
			"GET /api/session",
			"POST /api/session/{resume,intro,start,answer,speech,retry,reset,report}",
			"GET /api/session/report",
			"GET /ws/session",
			"GET /api/health",
		},
	})
}
