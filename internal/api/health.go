package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chatbotyard/chatbotyard/internal/store"
)

// HealthChecker is implemented by dependencies that can report readiness.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler reports database and assistant health.
type HealthHandler struct {
	repo      store.Repository
	assistant HealthChecker
}

// NewHealthHandler creates a health handler. assistant may be nil.
func NewHealthHandler(repo store.Repository, assistant HealthChecker) *HealthHandler {
	return &HealthHandler{repo: repo, assistant: assistant}
}

// RegisterHealth registers GET /health.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}

// Health pings the database and, when configured, the assistant service.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]string{"status": "ok", "database": "ok"}
	status := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check: database ping failed", "error", err)
		body["status"] = "degraded"
		body["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}

	if h.assistant != nil {
		body["assistant"] = "ok"
		if err := h.assistant.Health(ctx); err != nil {
			slog.Warn("Health check: assistant unhealthy", "error", err)
			body["status"] = "degraded"
			body["assistant"] = "unavailable"
		}
	}

	JSON(w, status, body)
}
