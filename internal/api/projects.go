package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chatbotyard/chatbotyard/internal/domain"
	"github.com/chatbotyard/chatbotyard/internal/store"
	"github.com/chatbotyard/chatbotyard/internal/widget"
)

// ProjectHandler serves project lookup, widget configuration and the
// rendered preview.
type ProjectHandler struct {
	*Handler
}

// NewProjectHandler creates a project handler.
func NewProjectHandler(base *Handler) *ProjectHandler {
	return &ProjectHandler{Handler: base}
}

// RegisterRoutes registers project routes.
func (h *ProjectHandler) RegisterRoutes(r chi.Router) {
	r.Route("/projects/{projectID}", func(r chi.Router) {
		r.Get("/", h.GetProject)
		r.Get("/configuration", h.GetConfiguration)
		r.Put("/configuration", h.UpdateConfiguration)
		r.Post("/configuration/reset", h.ResetConfiguration)
		r.Get("/preview", h.Preview)
	})
}

func (h *ProjectHandler) loadProject(w http.ResponseWriter, r *http.Request) (*domain.Project, bool) {
	projectID := chi.URLParam(r, "projectID")
	project, err := h.repo.GetProject(r.Context(), projectID)
	if err != nil {
		slog.Error("Failed to load project", "error", err, "project_id", projectID)
		Error(w, http.StatusInternalServerError, "Failed to load project")
		return nil, false
	}
	if project == nil {
		Error(w, http.StatusNotFound, "Project not found")
		return nil, false
	}
	return project, true
}

// GetProject returns a project.
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, project)
}

// GetConfiguration returns a project's widget configuration.
func (h *ProjectHandler) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	cfg, err := h.repo.GetConfiguration(r.Context(), projectID)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err, "project_id", projectID)
		Error(w, http.StatusInternalServerError, "Failed to load configuration")
		return
	}
	if cfg == nil {
		Error(w, http.StatusNotFound, "Project not found")
		return
	}
	JSON(w, http.StatusOK, cfg)
}

// UpdateConfiguration validates, normalizes and stores a configuration and
// returns the stored copy.
func (h *ProjectHandler) UpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var cfg domain.Configuration
	if err := decodeJSON(w, r, &cfg); err != nil {
		Error(w, http.StatusBadRequest, "Invalid configuration payload")
		return
	}
	if err := cfg.Validate(); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeConfiguration(w, r, projectID, cfg.Normalize())
}

// ResetConfiguration restores the default configuration.
func (h *ProjectHandler) ResetConfiguration(w http.ResponseWriter, r *http.Request) {
	h.writeConfiguration(w, r, chi.URLParam(r, "projectID"), domain.DefaultConfiguration())
}

func (h *ProjectHandler) writeConfiguration(w http.ResponseWriter, r *http.Request, projectID string, cfg domain.Configuration) {
	if err := h.repo.UpdateConfiguration(r.Context(), projectID, cfg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			Error(w, http.StatusNotFound, "Project not found")
			return
		}
		slog.Error("Failed to update configuration", "error", err, "project_id", projectID)
		Error(w, http.StatusInternalServerError, "Failed to update configuration")
		return
	}
	slog.Info("Configuration updated", "project_id", projectID, "configuration", cfg.String())
	JSON(w, http.StatusOK, cfg)
}

// Preview renders the stored configuration as the embeddable widget HTML.
// ?closed=1 renders the launcher only.
func (h *ProjectHandler) Preview(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	visibility := widget.Open
	if r.URL.Query().Get("closed") == "1" {
		visibility = widget.Closed
	}

	var messages []domain.Message
	if welcome := project.Configuration.WelcomeMessage; welcome != "" {
		messages = append(messages, domain.Message{
			MessageID: "welcome-preview",
			Role:      domain.RoleAssistant,
			Content:   welcome,
			Timestamp: project.UpdatedAt,
		})
	}

	view := widget.Render(widget.PreviewInput{
		Title:         project.Name,
		Configuration: project.Configuration,
		Messages:      messages,
		Visibility:    visibility,
		AvatarURL:     project.Avatar.ImageURL,
		SendDisabled:  true,
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := widget.RenderHTML(w, view); err != nil {
		slog.Error("Failed to render preview", "error", err, "project_id", project.ID)
	}
}
