package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chatbotyard/chatbotyard/internal/assistant"
	"github.com/chatbotyard/chatbotyard/internal/domain"
	"github.com/chatbotyard/chatbotyard/internal/identity"
	"github.com/chatbotyard/chatbotyard/internal/store"
)

// SessionHandler serves chat sessions and their messages.
type SessionHandler struct {
	*Handler
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(base *Handler) *SessionHandler {
	return &SessionHandler{Handler: base}
}

// RegisterRoutes registers chat session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/chat-sessions", func(r chi.Router) {
		r.Post("/project/{projectID}", h.CreateSession)
		r.Get("/project/{projectID}", h.ListSessions)
		r.Get("/project/{projectID}/stats", h.SessionStats)
		r.Get("/{sessionID}", h.GetSession)
		r.Post("/{sessionID}/messages", h.SendMessage)
	})
}

// CreateSession starts a chat session with the project's assistant.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	ctx := r.Context()

	project, err := h.repo.GetProject(ctx, projectID)
	if err != nil {
		slog.Error("Failed to load project for session", "error", err, "project_id", projectID)
		Error(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	if project == nil {
		Error(w, http.StatusNotFound, "Project not found")
		return
	}
	if !project.HasAssistant() {
		Error(w, http.StatusUnprocessableEntity, "No assistant found for this project")
		return
	}

	now := h.now()
	session := &domain.Session{
		ID:          uuid.NewString(),
		ProjectID:   project.ID,
		AssistantID: project.AssistantID,
		ThreadID:    "thread_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		StartedAt:   now,
		UpdatedAt:   now,
		Status:      domain.SessionActive,
		Messages:    []domain.Message{},
	}
	if err := h.repo.CreateSession(ctx, session); err != nil {
		slog.Error("Failed to create session", "error", err, "project_id", projectID)
		Error(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	slog.Info("Chat session created",
		"project_id", projectID,
		"session_id", session.ID,
		"visitor_id", identity.VisitorIDFromContext(ctx))
	JSON(w, http.StatusCreated, session)
}

// GetSession returns a session with its messages.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.repo.GetSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to load session", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "Failed to fetch session details")
		return
	}
	if session == nil {
		Error(w, http.StatusNotFound, "Chat session not found")
		return
	}
	JSON(w, http.StatusOK, session)
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

type sendMessageResponse struct {
	AssistantResponse domain.Message `json:"assistantResponse"`
}

// SendMessage stores a user message together with the assistant's reply.
// Nothing is stored when the assistant fails.
func (h *SessionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctx := r.Context()

	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "Message is required")
		return
	}

	key := identity.VisitorIDFromContext(ctx)
	if key == "" {
		key = identity.IPFromRequest(r)
	}
	if h.limiter != nil && !h.limiter.Allow(key) {
		slog.Warn("Message rate limit exceeded", "session_id", sessionID, "visitor_id", key)
		Error(w, http.StatusTooManyRequests, "Too many messages, please slow down")
		return
	}

	session, err := h.repo.GetSession(ctx, sessionID)
	if err != nil {
		slog.Error("Failed to load session", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "Failed to send message")
		return
	}
	if session == nil {
		Error(w, http.StatusNotFound, "Chat session not found")
		return
	}
	if !session.IsActive() {
		Error(w, http.StatusConflict, "Chat session is no longer active")
		return
	}

	userMsg := domain.Message{
		MessageID: uuid.NewString(),
		Role:      domain.RoleUser,
		Content:   req.Message,
		Timestamp: h.now().Truncate(time.Millisecond),
	}

	replyCtx, cancel := context.WithTimeout(ctx, h.replyTimeout)
	text, err := h.replier.Reply(replyCtx, assistant.ReplyRequest{
		ProjectID:   session.ProjectID,
		AssistantID: session.AssistantID,
		ThreadID:    session.ThreadID,
		SessionID:   session.ID,
		Message:     req.Message,
		History:     session.Messages,
	})
	cancel()
	if err != nil {
		slog.Error("Assistant reply failed", "error", err, "session_id", sessionID)
		if errors.Is(err, assistant.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			Error(w, http.StatusServiceUnavailable, "Assistant is unavailable, please try again")
			return
		}
		Error(w, http.StatusBadGateway, "Failed to get assistant response")
		return
	}

	// Stored with millisecond precision; the reply must sort after the user turn.
	replyAt := h.now().Truncate(time.Millisecond)
	if !replyAt.After(userMsg.Timestamp) {
		replyAt = userMsg.Timestamp.Add(time.Millisecond)
	}
	reply := domain.Message{
		MessageID: uuid.NewString(),
		Role:      domain.RoleAssistant,
		Content:   text,
		Timestamp: replyAt,
	}

	if err := h.repo.AppendMessages(ctx, sessionID, userMsg, reply); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			Error(w, http.StatusNotFound, "Chat session not found")
			return
		}
		slog.Error("Failed to store messages", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "Failed to send message")
		return
	}

	JSON(w, http.StatusOK, sendMessageResponse{AssistantResponse: reply})
}

type listSessionsResponse struct {
	Sessions   []*domain.Session `json:"sessions"`
	Pagination domain.Pagination `json:"pagination"`
}

// ListSessions returns one page of a project's sessions.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	filter, err := parseSessionFilter(r)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	filter = filter.Normalize()

	sessions, total, err := h.repo.ListSessions(r.Context(), projectID, filter)
	if err != nil {
		slog.Error("Failed to list sessions", "error", err, "project_id", projectID)
		Error(w, http.StatusInternalServerError, "Failed to fetch sessions")
		return
	}
	JSON(w, http.StatusOK, listSessionsResponse{
		Sessions:   sessions,
		Pagination: domain.NewPagination(filter, total),
	})
}

// SessionStats returns aggregates over a project's sessions.
func (h *SessionHandler) SessionStats(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	from, to, err := parseDateRange(r)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.repo.SessionStats(r.Context(), projectID, from, to)
	if err != nil {
		slog.Error("Failed to compute session stats", "error", err, "project_id", projectID)
		Error(w, http.StatusInternalServerError, "Failed to fetch session stats")
		return
	}
	JSON(w, http.StatusOK, stats)
}

var (
	errInvalidDate   = errors.New("startDate and endDate must be RFC 3339 timestamps")
	errInvalidStatus = errors.New("status must be active, completed or abandoned")
	errInvalidPaging = errors.New("page and limit must be positive integers")
)

func parseDateRange(r *http.Request) (from, to *time.Time, err error) {
	q := r.URL.Query()
	parse := func(key string) (*time.Time, error) {
		v := q.Get(key)
		if v == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, errInvalidDate
		}
		return &t, nil
	}
	if from, err = parse("startDate"); err != nil {
		return nil, nil, err
	}
	if to, err = parse("endDate"); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func parseSessionFilter(r *http.Request) (domain.SessionFilter, error) {
	var f domain.SessionFilter
	var err error
	if f.StartDate, f.EndDate, err = parseDateRange(r); err != nil {
		return f, err
	}

	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		f.Status = domain.SessionStatus(s)
		if !f.Status.Valid() {
			return f, errInvalidStatus
		}
	}
	for key, dst := range map[string]*int{"page": &f.Page, "limit": &f.Limit} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 1 {
			return f, errInvalidPaging
		}
		*dst = n
	}
	return f, nil
}
