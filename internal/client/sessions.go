package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/chatbotyard/chatbotyard/internal/domain"
)

type sendMessageRequest struct {
	Message string `json:"message"`
}

type sendMessageResponse struct {
	AssistantResponse domain.Message `json:"assistantResponse"`
}

// SessionPage is one page of a project's session listing.
type SessionPage struct {
	Sessions   []domain.Session  `json:"sessions"`
	Pagination domain.Pagination `json:"pagination"`
}

func sessionPath(sessionID string) string {
	return "/chat-sessions/" + url.PathEscape(sessionID)
}

// CreateSession starts a chat session against the project's trained
// assistant. A project without an assistant fails with a
// *domain.ConfigurationError before any request is made.
func (c *Client) CreateSession(ctx context.Context, project *domain.Project) (*domain.Session, error) {
	if project == nil || !project.HasAssistant() {
		return nil, &domain.ConfigurationError{Op: "create session", Err: domain.ErrNoAssistant}
	}

	var s domain.Session
	if err := c.do(ctx, "create session", http.MethodPost, "/chat-sessions/project/"+url.PathEscape(project.ID), nil, &s); err != nil {
		return nil, err
	}
	s.Messages = []domain.Message{}
	return &s, nil
}

// SendMessage posts a user message and returns the assistant's reply.
// Failures are never retried.
func (c *Client) SendMessage(ctx context.Context, sessionID, text string) (domain.Message, error) {
	var resp sendMessageResponse
	err := c.do(ctx, "send message", http.MethodPost, sessionPath(sessionID)+"/messages", sendMessageRequest{Message: text}, &resp)
	return resp.AssistantResponse, err
}

// FetchSessionDetails loads a session with its full message history. The
// messages are not guaranteed to be sorted.
func (c *Client) FetchSessionDetails(ctx context.Context, sessionID string) (*domain.Session, error) {
	var s domain.Session
	if err := c.do(ctx, "fetch session details", http.MethodGet, sessionPath(sessionID), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSessions pages through a project's sessions.
func (c *Client) ListSessions(ctx context.Context, projectID string, f domain.SessionFilter) (*SessionPage, error) {
	q := url.Values{}
	if f.StartDate != nil {
		q.Set("startDate", f.StartDate.Format(time.RFC3339))
	}
	if f.EndDate != nil {
		q.Set("endDate", f.EndDate.Format(time.RFC3339))
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}

	path := "/chat-sessions/project/" + url.PathEscape(projectID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page SessionPage
	if err := c.do(ctx, "list sessions", http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SessionStats aggregates a project's sessions, optionally within a date range.
func (c *Client) SessionStats(ctx context.Context, projectID string, from, to *time.Time) (*domain.SessionStats, error) {
	q := url.Values{}
	if from != nil {
		q.Set("startDate", from.Format(time.RFC3339))
	}
	if to != nil {
		q.Set("endDate", to.Format(time.RFC3339))
	}
	path := "/chat-sessions/project/" + url.PathEscape(projectID) + "/stats"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var stats domain.SessionStats
	if err := c.do(ctx, "session stats", http.MethodGet, path, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
