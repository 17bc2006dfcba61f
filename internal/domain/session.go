package domain

import (
	"time"
)

// SessionStatus is the lifecycle state of a chat session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionCompleted, SessionAbandoned:
		return true
	}
	return false
}

// Session is a server-tracked conversation between a visitor and a
// project's trained assistant.
type Session struct {
	ID            string        `json:"_id"`
	ProjectID     string        `json:"project"`
	AssistantID   string        `json:"assistantId"`
	ThreadID      string        `json:"threadId"`
	StartedAt     time.Time     `json:"startedAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	Status        SessionStatus `json:"status"`
	MessagesCount int           `json:"messagesCount"`
	Messages      []Message     `json:"messages"`
}

// IsActive returns true if the session still accepts messages.
func (s *Session) IsActive() bool {
	return s.Status == SessionActive
}

// SessionStats aggregates sessions of one project.
type SessionStats struct {
	TotalSessions     int     `json:"totalSessions"`
	AverageDuration   float64 `json:"averageDuration"` // seconds
	TotalMessages     int     `json:"totalMessages"`
	CompletedSessions int     `json:"completedSessions"`
	AbandonedSessions int     `json:"abandonedSessions"`
}

// Pagination describes one page of a session listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// SessionFilter narrows a session listing.
type SessionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Status    SessionStatus
	Page      int
	Limit     int
}

// Normalize clamps paging to sane bounds.
func (f SessionFilter) Normalize() SessionFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	return f
}

// Offset returns the number of rows skipped by the filter's page.
func (f SessionFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// NewPagination builds pagination metadata for total rows.
func NewPagination(f SessionFilter, total int) Pagination {
	pages := 0
	if f.Limit > 0 {
		pages = (total + f.Limit - 1) / f.Limit
	}
	return Pagination{Page: f.Page, Limit: f.Limit, Total: total, Pages: pages}
}
