// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/chatbotyard/chatbotyard/internal/domain"
)

// ErrNotFound is returned by updates that matched no row.
var ErrNotFound = errors.New("not found")

// Repository defines the interface for persisting projects and chat sessions.
// Getters return (nil, nil) when the record does not exist.
type Repository interface {
	// UpsertProject creates or updates a project including its configuration.
	UpsertProject(ctx context.Context, project *domain.Project) error

	// GetProject retrieves a project by ID.
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)

	// GetConfiguration retrieves only the widget configuration of a project.
	GetConfiguration(ctx context.Context, projectID string) (*domain.Configuration, error)

	// UpdateConfiguration replaces the widget configuration of a project.
	UpdateConfiguration(ctx context.Context, projectID string, cfg domain.Configuration) error

	// CreateSession stores a new chat session.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session with its messages.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// AppendMessages adds messages to a session in one transaction and bumps
	// messages_count by the number of user messages.
	AppendMessages(ctx context.Context, sessionID string, messages ...domain.Message) error

	// ListSessions returns one page of a project's sessions (without
	// messages) and the total number of matches.
	ListSessions(ctx context.Context, projectID string, filter domain.SessionFilter) ([]*domain.Session, int, error)

	// SessionStats aggregates a project's sessions started within [from, to].
	SessionStats(ctx context.Context, projectID string, from, to *time.Time) (*domain.SessionStats, error)

	// AbandonIdleSessions marks active sessions idle longer than ttl as abandoned.
	AbandonIdleSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
