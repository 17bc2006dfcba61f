package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chatbotyard/chatbotyard/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS projects (
		project_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		website_url TEXT NOT NULL DEFAULT '',
		assistant_id TEXT NOT NULL DEFAULT '',
		avatar_type TEXT NOT NULL DEFAULT 'predefined',
		avatar_id TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		embed_code TEXT NOT NULL DEFAULT '',
		configuration_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		session_id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(project_id) ON DELETE CASCADE,
		assistant_id TEXT NOT NULL,
		thread_id TEXT NOT NULL,
		status TEXT NOT NULL,
		messages_count INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_project ON chat_sessions(project_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_idle ON chat_sessions(updated_at) WHERE status = 'active';

	CREATE TABLE IF NOT EXISTS chat_messages (
		message_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES chat_sessions(session_id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// UpsertProject creates or updates a project record.
func (s *SQLiteStore) UpsertProject(ctx context.Context, p *domain.Project) error {
	cfgJSON, err := json.Marshal(p.Configuration)
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}

	now := time.Now()
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	avatarType := p.Avatar.Type
	if avatarType == "" {
		avatarType = domain.AvatarPredefined
	}

	query := `
	INSERT INTO projects (project_id, name, website_url, assistant_id, avatar_type, avatar_id,
	                      avatar_url, embed_code, configuration_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(project_id) DO UPDATE SET
		name = excluded.name,
		website_url = excluded.website_url,
		assistant_id = excluded.assistant_id,
		avatar_type = excluded.avatar_type,
		avatar_id = excluded.avatar_id,
		avatar_url = excluded.avatar_url,
		embed_code = excluded.embed_code,
		configuration_json = excluded.configuration_json,
		updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.WebsiteURL, p.AssistantID, string(avatarType), p.Avatar.AvatarID,
		p.Avatar.ImageURL, p.EmbedCode, string(cfgJSON),
		createdAt.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	query := `
		SELECT project_id, name, website_url, assistant_id, avatar_type, avatar_id,
		       avatar_url, embed_code, configuration_json, created_at, updated_at
		FROM projects WHERE project_id = ?`

	var p domain.Project
	var avatarType, cfgJSON string
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, projectID).Scan(
		&p.ID, &p.Name, &p.WebsiteURL, &p.AssistantID, &avatarType, &p.Avatar.AvatarID,
		&p.Avatar.ImageURL, &p.EmbedCode, &cfgJSON, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan project row: %w", err)
	}

	if err := json.Unmarshal([]byte(cfgJSON), &p.Configuration); err != nil {
		return nil, fmt.Errorf("decode configuration for %s: %w", projectID, err)
	}
	p.Avatar.Type = domain.AvatarType(avatarType)
	p.CreatedAt = time.UnixMilli(createdAt)
	p.UpdatedAt = time.UnixMilli(updatedAt)
	return &p, nil
}

// GetConfiguration retrieves the widget configuration of a project.
func (s *SQLiteStore) GetConfiguration(ctx context.Context, projectID string) (*domain.Configuration, error) {
	var cfgJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT configuration_json FROM projects WHERE project_id = ?`, projectID,
	).Scan(&cfgJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan configuration: %w", err)
	}

	var cfg domain.Configuration
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return nil, fmt.Errorf("decode configuration for %s: %w", projectID, err)
	}
	return &cfg, nil
}

// UpdateConfiguration replaces a project's widget configuration.
func (s *SQLiteStore) UpdateConfiguration(ctx context.Context, projectID string, cfg domain.Configuration) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET configuration_json = ?, updated_at = ? WHERE project_id = ?`,
		string(cfgJSON), time.Now().UnixMilli(), projectID,
	)
	if err != nil {
		return fmt.Errorf("update configuration: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	return nil
}

// CreateSession stores a new chat session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `
	INSERT INTO chat_sessions (session_id, project_id, assistant_id, thread_id, status,
	                           messages_count, started_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.ProjectID, session.AssistantID, session.ThreadID, string(session.Status),
		session.MessagesCount, session.StartedAt.UnixMilli(), session.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const sessionColumns = `session_id, project_id, assistant_id, thread_id, status,
		       messages_count, started_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var status string
	var startedAt, updatedAt int64

	if err := row.Scan(
		&session.ID, &session.ProjectID, &session.AssistantID, &session.ThreadID, &status,
		&session.MessagesCount, &startedAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	session.Status = domain.SessionStatus(status)
	session.StartedAt = time.UnixMilli(startedAt)
	session.UpdatedAt = time.UnixMilli(updatedAt)
	return &session, nil
}

// GetSession retrieves a session with its messages.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE session_id = ?`, sessionID)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, role, content, created_at
		FROM chat_messages WHERE session_id = ?
		ORDER BY created_at, message_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	session.Messages = []domain.Message{}
	for rows.Next() {
		var m domain.Message
		var role string
		var createdAt int64
		if err := rows.Scan(&m.MessageID, &role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.Role = domain.Role(role)
		m.Timestamp = time.UnixMilli(createdAt)
		session.Messages = append(session.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return session, nil
}

// AppendMessages adds messages to a session in one transaction.
// Busy errors are retried with exponential backoff.
func (s *SQLiteStore) AppendMessages(ctx context.Context, sessionID string, messages ...domain.Message) error {
	if len(messages) == 0 {
		return nil
	}
	return withRetry(ctx, "append messages", func() error {
		return s.appendMessagesOnce(ctx, sessionID, messages)
	})
}

func (s *SQLiteStore) appendMessagesOnce(ctx context.Context, sessionID string, messages []domain.Message) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Warn("rollback failed", "session_id", sessionID, "error", rbErr)
			}
		}
	}()

	userMessages := 0
	last := time.Time{}
	for _, m := range messages {
		if m.Role == domain.RoleUser {
			userMessages++
		}
		if m.Timestamp.After(last) {
			last = m.Timestamp
		}
	}

	// Touch the session first so a missing one is reported as ErrNotFound
	// rather than as a foreign key failure on insert.
	result, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET messages_count = messages_count + ?, updated_at = ? WHERE session_id = ?`,
		userMessages, last.UnixMilli(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("update session counters: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		err = fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		return err
	}

	for _, m := range messages {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chat_messages (message_id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			m.MessageID, sessionID, string(m.Role), m.Content, m.Timestamp.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func sessionWhere(projectID string, status domain.SessionStatus, from, to *time.Time) (string, []any) {
	clauses := []string{"project_id = ?"}
	args := []any{projectID}
	if from != nil {
		clauses = append(clauses, "started_at >= ?")
		args = append(args, from.UnixMilli())
	}
	if to != nil {
		clauses = append(clauses, "started_at <= ?")
		args = append(args, to.UnixMilli())
	}
	if status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(status))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListSessions returns one page of a project's sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, projectID string, filter domain.SessionFilter) ([]*domain.Session, int, error) {
	filter = filter.Normalize()
	where, args := sessionWhere(projectID, filter.Status, filter.StartDate, filter.EndDate)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_sessions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	query := `SELECT ` + sessionColumns + ` FROM chat_sessions` + where +
		` ORDER BY started_at DESC, session_id LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	sessions := []*domain.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, total, nil
}

// SessionStats aggregates a project's sessions.
func (s *SQLiteStore) SessionStats(ctx context.Context, projectID string, from, to *time.Time) (*domain.SessionStats, error) {
	where, args := sessionWhere(projectID, "", from, to)
	query := `
		SELECT COUNT(*),
		       COALESCE(AVG(updated_at - started_at), 0),
		       COALESCE(SUM(messages_count), 0),
		       COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'abandoned' THEN 1 ELSE 0 END), 0)
		FROM chat_sessions` + where

	var stats domain.SessionStats
	var avgMillis float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.TotalSessions, &avgMillis, &stats.TotalMessages,
		&stats.CompletedSessions, &stats.AbandonedSessions,
	); err != nil {
		return nil, fmt.Errorf("aggregate sessions: %w", err)
	}
	stats.AverageDuration = avgMillis / 1000
	return &stats, nil
}

// AbandonIdleSessions marks active sessions idle for longer than ttl as abandoned.
func (s *SQLiteStore) AbandonIdleSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).UnixMilli()
	var affected int64
	err := withRetry(ctx, "abandon idle sessions", func() error {
		result, err := s.db.ExecContext(ctx,
			`UPDATE chat_sessions SET status = 'abandoned' WHERE status = 'active' AND updated_at < ?`,
			threshold,
		)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	return affected, err
}
