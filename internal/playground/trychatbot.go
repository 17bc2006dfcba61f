package playground

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/chatbotyard/chatbotyard/internal/domain"
	"github.com/chatbotyard/chatbotyard/internal/widget"
)

var (
	// ErrSendInFlight is returned when a send is attempted while another is pending.
	ErrSendInFlight = errors.New("a message is already being sent")
	// ErrNoSession is wrapped in a ConfigurationError when sending before a session exists.
	ErrNoSession = errors.New("no active chat session")
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")
)

// SessionAPI is the part of the session client the try-chatbot page needs.
type SessionAPI interface {
	CreateSession(ctx context.Context, project *domain.Project) (*domain.Session, error)
	SendMessage(ctx context.Context, sessionID, text string) (domain.Message, error)
	FetchSessionDetails(ctx context.Context, sessionID string) (*domain.Session, error)
}

// TryChatbot drives the live widget on the try-chatbot page. It owns the
// single active session reference and its message log.
type TryChatbot struct {
	api        SessionAPI
	log        *widget.MessageLog
	visibility *widget.Visibility
	opts       options

	startMu sync.Mutex

	mu      sync.Mutex
	project *domain.Project
	session *domain.Session
	sending bool
	loading bool
	errMsg  string

	subs notifier
}

// NewTryChatbot creates the controller. Nothing is fetched until Start.
func NewTryChatbot(api SessionAPI, opts ...Option) *TryChatbot {
	o := buildOptions(opts)
	return &TryChatbot{
		api:        api,
		log:        widget.NewMessageLog(widget.WithClock(o.now)),
		visibility: widget.NewVisibility(o.initial),
		opts:       o,
	}
}

// Subscribe registers fn to be called after every state change.
func (t *TryChatbot) Subscribe(fn func()) (unsubscribe func()) {
	return t.subs.subscribe(fn)
}

// Start creates the session for project the first time it is called and
// seeds the welcome message. Later calls are no-ops.
func (t *TryChatbot) Start(ctx context.Context, project *domain.Project) error {
	t.startMu.Lock()
	defer t.startMu.Unlock()

	t.mu.Lock()
	if t.session != nil {
		t.mu.Unlock()
		return nil
	}
	t.project = project
	t.errMsg = ""
	t.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, t.opts.requestTimeout)
	session, err := t.api.CreateSession(reqCtx, project)
	cancel()
	if err != nil {
		t.opts.logger.Warn("failed to create chat session", "project_id", projectID(project), "error", err)
		t.setError(domain.UserMessage(err, "Failed to create session"))
		return err
	}

	t.mu.Lock()
	t.session = session
	t.mu.Unlock()

	if welcome := project.Configuration.WelcomeMessage; welcome != "" {
		if err := t.log.SeedWelcome(welcome); err != nil {
			t.opts.logger.Debug("welcome message not seeded", "session_id", session.ID, "error", err)
		}
	}
	t.opts.logger.Info("chat session started", "project_id", project.ID, "session_id", session.ID)
	t.subs.notify()
	return nil
}

func projectID(p *domain.Project) string {
	if p == nil {
		return ""
	}
	return p.ID
}

// Send appends text optimistically and asks the assistant for a reply. On
// any failure the optimistic message is removed and the error is kept for
// display. Only one send may be pending at a time.
func (t *TryChatbot) Send(ctx context.Context, text string) (domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, ErrEmptyMessage
	}

	t.mu.Lock()
	if t.session == nil {
		t.mu.Unlock()
		return domain.Message{}, &domain.ConfigurationError{Op: "send message", Err: ErrNoSession}
	}
	if t.sending || t.loading {
		t.mu.Unlock()
		return domain.Message{}, ErrSendInFlight
	}
	t.sending = true
	t.errMsg = ""
	sessionID := t.session.ID
	t.mu.Unlock()

	pending := t.log.Begin(text)
	t.subs.notify()

	reqCtx, cancel := context.WithTimeout(ctx, t.opts.requestTimeout)
	reply, err := t.api.SendMessage(reqCtx, sessionID, text)
	cancel()

	if err != nil {
		pending.Abort()
		t.opts.logger.Warn("send failed, rolled back optimistic message",
			"session_id", sessionID,
			"message_id", pending.Message().MessageID,
			"error", err)
		t.mu.Lock()
		t.sending = false
		t.errMsg = domain.UserMessage(err, "Failed to send message")
		t.mu.Unlock()
		t.subs.notify()
		return domain.Message{}, err
	}

	pending.Commit(reply)
	t.mu.Lock()
	t.sending = false
	t.session.MessagesCount++
	t.mu.Unlock()
	t.subs.notify()
	return reply, nil
}

// LoadHistory replaces the log with the server's copy of the session. The
// local welcome message, which the server never stores, is kept. Sends are
// refused until the fetch returns so a confirmed reply is never overwritten.
func (t *TryChatbot) LoadHistory(ctx context.Context) error {
	t.mu.Lock()
	if t.session == nil {
		t.mu.Unlock()
		return &domain.ConfigurationError{Op: "load history", Err: ErrNoSession}
	}
	if t.sending || t.loading {
		t.mu.Unlock()
		return ErrSendInFlight
	}
	t.loading = true
	sessionID := t.session.ID
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.loading = false
		t.mu.Unlock()
	}()

	reqCtx, cancel := context.WithTimeout(ctx, t.opts.requestTimeout)
	details, err := t.api.FetchSessionDetails(reqCtx, sessionID)
	cancel()
	if err != nil {
		t.setError(domain.UserMessage(err, "Failed to fetch session details"))
		return err
	}

	history := details.Messages
	for _, m := range t.log.Messages() {
		if strings.HasPrefix(m.MessageID, "welcome-") {
			history = append([]domain.Message{m}, history...)
			break
		}
	}
	t.log.Replace(history)

	t.mu.Lock()
	t.session.Status = details.Status
	t.session.MessagesCount = details.MessagesCount
	t.mu.Unlock()
	t.subs.notify()
	return nil
}

func (t *TryChatbot) setError(msg string) {
	t.mu.Lock()
	t.errMsg = msg
	t.mu.Unlock()
	t.subs.notify()
}

// Error returns the message of the dismissible error banner, if any.
func (t *TryChatbot) Error() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errMsg
}

// ClearError dismisses the error banner.
func (t *TryChatbot) ClearError() {
	t.setError("")
}

// Sending reports whether a send is pending.
func (t *TryChatbot) Sending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sending
}

// Session returns a copy of the active session, or nil.
func (t *TryChatbot) Session() *domain.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil
	}
	s := *t.session
	s.Messages = t.log.Messages()
	return &s
}

// Messages returns the log in display order.
func (t *TryChatbot) Messages() []domain.Message {
	return t.log.Sorted()
}

// OpenWidget handles a launcher click.
func (t *TryChatbot) OpenWidget() {
	t.mu.Lock()
	changed := t.visibility.LauncherClicked()
	t.mu.Unlock()
	if changed {
		t.subs.notify()
	}
}

// CloseWidget handles a close-button click.
func (t *TryChatbot) CloseWidget() {
	t.mu.Lock()
	changed := t.visibility.CloseClicked()
	t.mu.Unlock()
	if changed {
		t.subs.notify()
	}
}

// View renders the widget from the current state.
func (t *TryChatbot) View() widget.View {
	t.mu.Lock()
	in := widget.PreviewInput{
		Visibility:   t.visibility.State(),
		SendDisabled: t.sending || t.session == nil,
	}
	if t.project != nil {
		in.Title = t.project.Name
		in.Configuration = t.project.Configuration
		in.AvatarURL = t.project.Avatar.ImageURL
	}
	t.mu.Unlock()

	in.Messages = t.log.Messages()
	return widget.Render(in)
}
