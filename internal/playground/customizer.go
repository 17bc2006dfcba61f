package playground

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chatbotyard/chatbotyard/internal/domain"
	"github.com/chatbotyard/chatbotyard/internal/widget"
)

// PreviewReply is the canned assistant answer shown in the customize preview.
const PreviewReply = "Thank you for your message! I'll help you with that."

// ErrSaveInFlight is returned when a save or reset is already pending.
var ErrSaveInFlight = errors.New("configuration save already in progress")

// ConfigurationAPI is the part of the client the customize page needs.
type ConfigurationAPI interface {
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)
	GetConfiguration(ctx context.Context, projectID string) (domain.Configuration, error)
	SaveConfiguration(ctx context.Context, projectID string, cfg domain.Configuration) (domain.Configuration, error)
	ResetConfiguration(ctx context.Context, projectID string) (domain.Configuration, error)
}

// Customizer drives the customize page: an editor for the project's
// configuration next to a live preview that never talks to an assistant.
type Customizer struct {
	api  ConfigurationAPI
	opts options

	mu         sync.Mutex
	editor     *widget.Editor
	visibility *widget.Visibility
	log        *widget.MessageLog
	project    *domain.Project
	saving     bool
	errMsg     string
	previewSeq int

	subs notifier
}

// NewCustomizer creates the controller with a default configuration loaded.
func NewCustomizer(api ConfigurationAPI, opts ...Option) *Customizer {
	o := buildOptions(opts)
	return &Customizer{
		api:        api,
		opts:       o,
		editor:     widget.NewEditor(domain.DefaultConfiguration()),
		visibility: widget.NewVisibility(o.initial),
		log:        widget.NewMessageLog(widget.WithClock(o.now)),
	}
}

// Subscribe registers fn to be called after every state change.
func (c *Customizer) Subscribe(fn func()) (unsubscribe func()) {
	return c.subs.subscribe(fn)
}

// Load fetches the project and its stored configuration into the editor.
func (c *Customizer) Load(ctx context.Context, projectID string) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.requestTimeout)
	defer cancel()

	project, err := c.api.GetProject(reqCtx, projectID)
	if err != nil {
		c.setError(domain.UserMessage(err, "Failed to load project"))
		return err
	}
	cfg, err := c.api.GetConfiguration(reqCtx, projectID)
	if err != nil {
		c.setError(domain.UserMessage(err, "Failed to load configuration"))
		return err
	}

	c.mu.Lock()
	c.project = project
	c.editor.Load(cfg)
	c.errMsg = ""
	c.mu.Unlock()
	c.subs.notify()
	return nil
}

// Edit runs fn against the editor under the controller lock and notifies
// subscribers afterwards. The error from fn is returned unchanged.
func (c *Customizer) Edit(fn func(e *widget.Editor) error) error {
	c.mu.Lock()
	err := fn(c.editor)
	c.mu.Unlock()
	c.subs.notify()
	return err
}

// Configuration returns the edited configuration.
func (c *Customizer) Configuration() domain.Configuration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editor.Configuration()
}

// Dirty reports unsaved edits.
func (c *Customizer) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editor.Dirty()
}

// Save persists the edited configuration. The editor is reloaded from the
// stored copy on success and left untouched on failure.
func (c *Customizer) Save(ctx context.Context) error {
	return c.write(ctx, "Failed to update configuration", func(ctx context.Context, projectID string, cfg domain.Configuration) (domain.Configuration, error) {
		if err := cfg.Validate(); err != nil {
			return domain.Configuration{}, err
		}
		return c.api.SaveConfiguration(ctx, projectID, cfg)
	})
}

// Reset restores the server defaults.
func (c *Customizer) Reset(ctx context.Context) error {
	return c.write(ctx, "Failed to reset configuration", func(ctx context.Context, projectID string, _ domain.Configuration) (domain.Configuration, error) {
		return c.api.ResetConfiguration(ctx, projectID)
	})
}

func (c *Customizer) write(ctx context.Context, fallback string, call func(context.Context, string, domain.Configuration) (domain.Configuration, error)) error {
	c.mu.Lock()
	if c.project == nil {
		c.mu.Unlock()
		return &domain.ConfigurationError{Op: "save configuration", Err: errors.New("project not loaded")}
	}
	if c.saving {
		c.mu.Unlock()
		return ErrSaveInFlight
	}
	c.saving = true
	c.errMsg = ""
	projectID := c.project.ID
	cfg := c.editor.Configuration()
	c.mu.Unlock()
	c.subs.notify()

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.requestTimeout)
	saved, err := call(reqCtx, projectID, cfg)
	cancel()

	c.mu.Lock()
	c.saving = false
	if err != nil {
		c.errMsg = domain.UserMessage(err, fallback)
	} else {
		c.editor.Load(saved)
		c.project.Configuration = saved
	}
	c.mu.Unlock()
	c.subs.notify()

	if err != nil {
		c.opts.logger.Warn("configuration write failed", "project_id", projectID, "error", err)
		return err
	}
	c.opts.logger.Info("configuration written", "project_id", projectID)
	return nil
}

// Saving reports whether a save or reset is pending.
func (c *Customizer) Saving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saving
}

// Error returns the banner message, if any.
func (c *Customizer) Error() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// ClearError dismisses the banner.
func (c *Customizer) ClearError() {
	c.setError("")
}

func (c *Customizer) setError(msg string) {
	c.mu.Lock()
	c.errMsg = msg
	c.mu.Unlock()
	c.subs.notify()
}

// SimulateSend adds text and the canned reply to the preview log. No
// backend is involved.
func (c *Customizer) SimulateSend(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	user := c.log.AppendOptimisticUserMessage(text)

	c.mu.Lock()
	c.previewSeq++
	id := "preview-" + strconv.Itoa(c.previewSeq)
	c.mu.Unlock()

	c.log.ConfirmAssistantReply(domain.Message{
		MessageID: id,
		Role:      domain.RoleAssistant,
		Content:   PreviewReply,
		Timestamp: user.Timestamp.Add(time.Millisecond),
	})
	c.subs.notify()
	return nil
}

// OpenWidget handles a launcher click.
func (c *Customizer) OpenWidget() {
	c.mu.Lock()
	changed := c.visibility.LauncherClicked()
	c.mu.Unlock()
	if changed {
		c.subs.notify()
	}
}

// CloseWidget handles a close-button click.
func (c *Customizer) CloseWidget() {
	c.mu.Lock()
	changed := c.visibility.CloseClicked()
	c.mu.Unlock()
	if changed {
		c.subs.notify()
	}
}

// View renders the preview from the current edits. The welcome message is
// always the first bubble and tracks the editor.
func (c *Customizer) View() widget.View {
	c.mu.Lock()
	cfg := c.editor.Configuration()
	in := widget.PreviewInput{
		Configuration: cfg,
		Visibility:    c.visibility.State(),
	}
	if c.project != nil {
		in.Title = c.project.Name
		in.AvatarURL = c.project.Avatar.ImageURL
	}
	c.mu.Unlock()

	messages := c.log.Messages()
	if cfg.WelcomeMessage != "" {
		messages = append([]domain.Message{{
			MessageID: "welcome-preview",
			Role:      domain.RoleAssistant,
			Content:   cfg.WelcomeMessage,
		}}, messages...)
	}
	in.Messages = messages
	return widget.Render(in)
}
