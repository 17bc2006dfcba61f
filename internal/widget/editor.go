// Package widget implements the chat widget core: the configuration editor,
// the message reconciliation log, the open/closed state machine and the
// preview renderer.
package widget

import (
	"strconv"
	"strings"

	"github.com/chatbotyard/chatbotyard/internal/domain"
)

// SampleQuestion is one quick-reply entry. ID is assigned at creation and
// never derived from Text.
type SampleQuestion struct {
	ID   string
	Text string
}

// Editor holds a locally edited Configuration. It is not safe for
// concurrent use; the owning page controller serializes access.
type Editor struct {
	welcome    string
	appearance domain.Appearance
	questions  []SampleQuestion
	nextID     int
	dirty      bool
}

// NewEditor returns an editor loaded with cfg.
func NewEditor(cfg domain.Configuration) *Editor {
	e := &Editor{}
	e.Load(cfg)
	return e
}

// Load replaces all local state with cfg and clears the dirty flag.
func (e *Editor) Load(cfg domain.Configuration) {
	e.welcome = cfg.WelcomeMessage
	e.appearance = cfg.Appearance
	e.questions = make([]SampleQuestion, 0, len(cfg.SampleQuestions))
	for _, q := range cfg.SampleQuestions {
		e.questions = append(e.questions, SampleQuestion{ID: e.newQuestionID(), Text: q})
	}
	e.dirty = false
}

func (e *Editor) newQuestionID() string {
	e.nextID++
	return "q-" + strconv.Itoa(e.nextID)
}

// Configuration returns a snapshot of the edited configuration.
func (e *Editor) Configuration() domain.Configuration {
	questions := make([]string, 0, len(e.questions))
	for _, q := range e.questions {
		questions = append(questions, q.Text)
	}
	return domain.Configuration{
		WelcomeMessage:  e.welcome,
		SampleQuestions: questions,
		Appearance:      e.appearance,
	}
}

// Dirty reports whether anything changed since the last Load.
func (e *Editor) Dirty() bool {
	return e.dirty
}

// SetWelcomeMessage sets the first assistant bubble text.
func (e *Editor) SetWelcomeMessage(text string) {
	if e.welcome == text {
		return
	}
	e.welcome = text
	e.dirty = true
}

// SetMainColor applies candidate, upper-cased, if it is a 6-digit hex color.
// Anything else leaves the configuration untouched and returns a
// *domain.ValidationError.
func (e *Editor) SetMainColor(candidate string) error {
	if !domain.IsHexColor(candidate) {
		return &domain.ValidationError{Field: "appearance.mainColor", Value: candidate, Reason: "must match #RRGGBB"}
	}
	color := strings.ToUpper(candidate)
	if e.appearance.MainColor != color {
		e.appearance.MainColor = color
		e.dirty = true
	}
	return nil
}

// SelectLauncherIcon sets the launcher icon. Selecting anything but CUSTOM
// always clears the custom icon URL.
func (e *Editor) SelectLauncherIcon(icon domain.LauncherIcon) error {
	if !icon.Valid() {
		return &domain.ValidationError{Field: "appearance.launcherIcon", Value: string(icon), Reason: "unknown launcher icon"}
	}
	e.appearance.LauncherIcon = icon
	if icon != domain.LauncherCustom {
		e.appearance.CustomIconURL = ""
	}
	e.dirty = true
	return nil
}

// SetCustomIconURL sets the custom launcher image. Only allowed while the
// launcher icon is CUSTOM.
func (e *Editor) SetCustomIconURL(url string) error {
	if e.appearance.LauncherIcon != domain.LauncherCustom {
		return &domain.ValidationError{Field: "appearance.customIconUrl", Value: url, Reason: "launcher icon is not CUSTOM"}
	}
	e.appearance.CustomIconURL = url
	e.dirty = true
	return nil
}

// SampleQuestions returns the quick replies in display order.
func (e *Editor) SampleQuestions() []SampleQuestion {
	return append([]SampleQuestion(nil), e.questions...)
}

// AddSampleQuestion appends an empty placeholder and returns its ID.
func (e *Editor) AddSampleQuestion() string {
	id := e.newQuestionID()
	e.questions = append(e.questions, SampleQuestion{ID: id})
	e.dirty = true
	return id
}

// UpdateSampleQuestion edits the question with the given ID in place.
func (e *Editor) UpdateSampleQuestion(id, text string) bool {
	for i := range e.questions {
		if e.questions[i].ID == id {
			e.questions[i].Text = text
			e.dirty = true
			return true
		}
	}
	return false
}

// RemoveSampleQuestion removes the question with the given ID.
func (e *Editor) RemoveSampleQuestion(id string) bool {
	for i := range e.questions {
		if e.questions[i].ID == id {
			e.questions = append(e.questions[:i], e.questions[i+1:]...)
			e.dirty = true
			return true
		}
	}
	return false
}

// RemoveSampleQuestionText removes every question whose text equals value
// and returns how many were removed.
func (e *Editor) RemoveSampleQuestionText(value string) int {
	kept := e.questions[:0]
	removed := 0
	for _, q := range e.questions {
		if q.Text == value {
			removed++
			continue
		}
		kept = append(kept, q)
	}
	e.questions = kept
	if removed > 0 {
		e.dirty = true
	}
	return removed
}

// Apply copies every field of cfg through the validating setters. The first
// validation failure is returned and later fields are not applied.
func (e *Editor) Apply(cfg domain.Configuration) error {
	if err := e.SetMainColor(cfg.Appearance.MainColor); err != nil {
		return err
	}
	if err := e.SelectLauncherIcon(cfg.Appearance.LauncherIcon); err != nil {
		return err
	}
	if cfg.Appearance.LauncherIcon == domain.LauncherCustom {
		if err := e.SetCustomIconURL(cfg.Appearance.CustomIconURL); err != nil {
			return err
		}
	}
	e.SetWelcomeMessage(cfg.WelcomeMessage)

	e.questions = e.questions[:0]
	for _, q := range cfg.SampleQuestions {
		e.questions = append(e.questions, SampleQuestion{ID: e.newQuestionID(), Text: q})
	}
	e.dirty = true
	return nil
}
