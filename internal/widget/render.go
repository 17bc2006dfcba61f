package widget

import (
	"strings"
	"time"

	"github.com/chatbotyard/chatbotyard/internal/domain"
)

const (
	// PlaceholderAvatarURL is used when a project has no avatar image.
	PlaceholderAvatarURL = "/static/placeholder.svg"
	// AssistantBubbleColor is the fixed neutral background of assistant bubbles.
	AssistantBubbleColor = "#F3F4F6"

	userTextColor      = "#FFFFFF"
	assistantTextColor = "#111827"
	inputPlaceholder   = "Type your message..."
)

// Alignment is the horizontal side a bubble sits on.
type Alignment string

const (
	AlignLeft  Alignment = "left"
	AlignRight Alignment = "right"
)

// PreviewInput is everything the renderer reads.
type PreviewInput struct {
	Title         string
	Configuration domain.Configuration
	Messages      []domain.Message
	Visibility    VisibilityState
	AvatarURL     string
	// SendDisabled is true while a send is in flight or no session exists.
	SendDisabled bool
}

// View is the rendered visual tree of the widget. An open widget has
// Header, Bubbles, QuickReplies and Input; a closed one has only Launcher.
type View struct {
	State        VisibilityState
	Header       *Header
	Bubbles      []Bubble
	QuickReplies []string
	Input        *Input
	Launcher     *Launcher
}

type Header struct {
	Title     string
	AvatarURL string
}

type Bubble struct {
	MessageID  string
	Role       domain.Role
	Content    string
	Timestamp  time.Time
	Align      Alignment
	Background string
	Foreground string
}

type Input struct {
	Placeholder string
	Disabled    bool
	SendColor   string
}

type Launcher struct {
	Color         string
	Icon          domain.LauncherIcon
	CustomIconURL string
}

// Render builds the view for in. It does no I/O.
func Render(in PreviewInput) View {
	appearance := in.Configuration.Appearance
	if in.Visibility != Open {
		launcher := &Launcher{Color: appearance.MainColor, Icon: appearance.LauncherIcon}
		if appearance.LauncherIcon == domain.LauncherCustom {
			launcher.CustomIconURL = appearance.CustomIconURL
		}
		return View{State: Closed, Launcher: launcher}
	}

	avatar := in.AvatarURL
	if avatar == "" {
		avatar = PlaceholderAvatarURL
	}

	sorted := SortMessages(in.Messages)
	bubbles := make([]Bubble, 0, len(sorted))
	for _, m := range sorted {
		b := Bubble{
			MessageID:  m.MessageID,
			Role:       m.Role,
			Content:    m.Content,
			Timestamp:  m.Timestamp,
			Align:      AlignLeft,
			Background: AssistantBubbleColor,
			Foreground: assistantTextColor,
		}
		if m.Role == domain.RoleUser {
			b.Align = AlignRight
			b.Background = appearance.MainColor
			b.Foreground = userTextColor
		}
		bubbles = append(bubbles, b)
	}

	var replies []string
	for _, q := range in.Configuration.SampleQuestions {
		if strings.TrimSpace(q) != "" {
			replies = append(replies, q)
		}
	}

	return View{
		State:        Open,
		Header:       &Header{Title: in.Title, AvatarURL: avatar},
		Bubbles:      bubbles,
		QuickReplies: replies,
		Input: &Input{
			Placeholder: inputPlaceholder,
			Disabled:    in.SendDisabled,
			SendColor:   appearance.MainColor,
		},
	}
}
