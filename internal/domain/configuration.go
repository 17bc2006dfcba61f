package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// LauncherIcon identifies the icon shown on the closed-state launcher button.
type LauncherIcon string

const (
	LauncherChat      LauncherIcon = "CHAT"
	LauncherHelp      LauncherIcon = "HELP"
	LauncherMessage   LauncherIcon = "MESSAGE"
	LauncherSupport   LauncherIcon = "SUPPORT"
	LauncherRobot     LauncherIcon = "ROBOT"
	LauncherAssistant LauncherIcon = "ASSISTANT"
	LauncherBubble    LauncherIcon = "BUBBLE"
	// LauncherCustom uses the image at Appearance.CustomIconURL.
	LauncherCustom LauncherIcon = "CUSTOM"
)

// LauncherIcons lists every launcher icon in picker order.
var LauncherIcons = []LauncherIcon{
	LauncherChat,
	LauncherHelp,
	LauncherMessage,
	LauncherSupport,
	LauncherRobot,
	LauncherAssistant,
	LauncherBubble,
	LauncherCustom,
}

// Valid reports whether i is a known launcher icon.
func (i LauncherIcon) Valid() bool {
	for _, known := range LauncherIcons {
		if i == known {
			return true
		}
	}
	return false
}

const (
	DefaultWelcomeMessage = "Hello! How can I assist you today?"
	DefaultMainColor      = "#3498DB"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// IsHexColor reports whether s is a 6-digit hex color such as "#3498db".
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

// Appearance controls how the widget looks.
type Appearance struct {
	MainColor     string       `json:"mainColor" yaml:"mainColor"`
	LauncherIcon  LauncherIcon `json:"launcherIcon" yaml:"launcherIcon"`
	CustomIconURL string       `json:"customIconUrl,omitempty" yaml:"customIconUrl,omitempty"`
}

// Configuration is the persisted set of widget content and appearance options.
type Configuration struct {
	WelcomeMessage  string     `json:"welcomeMessage" yaml:"welcomeMessage"`
	SampleQuestions []string   `json:"sampleQuestions" yaml:"sampleQuestions"`
	Appearance      Appearance `json:"appearance" yaml:"appearance"`
}

// DefaultConfiguration returns the configuration a new project starts with.
func DefaultConfiguration() Configuration {
	return Configuration{
		WelcomeMessage:  DefaultWelcomeMessage,
		SampleQuestions: []string{},
		Appearance: Appearance{
			MainColor:    DefaultMainColor,
			LauncherIcon: LauncherChat,
		},
	}
}

// Clone returns a deep copy of c.
func (c Configuration) Clone() Configuration {
	out := c
	out.SampleQuestions = append([]string(nil), c.SampleQuestions...)
	if out.SampleQuestions == nil {
		out.SampleQuestions = []string{}
	}
	return out
}

// Validate checks the appearance fields.
func (c Configuration) Validate() error {
	if !IsHexColor(c.Appearance.MainColor) {
		return &ValidationError{Field: "appearance.mainColor", Value: c.Appearance.MainColor, Reason: "must be a 6-digit hex color"}
	}
	if !c.Appearance.LauncherIcon.Valid() {
		return &ValidationError{Field: "appearance.launcherIcon", Value: string(c.Appearance.LauncherIcon), Reason: "unknown launcher icon"}
	}
	return nil
}

// Normalize returns the canonical form stored by the backend: upper-cased
// color, trimmed non-blank sample questions, and no custom icon URL unless
// the launcher icon is CUSTOM.
func (c Configuration) Normalize() Configuration {
	out := c.Clone()
	out.WelcomeMessage = strings.TrimSpace(out.WelcomeMessage)
	out.Appearance.MainColor = strings.ToUpper(out.Appearance.MainColor)
	if out.Appearance.LauncherIcon == "" {
		out.Appearance.LauncherIcon = LauncherChat
	}
	if out.Appearance.LauncherIcon != LauncherCustom {
		out.Appearance.CustomIconURL = ""
	}

	questions := out.SampleQuestions[:0]
	for _, q := range out.SampleQuestions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	out.SampleQuestions = questions
	return out
}

func (c Configuration) String() string {
	return fmt.Sprintf("Configuration{color=%s icon=%s questions=%d}",
		c.Appearance.MainColor, c.Appearance.LauncherIcon, len(c.SampleQuestions))
}
