package widget

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/chatbotyard/chatbotyard/internal/domain"
)

var launcherGlyphs = map[domain.LauncherIcon]string{
	domain.LauncherChat:      "💬",
	domain.LauncherHelp:      "?",
	domain.LauncherMessage:   "✉",
	domain.LauncherSupport:   "☎",
	domain.LauncherRobot:     "🤖",
	domain.LauncherAssistant: "✦",
	domain.LauncherBubble:    "◯",
	domain.LauncherCustom:    "▣",
}

// RenderTerminal draws v for a terminal of the given width.
func RenderTerminal(v View, width int) string {
	if width < 24 {
		width = 24
	}

	if v.Launcher != nil {
		glyph := launcherGlyphs[v.Launcher.Icon]
		label := glyph + " " + string(v.Launcher.Icon)
		if v.Launcher.CustomIconURL != "" {
			label = glyph + " " + v.Launcher.CustomIconURL
		}
		button := lipgloss.NewStyle().
			Background(lipgloss.Color(v.Launcher.Color)).
			Foreground(lipgloss.Color(userTextColor)).
			Padding(0, 2).
			Render(label)
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, button) + "\n"
	}

	inner := width - 4
	bubbleWidth := inner * 3 / 4

	titleStyle := lipgloss.NewStyle().Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	var b strings.Builder
	b.WriteString(titleStyle.Render(v.Header.Title))
	b.WriteString(" ")
	b.WriteString(mutedStyle.Render("[" + v.Header.AvatarURL + "]"))
	b.WriteString("\n\n")

	for _, bubble := range v.Bubbles {
		style := lipgloss.NewStyle().
			Background(lipgloss.Color(bubble.Background)).
			Foreground(lipgloss.Color(bubble.Foreground)).
			Padding(0, 1).
			MaxWidth(bubbleWidth)
		rendered := style.Render(bubble.Content)
		pos := lipgloss.Left
		if bubble.Align == AlignRight {
			pos = lipgloss.Right
		}
		b.WriteString(lipgloss.PlaceHorizontal(inner, pos, rendered))
		b.WriteString("\n")
	}

	if len(v.QuickReplies) > 0 {
		b.WriteString("\n")
		chips := make([]string, 0, len(v.QuickReplies))
		for _, q := range v.QuickReplies {
			chips = append(chips, lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color(v.Input.SendColor)).
				Render(q))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, chips...))
		b.WriteString("\n")
	}

	prompt := "> " + v.Input.Placeholder
	if v.Input.Disabled {
		prompt = mutedStyle.Render("> (waiting...)")
	}
	b.WriteString("\n")
	b.WriteString(prompt)

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(v.Input.SendColor)).
		Padding(0, 1).
		Width(inner)
	return box.Render(b.String()) + "\n"
}
