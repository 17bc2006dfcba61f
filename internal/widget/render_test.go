package widget

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/chatbotyard/chatbotyard/internal/domain"
)

func previewConfig() domain.Configuration {
	cfg := domain.DefaultConfiguration()
	cfg.SampleQuestions = []string{"What are your hours?", "", "Do you ship abroad?"}
	return cfg
}

func TestRenderOpenWidget(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := Render(PreviewInput{
		Title:         "Acme",
		Configuration: previewConfig(),
		Visibility:    Open,
		Messages: []domain.Message{
			{MessageID: "srv-2", Role: domain.RoleAssistant, Content: "Hi there", Timestamp: base.Add(time.Second)},
			{MessageID: "temp-1", Role: domain.RoleUser, Content: "Hello", Timestamp: base},
		},
	})

	if v.State != Open || v.Launcher != nil {
		t.Fatalf("expected open view without launcher, got %+v", v)
	}
	if v.Header.AvatarURL != PlaceholderAvatarURL {
		t.Fatalf("expected placeholder avatar, got %q", v.Header.AvatarURL)
	}
	if len(v.Bubbles) != 2 {
		t.Fatalf("expected 2 bubbles, got %d", len(v.Bubbles))
	}
	user, assistant := v.Bubbles[0], v.Bubbles[1]
	if user.Role != domain.RoleUser || user.Align != AlignRight || user.Background != "#3498DB" {
		t.Fatalf("unexpected user bubble: %+v", user)
	}
	if assistant.Align != AlignLeft || assistant.Background != AssistantBubbleColor {
		t.Fatalf("unexpected assistant bubble: %+v", assistant)
	}
	if len(v.QuickReplies) != 2 {
		t.Fatalf("expected blank quick reply skipped, got %q", v.QuickReplies)
	}
	if v.Input.Disabled {
		t.Fatal("input should be enabled")
	}
}

func TestRenderOmitsQuickRepliesWhenEmpty(t *testing.T) {
	v := Render(PreviewInput{Configuration: domain.DefaultConfiguration(), Visibility: Open, SendDisabled: true})
	if v.QuickReplies != nil {
		t.Fatalf("expected no quick replies, got %q", v.QuickReplies)
	}
	if !v.Input.Disabled {
		t.Fatal("expected input disabled")
	}
}

func TestRenderClosedWidgetShowsOnlyLauncher(t *testing.T) {
	cfg := domain.DefaultConfiguration()
	cfg.Appearance.LauncherIcon = domain.LauncherCustom
	cfg.Appearance.CustomIconURL = "https://cdn.example.com/icon.png"

	v := Render(PreviewInput{Configuration: cfg, Visibility: Closed, AvatarURL: "avatar.png"})
	if v.Header != nil || v.Bubbles != nil || v.Input != nil {
		t.Fatalf("closed view should only contain launcher: %+v", v)
	}
	if v.Launcher.Color != "#3498DB" || v.Launcher.CustomIconURL != "https://cdn.example.com/icon.png" {
		t.Fatalf("unexpected launcher: %+v", v.Launcher)
	}
}

func TestRenderHTML(t *testing.T) {
	v := Render(PreviewInput{
		Title:         "Acme",
		Configuration: previewConfig(),
		Visibility:    Open,
		AvatarURL:     "/avatars/bot.png",
		Messages:      []domain.Message{{MessageID: "welcome-1", Role: domain.RoleAssistant, Content: "<b>Hi!</b>", Timestamp: time.Now()}},
	})

	var buf bytes.Buffer
	if err := RenderHTML(&buf, v); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"/avatars/bot.png", "&lt;b&gt;Hi!&lt;/b&gt;", "What are your hours?", "#3498DB"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected html to contain %q", want)
		}
	}
}

func TestRenderHTMLClosed(t *testing.T) {
	v := Render(PreviewInput{Configuration: domain.DefaultConfiguration(), Visibility: Closed})

	var buf bytes.Buffer
	if err := RenderHTML(&buf, v); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if !strings.Contains(buf.String(), "cby-launcher") || strings.Contains(buf.String(), "cby-panel") {
		t.Fatalf("unexpected closed html: %s", buf.String())
	}
}

func TestRenderTerminal(t *testing.T) {
	v := Render(PreviewInput{
		Title:         "Acme",
		Configuration: previewConfig(),
		Visibility:    Open,
		Messages:      []domain.Message{{MessageID: "welcome-1", Role: domain.RoleAssistant, Content: "Hi!", Timestamp: time.Now()}},
	})

	out := RenderTerminal(v, 60)
	for _, want := range []string{"Acme", "Hi!", "What are your hours?"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected terminal render to contain %q:\n%s", want, out)
		}
	}

	closed := RenderTerminal(Render(PreviewInput{Configuration: domain.DefaultConfiguration(), Visibility: Closed}), 40)
	if !strings.Contains(closed, "CHAT") {
		t.Errorf("expected launcher label, got %q", closed)
	}
}
