package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chatbotyard/chatbotyard/internal/domain"
	"github.com/chatbotyard/chatbotyard/internal/playground"
)

func TestParseConfiguration(t *testing.T) {
	cfg, err := parseConfiguration([]byte(`
welcomeMessage: Hi
sampleQuestions:
  - Where are you?
appearance:
  mainColor: "#123abc"
`))
	if err != nil {
		t.Fatalf("parseConfiguration: %v", err)
	}
	if cfg.Appearance.LauncherIcon != domain.LauncherChat {
		t.Errorf("icon = %q", cfg.Appearance.LauncherIcon)
	}
	if len(cfg.SampleQuestions) != 1 || cfg.WelcomeMessage != "Hi" {
		t.Errorf("cfg = %+v", cfg)
	}

	_, err = parseConfiguration([]byte("appearance:\n  mainColor: teal\n"))
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	if err := run([]string{"frobnicate"}); err == nil {
		t.Error("expected error")
	}
	if err := run([]string{"config", "nope"}); err == nil {
		t.Error("expected error")
	}
}

type scriptedSessions struct {
	sent []string
}

func (s *scriptedSessions) CreateSession(_ context.Context, p *domain.Project) (*domain.Session, error) {
	return &domain.Session{ID: "s1", ProjectID: p.ID, Status: domain.SessionActive}, nil
}

func (s *scriptedSessions) SendMessage(_ context.Context, _ string, text string) (domain.Message, error) {
	s.sent = append(s.sent, text)
	return domain.Message{MessageID: "r-" + text, Role: domain.RoleAssistant, Content: "ok"}, nil
}

func (s *scriptedSessions) FetchSessionDetails(context.Context, string) (*domain.Session, error) {
	return &domain.Session{ID: "s1", Status: domain.SessionActive}, nil
}

func TestTryLoopSendsLinesUntilQuit(t *testing.T) {
	api := &scriptedSessions{}
	chat := playground.NewTryChatbot(api)
	project := &domain.Project{ID: "p1", AssistantID: "a1", Configuration: domain.DefaultConfiguration()}
	if err := chat.Start(context.Background(), project); err != nil {
		t.Fatal(err)
	}

	input := strings.NewReader("hello\n\n/close\n/open\nsecond\n/quit\nignored\n")
	redraws := 0
	if err := tryLoop(context.Background(), chat, input, func() { redraws++ }); err != nil {
		t.Fatalf("tryLoop: %v", err)
	}
	if len(api.sent) != 2 || api.sent[0] != "hello" || api.sent[1] != "second" {
		t.Errorf("sent = %v", api.sent)
	}
	if redraws != 4 {
		t.Errorf("redraws = %d, want 4", redraws)
	}
}
