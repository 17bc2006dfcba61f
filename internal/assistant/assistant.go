// Package assistant connects chat sessions to the project's trained
// assistant.
package assistant

import (
	"context"
	"errors"

	"github.com/chatbotyard/chatbotyard/internal/domain"
)

// ErrUnavailable is returned when the assistant service cannot be reached
// or did not answer in time.
var ErrUnavailable = errors.New("assistant unavailable")

// ReplyRequest is one user turn sent to the assistant.
type ReplyRequest struct {
	ProjectID   string
	AssistantID string
	ThreadID    string
	SessionID   string
	Message     string
	History     []domain.Message
}

// Replier produces the assistant's answer to a user message.
type Replier interface {
	Reply(ctx context.Context, req ReplyRequest) (string, error)
}

// CannedReply is the answer given when no assistant service is configured.
const CannedReply = "Thank you for your message! I'll help you with that."

// Canned answers every message with a fixed text. Used for local
// development and demos.
type Canned struct {
	Text string
}

// NewCanned returns a replier answering with CannedReply.
func NewCanned() *Canned {
	return &Canned{Text: CannedReply}
}

// Reply implements Replier.
func (c *Canned) Reply(ctx context.Context, _ ReplyRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.Text, nil
}
