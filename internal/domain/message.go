package domain

import "time"

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat bubble.
//
// MessageID is client generated ("temp-..." or "welcome-...") for local
// entries and server issued for confirmed ones.
type Message struct {
	MessageID string    `json:"messageId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
