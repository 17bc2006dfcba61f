// Package domain contains core domain types for the ChatBotYard widget.
package domain

import (
	"time"
)

// AvatarType tells whether a project's avatar is from the catalog or uploaded.
type AvatarType string

const (
	AvatarPredefined AvatarType = "predefined"
	AvatarCustom     AvatarType = "custom"
)

// Avatar is the image shown in the widget header.
type Avatar struct {
	Type     AvatarType `json:"type" yaml:"type"`
	AvatarID string     `json:"avatarId,omitempty" yaml:"avatarId,omitempty"`
	ImageURL string     `json:"imageUrl" yaml:"imageUrl"`
}

// Project is one chatbot being configured by a customer.
type Project struct {
	ID            string        `json:"_id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	WebsiteURL    string        `json:"websiteUrl,omitempty" yaml:"websiteUrl,omitempty"`
	AssistantID   string        `json:"assistantId,omitempty" yaml:"assistantId,omitempty"`
	Avatar        Avatar        `json:"avatar" yaml:"avatar"`
	EmbedCode     string        `json:"embedCode,omitempty" yaml:"embedCode,omitempty"`
	Configuration Configuration `json:"configuration" yaml:"configuration"`
	CreatedAt     time.Time     `json:"createdAt" yaml:"-"`
	UpdatedAt     time.Time     `json:"updatedAt" yaml:"-"`
}

// HasAssistant returns true if the project has a trained assistant.
func (p *Project) HasAssistant() bool {
	return p.AssistantID != ""
}
