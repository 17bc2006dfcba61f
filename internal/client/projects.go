package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/chatbotyard/chatbotyard/internal/domain"
)

func projectPath(projectID string) string {
	return "/projects/" + url.PathEscape(projectID)
}

// GetProject loads a project, including its assistant ID and avatar.
func (c *Client) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	var p domain.Project
	if err := c.do(ctx, "get project", http.MethodGet, projectPath(projectID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetConfiguration loads the widget configuration of a project.
func (c *Client) GetConfiguration(ctx context.Context, projectID string) (domain.Configuration, error) {
	var cfg domain.Configuration
	err := c.do(ctx, "get configuration", http.MethodGet, projectPath(projectID)+"/configuration", nil, &cfg)
	return cfg, err
}

// SaveConfiguration sends the full configuration and returns the server's
// normalized copy, which callers should adopt as their new local state.
func (c *Client) SaveConfiguration(ctx context.Context, projectID string, cfg domain.Configuration) (domain.Configuration, error) {
	var saved domain.Configuration
	err := c.do(ctx, "save configuration", http.MethodPut, projectPath(projectID)+"/configuration", cfg, &saved)
	return saved, err
}

// ResetConfiguration restores the default configuration server side.
func (c *Client) ResetConfiguration(ctx context.Context, projectID string) (domain.Configuration, error) {
	var cfg domain.Configuration
	err := c.do(ctx, "reset configuration", http.MethodPost, projectPath(projectID)+"/configuration/reset", nil, &cfg)
	return cfg, err
}
