package store

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chatbotyard/chatbotyard/internal/domain"
)

// CachedRepository keeps recently read projects in memory. Project writes
// go through it so the cache never serves a stale configuration.
type CachedRepository struct {
	Repository
	projects *lru.Cache[string, domain.Project]
}

// NewCached wraps origin with an LRU project cache of the given size.
func NewCached(origin Repository, size int) (*CachedRepository, error) {
	cache, err := lru.New[string, domain.Project](size)
	if err != nil {
		return nil, fmt.Errorf("create project cache: %w", err)
	}
	return &CachedRepository{Repository: origin, projects: cache}, nil
}

// GetProject serves from the cache, falling back to the origin store.
func (c *CachedRepository) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	if p, ok := c.projects.Get(projectID); ok {
		return cloneProject(p), nil
	}
	p, err := c.Repository.GetProject(ctx, projectID)
	if err != nil || p == nil {
		return p, err
	}
	c.projects.Add(projectID, *cloneProject(*p))
	return p, nil
}

// GetConfiguration reads the configuration through the project cache.
func (c *CachedRepository) GetConfiguration(ctx context.Context, projectID string) (*domain.Configuration, error) {
	p, err := c.GetProject(ctx, projectID)
	if err != nil || p == nil {
		return nil, err
	}
	cfg := p.Configuration
	return &cfg, nil
}

// UpsertProject writes through and drops the cached copy.
func (c *CachedRepository) UpsertProject(ctx context.Context, p *domain.Project) error {
	err := c.Repository.UpsertProject(ctx, p)
	c.projects.Remove(p.ID)
	return err
}

// UpdateConfiguration writes through and drops the cached copy.
func (c *CachedRepository) UpdateConfiguration(ctx context.Context, projectID string, cfg domain.Configuration) error {
	err := c.Repository.UpdateConfiguration(ctx, projectID, cfg)
	c.projects.Remove(projectID)
	return err
}

func cloneProject(p domain.Project) *domain.Project {
	p.Configuration = p.Configuration.Clone()
	return &p
}
