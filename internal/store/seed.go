package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chatbotyard/chatbotyard/internal/domain"
)

// SeedFile is the YAML document read by LoadSeed.
type SeedFile struct {
	Projects []domain.Project `yaml:"projects"`
}

// ReadSeed parses a seed file. Missing configurations get the defaults and
// every configuration is validated and normalized.
func ReadSeed(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	for i := range seed.Projects {
		p := &seed.Projects[i]
		if p.ID == "" {
			return nil, fmt.Errorf("seed project %d: id is required", i)
		}
		if p.Configuration.Appearance.MainColor == "" {
			p.Configuration = domain.DefaultConfiguration()
		}
		if err := p.Configuration.Validate(); err != nil {
			return nil, fmt.Errorf("seed project %s: %w", p.ID, err)
		}
		p.Configuration = p.Configuration.Normalize()
	}
	return &seed, nil
}

// LoadSeed upserts every project from the YAML file at path.
func LoadSeed(ctx context.Context, repo Repository, path string) (int, error) {
	seed, err := ReadSeed(path)
	if err != nil {
		return 0, err
	}
	for i := range seed.Projects {
		if err := repo.UpsertProject(ctx, &seed.Projects[i]); err != nil {
			return i, fmt.Errorf("seed project %s: %w", seed.Projects[i].ID, err)
		}
	}
	slog.Info("seed projects loaded", "path", path, "count", len(seed.Projects))
	return len(seed.Projects), nil
}
