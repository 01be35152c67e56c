package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"adsim/internal/apperr"
	"adsim/internal/models"
	"adsim/internal/repository"
	"adsim/internal/sim"
)

type ScenarioService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

func (s *ScenarioService) List(ctx context.Context) ([]models.Scenario, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	items, err := s.Repo.ListScenarios(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "list scenarios")
	}
	return items, nil
}

func (s *ScenarioService) GetBySlug(ctx context.Context, slug string) (*models.Scenario, error) {
	if s == nil || s.Repo == nil {
		return nil, apperr.E(apperr.KindStorage, "scenario service not ready")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, apperr.E(apperr.KindValidation, "scenario slug is required")
	}
	item, err := s.Repo.GetScenarioBySlug(ctx, slug)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "get scenario")
	}
	if item == nil {
		return nil, apperr.E(apperr.KindNotFound, "scenario not found: %s", slug)
	}
	return item, nil
}

// ParseConfig decodes the stored scenario document into the engine config.
func ParseConfig(item *models.Scenario) (*sim.ScenarioConfig, error) {
	if item == nil || len(item.Config) == 0 {
		return nil, apperr.E(apperr.KindStorage, "scenario has no config document")
	}
	var cfg sim.ScenarioConfig
	if err := json.Unmarshal(item.Config, &cfg); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "decode scenario config")
	}
	if cfg.Slug == "" {
		cfg.Slug = item.Slug
	}
	return &cfg, nil
}

// SeedFromDir loads every *.yaml scenario file under dir, validates it and
// upserts it. Existing scenarios with the same slug are overwritten so seed
// edits take effect on restart.
func (s *ScenarioService) SeedFromDir(ctx context.Context, dir string) (int, error) {
	if s == nil || s.Repo == nil {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStorage, err, "read scenario seed dir")
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	seeded := 0
	for _, name := range names {
		cfg, err := LoadScenarioFile(filepath.Join(dir, name))
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("skipping scenario seed", zap.String("file", name), zap.Error(err))
			}
			continue
		}
		doc, err := json.Marshal(cfg)
		if err != nil {
			return seeded, apperr.Wrap(apperr.KindStorage, err, "encode scenario config")
		}
		item := &models.Scenario{
			Slug:        cfg.Slug,
			Name:        cfg.Name,
			Market:      cfg.Market,
			Description: cfg.Description,
			Config:      doc,
		}
		if err := s.Repo.UpsertScenario(ctx, item); err != nil {
			return seeded, apperr.Wrap(apperr.KindStorage, err, "upsert scenario %s", cfg.Slug)
		}
		seeded++
		if s.Logger != nil {
			s.Logger.Info("scenario seeded", zap.String("slug", cfg.Slug), zap.String("file", name))
		}
	}
	return seeded, nil
}

// LoadScenarioFile reads and validates a single YAML scenario document.
func LoadScenarioFile(path string) (*sim.ScenarioConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg sim.ScenarioConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
