package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"adsim/internal/models"
	"adsim/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Scenarios --------------------------------------------------------------

func (s *Store) UpsertScenario(ctx context.Context, item *models.Scenario) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Slug) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "market", "description", "config", "updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetScenarioBySlug(ctx context.Context, slug string) (*models.Scenario, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Scenario
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListScenarios(ctx context.Context) ([]models.Scenario, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Scenario
	if err := s.db.WithContext(ctx).Order("slug asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Runs -------------------------------------------------------------------

func (s *Store) InsertRun(ctx context.Context, item *models.Run) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetRun(ctx context.Context, id uint64) (*models.Run, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Run
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListRuns(ctx context.Context, params repository.ListRunsParams) ([]models.Run, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Run{})
	if params.ScenarioSlug != nil && strings.TrimSpace(*params.ScenarioSlug) != "" {
		query = query.Where("scenario_slug = ?", strings.TrimSpace(*params.ScenarioSlug))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Run
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListRunIDsByStatus(ctx context.Context, status string, limit int) ([]uint64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var ids []uint64
	err := s.db.WithContext(ctx).Model(&models.Run{}).
		Where("status = ?", status).
		Order("id asc").
		Limit(normalizeLimit(limit, 100)).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// --- Day persistence --------------------------------------------------------

// SaveDay writes the stepped run, the new DailyResult and the search-term
// increments in one transaction. The unique (run_id, day_number) index makes
// a duplicated day a hard failure rather than a silent overwrite.
func (s *Store) SaveDay(ctx context.Context, run *models.Run, result *models.DailyResult, terms []models.SearchTerm) error {
	if s == nil || s.db == nil || run == nil || result == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Run{}).Where("id = ?", run.ID).Updates(map[string]any{
			"current_day":  run.CurrentDay,
			"status":       run.Status,
			"sim_state":    run.SimState,
			"started_at":   run.StartedAt,
			"completed_at": run.CompletedAt,
		}).Error; err != nil {
			return err
		}
		if err := tx.Create(result).Error; err != nil {
			return err
		}
		for i := range terms {
			term := terms[i]
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "run_id"}, {Name: "query_text"}, {Name: "matched_keyword"}},
				DoUpdates: clause.Assignments(map[string]any{
					"impressions": gorm.Expr("search_terms.impressions + ?", term.Impressions),
					"clicks":      gorm.Expr("search_terms.clicks + ?", term.Clicks),
					"conversions": gorm.Expr("search_terms.conversions + ?", term.Conversions),
					"cost":        gorm.Expr("search_terms.cost + ?", term.Cost),
				}),
			}).Create(&term).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// --- Daily results ----------------------------------------------------------

func (s *Store) GetDailyResult(ctx context.Context, runID uint64, day int) (*models.DailyResult, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.DailyResult
	err := s.db.WithContext(ctx).
		Where("run_id = ? AND day_number = ?", runID, day).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListDailyResults(ctx context.Context, runID uint64) ([]models.DailyResult, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.DailyResult
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("day_number asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Search terms -----------------------------------------------------------

func (s *Store) ListSearchTerms(ctx context.Context, runID uint64, params repository.ListSearchTermsParams) ([]models.SearchTerm, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Where("run_id = ?", runID)
	if params.MatchType != nil && strings.TrimSpace(*params.MatchType) != "" {
		query = query.Where("match_type = ?", strings.TrimSpace(*params.MatchType))
	}
	limit := normalizeLimit(params.Limit, 500)
	offset := normalizeOffset(params.Offset)
	var items []models.SearchTerm
	err := query.Order("cost desc").Order("query_text asc").
		Limit(limit).Offset(offset).Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
