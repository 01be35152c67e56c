package repository

import (
	"context"

	"adsim/internal/models"
)

type ListRunsParams struct {
	ScenarioSlug *string
	Status       *string
	Limit        int
	Offset       int
}

type ListSearchTermsParams struct {
	MatchType *string
	Limit     int
	Offset    int
}

// Repository is the storage boundary injected into the services. The engine
// itself never touches it; only runs, results and the query log cross it.
type Repository interface {
	// Scenarios. Written by the seeder at startup, read-only afterwards.
	UpsertScenario(ctx context.Context, item *models.Scenario) error
	GetScenarioBySlug(ctx context.Context, slug string) (*models.Scenario, error)
	ListScenarios(ctx context.Context) ([]models.Scenario, error)

	// Runs.
	InsertRun(ctx context.Context, item *models.Run) error
	GetRun(ctx context.Context, id uint64) (*models.Run, error)
	ListRuns(ctx context.Context, params ListRunsParams) ([]models.Run, error)
	ListRunIDsByStatus(ctx context.Context, status string, limit int) ([]uint64, error)

	// SaveDay atomically persists one simulated day: the advanced run row,
	// its new immutable DailyResult and the additive search-term updates.
	// Partial writes would break replayability, so it is all or nothing.
	SaveDay(ctx context.Context, run *models.Run, result *models.DailyResult, terms []models.SearchTerm) error

	// Daily results.
	GetDailyResult(ctx context.Context, runID uint64, day int) (*models.DailyResult, error)
	ListDailyResults(ctx context.Context, runID uint64) ([]models.DailyResult, error)

	// Search-term log.
	ListSearchTerms(ctx context.Context, runID uint64, params ListSearchTermsParams) ([]models.SearchTerm, error)
}
