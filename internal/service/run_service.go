package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"adsim/internal/apperr"
	"adsim/internal/metrics"
	"adsim/internal/models"
	"adsim/internal/repository"
	"adsim/internal/sim"
)

const (
	DurationShort = 7
	DurationLong  = 30
)

type RunService struct {
	Repo      repository.Repository
	Scenarios *ScenarioService
	Logger    *zap.Logger
	Metrics   *metrics.Metrics

	// DefaultDuration is used when a create request omits duration_days;
	// MaxSeed caps accepted seeds. Zero values fall back to the short
	// duration and 2^31-1.
	DefaultDuration int
	MaxSeed         int64

	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

type CreateRunParams struct {
	ScenarioSlug string
	Seed         *int64
	DurationDays int
}

// Create starts a new pending run. The seed is recorded on the run so any
// result can be reproduced later; when absent a random 31-bit seed is drawn.
func (s *RunService) Create(ctx context.Context, params CreateRunParams) (*models.Run, error) {
	if s == nil || s.Repo == nil || s.Scenarios == nil {
		return nil, apperr.E(apperr.KindStorage, "run service not ready")
	}
	if params.DurationDays == 0 {
		params.DurationDays = s.DefaultDuration
	}
	if params.DurationDays == 0 {
		params.DurationDays = DurationShort
	}
	if params.DurationDays != DurationShort && params.DurationDays != DurationLong {
		return nil, apperr.E(apperr.KindValidation, "duration_days must be %d or %d", DurationShort, DurationLong)
	}

	scenario, err := s.Scenarios.GetBySlug(ctx, params.ScenarioSlug)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseConfig(scenario)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "scenario config invalid")
	}

	maxSeed := s.MaxSeed
	if maxSeed <= 0 {
		maxSeed = 1<<31 - 1
	}
	seed := int64(0)
	if params.Seed != nil {
		seed = *params.Seed
		if seed < 0 || seed > maxSeed {
			return nil, apperr.E(apperr.KindValidation, "seed must be in [0, %d]", maxSeed)
		}
	} else {
		seed = randomSeed()
	}

	state, err := encodeState(sim.NewRunState())
	if err != nil {
		return nil, err
	}
	run := &models.Run{
		ScenarioID:   scenario.ID,
		ScenarioSlug: scenario.Slug,
		Seed:         seed,
		DurationDays: params.DurationDays,
		CurrentDay:   0,
		Status:       models.RunStatusPending,
		SimState:     state,
	}
	if err := s.Repo.InsertRun(ctx, run); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "insert run")
	}
	if s.Metrics != nil {
		s.Metrics.RunsCreated.WithLabelValues(run.ScenarioSlug).Inc()
	}
	if s.Logger != nil {
		s.Logger.Info("run created",
			zap.Uint64("run_id", run.ID),
			zap.String("scenario", run.ScenarioSlug),
			zap.Int64("seed", run.Seed),
			zap.Int("duration_days", run.DurationDays))
	}
	return run, nil
}

func (s *RunService) Get(ctx context.Context, id uint64) (*models.Run, error) {
	if s == nil || s.Repo == nil {
		return nil, apperr.E(apperr.KindStorage, "run service not ready")
	}
	run, err := s.Repo.GetRun(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "get run")
	}
	if run == nil {
		return nil, apperr.E(apperr.KindNotFound, "run not found: %d", id)
	}
	return run, nil
}

func (s *RunService) List(ctx context.Context, params repository.ListRunsParams) ([]models.Run, error) {
	if s == nil || s.Repo == nil {
		return nil, apperr.E(apperr.KindStorage, "run service not ready")
	}
	items, err := s.Repo.ListRuns(ctx, params)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "list runs")
	}
	return items, nil
}

// SimulateDay advances the run by exactly one day and persists the outcome.
// Steps of the same run are serialized; a completed run refuses further steps.
func (s *RunService) SimulateDay(ctx context.Context, id uint64) (*models.Run, *models.DailyResult, error) {
	if s == nil || s.Repo == nil {
		return nil, nil, apperr.E(apperr.KindStorage, "run service not ready")
	}
	lock := s.runLock(id)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()

	run, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if run.Status == models.RunStatusCompleted {
		return nil, nil, apperr.E(apperr.KindInvalidState, "run %d already completed at day %d", id, run.CurrentDay)
	}

	scenario, err := s.Scenarios.GetBySlug(ctx, run.ScenarioSlug)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := ParseConfig(scenario)
	if err != nil {
		return nil, nil, err
	}

	state, err := decodeState(run.SimState)
	if err != nil {
		return nil, nil, err
	}

	day := run.CurrentDay + 1
	outcome := sim.SimulateDay(cfg, run.Seed, day, state)

	encoded, err := encodeState(state)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	if run.Status == models.RunStatusPending {
		run.Status = models.RunStatusRunning
		run.StartedAt = &now
	}
	run.CurrentDay = day
	run.SimState = encoded
	if day >= run.DurationDays {
		run.Status = models.RunStatusCompleted
		run.CompletedAt = &now
	}

	result, err := buildDailyResult(run.ID, outcome)
	if err != nil {
		return nil, nil, err
	}
	terms := buildSearchTerms(run.ID, outcome)

	if err := s.Repo.SaveDay(ctx, run, result, terms); err != nil {
		if s.Metrics != nil {
			s.Metrics.SimulateErrors.Inc()
		}
		return nil, nil, apperr.Wrap(apperr.KindStorage, err, "save day %d of run %d", day, id)
	}

	if s.Metrics != nil {
		s.Metrics.DaysSimulated.WithLabelValues(run.ScenarioSlug).Inc()
		s.Metrics.SimulateDuration.Observe(time.Since(started).Seconds())
		if run.Status == models.RunStatusCompleted {
			s.Metrics.RunsCompleted.WithLabelValues(run.ScenarioSlug).Inc()
		}
	}
	if s.Logger != nil {
		s.Logger.Info("day simulated",
			zap.Uint64("run_id", run.ID),
			zap.Int("day", day),
			zap.Int64("impressions", result.Impressions),
			zap.Int64("clicks", result.Clicks),
			zap.Int64("conversions", result.Conversions),
			zap.String("status", run.Status))
	}
	return run, result, nil
}

// RunSummary aggregates a run's daily results for the results endpoint.
type RunSummary struct {
	Run    *models.Run
	Days   []models.DailyResult
	Totals RunTotals
}

type RunTotals struct {
	Impressions             int64
	Clicks                  int64
	Conversions             int64
	FraudClicks             int64
	TrackingLostConversions int64
	Cost                    decimal.Decimal
	Revenue                 decimal.Decimal
	CTR                     float64
	CVR                     float64
	CPC                     decimal.Decimal
	CPA                     decimal.Decimal
	ROAS                    decimal.Decimal
}

func (s *RunService) Results(ctx context.Context, id uint64) (*RunSummary, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	days, err := s.Repo.ListDailyResults(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "list daily results")
	}

	totals := RunTotals{Cost: decimal.Zero, Revenue: decimal.Zero}
	for _, d := range days {
		totals.Impressions += d.Impressions
		totals.Clicks += d.Clicks
		totals.Conversions += d.Conversions
		totals.FraudClicks += d.FraudClicks
		totals.TrackingLostConversions += d.TrackingLostConversions
		totals.Cost = totals.Cost.Add(d.Cost)
		totals.Revenue = totals.Revenue.Add(d.Revenue)
	}
	if totals.Impressions > 0 {
		totals.CTR = float64(totals.Clicks) / float64(totals.Impressions)
	}
	if totals.Clicks > 0 {
		totals.CVR = float64(totals.Conversions) / float64(totals.Clicks)
		totals.CPC = totals.Cost.Div(decimal.NewFromInt(totals.Clicks))
	} else {
		totals.CPC = decimal.Zero
	}
	if totals.Conversions > 0 {
		totals.CPA = totals.Cost.Div(decimal.NewFromInt(totals.Conversions))
	} else {
		totals.CPA = decimal.Zero
	}
	if totals.Cost.IsPositive() {
		totals.ROAS = totals.Revenue.Div(totals.Cost)
	} else {
		totals.ROAS = decimal.Zero
	}

	return &RunSummary{Run: run, Days: days, Totals: totals}, nil
}

func (s *RunService) runLock(id uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = map[uint64]*sync.Mutex{}
	}
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func buildDailyResult(runID uint64, out *sim.DayOutcome) (*models.DailyResult, error) {
	intentMix, err := json.Marshal(out.IntentImpressions)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "encode intent mix")
	}
	evidence, err := json.Marshal(out.DriverEvidence)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "encode driver evidence")
	}
	return &models.DailyResult{
		RunID:                   runID,
		DayNumber:               out.Day,
		Impressions:             out.Impressions,
		Clicks:                  out.Clicks,
		Conversions:             out.Conversions,
		FraudClicks:             out.FraudClicks,
		TrackingLostConversions: out.TrackingLostConversions,
		Cost:                    moneyFromFloat(out.Cost),
		Revenue:                 moneyFromFloat(out.Revenue),
		AvgPosition:             out.AvgPosition,
		AvgQualityScore:         out.AvgQualityScore,
		ImpressionShare:         out.ImpressionShare,
		LostISBudget:            out.LostISBudget,
		LostISRank:              out.LostISRank,
		ServedDemand:            out.ServedDemand,
		LostBudgetDemand:        out.LostBudgetDemand,
		LostRankDemand:          out.LostRankDemand,
		IntentMix:               intentMix,
		DriverEvidence:          evidence,
	}, nil
}

func buildSearchTerms(runID uint64, out *sim.DayOutcome) []models.SearchTerm {
	terms := make([]models.SearchTerm, 0, len(out.SearchTerms))
	for _, t := range out.SearchTerms {
		terms = append(terms, models.SearchTerm{
			RunID:          runID,
			QueryText:      t.Query,
			MatchedKeyword: t.Keyword,
			MatchType:      t.MatchType,
			Impressions:    t.Impressions,
			Clicks:         t.Clicks,
			Conversions:    t.Conversions,
			Cost:           moneyFromFloat(t.Cost),
		})
	}
	return terms
}

// moneyFromFloat rounds engine float money to 4 decimal places before it
// enters numeric storage, keeping replays byte-comparable.
func moneyFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(4)
}

func encodeState(state *sim.RunState) ([]byte, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "encode sim state")
	}
	return raw, nil
}

func decodeState(raw []byte) (*sim.RunState, error) {
	state := sim.NewRunState()
	if len(raw) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "decode sim state")
	}
	if state.Fatigue == nil {
		state.Fatigue = map[string]int64{}
	}
	if state.Quality == nil {
		state.Quality = map[string]*sim.QualityState{}
	}
	return state, nil
}

func randomSeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return time.Now().UnixNano() & 0x7FFFFFFF
	}
	return int64(binary.LittleEndian.Uint64(b[:]) & 0x7FFFFFFF)
}
