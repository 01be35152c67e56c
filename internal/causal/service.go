package causal

import (
	"context"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"adsim/internal/apperr"
	"adsim/internal/metrics"
	"adsim/internal/models"
	"adsim/internal/repository"
)

// Service loads persisted days and runs the analyzer over them. Daily results
// are immutable once written, so analyses are cached in a bounded LRU keyed
// by (run, day).
type Service struct {
	Repo    repository.Repository
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	Thresholds Thresholds
	cache      *lru.Cache[string, *Analysis]
}

func NewService(repo repository.Repository, logger *zap.Logger, m *metrics.Metrics, cacheSize int, th Thresholds) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = 512
	}
	cache, err := lru.New[string, *Analysis](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		Repo:       repo,
		Logger:     logger,
		Metrics:    m,
		Thresholds: th,
		cache:      cache,
	}, nil
}

func (s *Service) Analyze(ctx context.Context, runID uint64, day int) (*Analysis, error) {
	if s == nil || s.Repo == nil {
		return nil, apperr.E(apperr.KindStorage, "causal service not ready")
	}
	if s.Metrics != nil {
		s.Metrics.CausalRequests.Inc()
	}
	if day < 1 {
		return nil, apperr.E(apperr.KindValidation, "day must be >= 1")
	}

	key := fmt.Sprintf("%d:%d", runID, day)
	if cached, ok := s.cache.Get(key); ok {
		if s.Metrics != nil {
			s.Metrics.CausalCacheHits.Inc()
		}
		return cached, nil
	}
	if s.Metrics != nil {
		s.Metrics.CausalCacheMisses.Inc()
	}

	run, err := s.Repo.GetRun(ctx, runID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "get run")
	}
	if run == nil {
		return nil, apperr.E(apperr.KindNotFound, "run not found: %d", runID)
	}
	if day > run.CurrentDay {
		return nil, apperr.E(apperr.KindInvalidState, "day %d not simulated yet (run at day %d)", day, run.CurrentDay)
	}

	current, err := s.loadDay(ctx, runID, day)
	if err != nil {
		return nil, err
	}
	var previous *DayMetrics
	if day > 1 {
		previous, err = s.loadDay(ctx, runID, day-1)
		if err != nil {
			return nil, err
		}
	}

	analysis := Analyze(current, previous, s.Thresholds)
	s.cache.Add(key, analysis)
	return analysis, nil
}

func (s *Service) loadDay(ctx context.Context, runID uint64, day int) (*DayMetrics, error) {
	row, err := s.Repo.GetDailyResult(ctx, runID, day)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "get daily result")
	}
	if row == nil {
		return nil, apperr.E(apperr.KindNotFound, "day %d not found for run %d", day, runID)
	}
	return FromDailyResult(row), nil
}

// FromDailyResult projects a stored row into the analyzer's input.
func FromDailyResult(row *models.DailyResult) *DayMetrics {
	m := &DayMetrics{
		Day:             row.DayNumber,
		Impressions:     row.Impressions,
		Clicks:          row.Clicks,
		Conversions:     row.Conversions,
		Cost:            decimalFloat(row.Cost),
		AvgPosition:     row.AvgPosition,
		AvgQualityScore: row.AvgQualityScore,
		ImpressionShare: row.ImpressionShare,
		IntentMix:       map[string]int64{},
		Evidence:        map[string]float64{},
	}
	if len(row.IntentMix) > 0 {
		_ = json.Unmarshal(row.IntentMix, &m.IntentMix)
	}
	if len(row.DriverEvidence) > 0 {
		_ = json.Unmarshal(row.DriverEvidence, &m.Evidence)
	}
	return m
}

func decimalFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
