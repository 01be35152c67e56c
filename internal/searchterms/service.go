package searchterms

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"adsim/internal/apperr"
	"adsim/internal/models"
	"adsim/internal/repository"
	"adsim/internal/sim"
)

type Service struct {
	Repo   repository.Repository
	Logger *zap.Logger

	// ReportLimit is the page size used when walking a run's query log.
	ReportLimit int
}

// TermRow is one logged query with its verdict, ranked by spend.
type TermRow struct {
	QueryText      string          `json:"query_text"`
	MatchedKeyword string          `json:"matched_keyword"`
	MatchType      string          `json:"match_type"`
	Impressions    int64           `json:"impressions"`
	Clicks         int64           `json:"clicks"`
	Conversions    int64           `json:"conversions"`
	Cost           decimal.Decimal `json:"cost"`
	CTR            float64         `json:"ctr"`
	CVR            float64         `json:"cvr"`
	Category       string          `json:"category,omitempty"`
}

// NegativeSuggestion is one proposed negative keyword token, merged across
// every harmful query it would block.
type NegativeSuggestion struct {
	Token            string          `json:"token"`
	Category         string          `json:"category"`
	BlockedQueries   int             `json:"blocked_queries"`
	EstimatedSavings decimal.Decimal `json:"estimated_savings"`
}

type WastedSpend struct {
	Amount  decimal.Decimal `json:"amount"`
	Percent float64         `json:"percent"`
}

type Analysis struct {
	RunID       uint64               `json:"run_id"`
	Terms       []TermRow            `json:"terms"`
	Suggestions []NegativeSuggestion `json:"negative_suggestions"`
	WastedSpend WastedSpend          `json:"wasted_spend"`
}

// Report returns the raw query log for a run, most expensive first.
func (s *Service) Report(ctx context.Context, runID uint64, params repository.ListSearchTermsParams) ([]TermRow, error) {
	if s == nil || s.Repo == nil {
		return nil, apperr.E(apperr.KindStorage, "search terms service not ready")
	}
	terms, err := s.Repo.ListSearchTerms(ctx, runID, params)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "list search terms")
	}
	rows := make([]TermRow, 0, len(terms))
	for _, t := range terms {
		rows = append(rows, termRow(t, ""))
	}
	return rows, nil
}

// Analyze classifies every logged query, derives merged negative-keyword
// suggestions and totals the wasted spend against the run's total cost.
func (s *Service) Analyze(ctx context.Context, run *models.Run, cfg *sim.ScenarioConfig, totalCost decimal.Decimal) (*Analysis, error) {
	if s == nil || s.Repo == nil {
		return nil, apperr.E(apperr.KindStorage, "search terms service not ready")
	}
	pageSize := s.ReportLimit
	if pageSize <= 0 {
		pageSize = 500
	}
	// Storage serves at most 1000 rows per page; a larger page size would
	// make a full page look like the final one.
	if pageSize > 1000 {
		pageSize = 1000
	}
	// The wasted-spend total covers every logged query, so the log is walked
	// in full rather than capped at one page.
	var terms []models.SearchTerm
	for offset := 0; ; offset += pageSize {
		page, err := s.Repo.ListSearchTerms(ctx, run.ID, repository.ListSearchTermsParams{
			Limit:  pageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "list search terms")
		}
		terms = append(terms, page...)
		if len(page) < pageSize {
			break
		}
	}

	classifier := NewClassifier(cfg)
	out := &Analysis{
		RunID:       run.ID,
		WastedSpend: WastedSpend{Amount: decimal.Zero},
	}

	type mergedSuggestion struct {
		category string
		blocked  int
		savings  decimal.Decimal
	}
	merged := map[string]*mergedSuggestion{}

	for _, t := range terms {
		verdict := classifier.Classify(t.QueryText, t.MatchType)
		category := ""
		if verdict != nil {
			category = verdict.Category
			out.WastedSpend.Amount = out.WastedSpend.Amount.Add(t.Cost)

			m, ok := merged[verdict.Trigger]
			if !ok {
				m = &mergedSuggestion{category: verdict.Category, savings: decimal.Zero}
				merged[verdict.Trigger] = m
			}
			m.blocked++
			// Savings assume the blocked spend keeps converting at zero.
			m.savings = m.savings.Add(t.Cost)
		}
		out.Terms = append(out.Terms, termRow(t, category))
	}

	sort.SliceStable(out.Terms, func(i, j int) bool {
		return out.Terms[i].Cost.GreaterThan(out.Terms[j].Cost)
	})

	for token, m := range merged {
		out.Suggestions = append(out.Suggestions, NegativeSuggestion{
			Token:            token,
			Category:         m.category,
			BlockedQueries:   m.blocked,
			EstimatedSavings: m.savings,
		})
	}
	sort.Slice(out.Suggestions, func(i, j int) bool {
		a, b := out.Suggestions[i], out.Suggestions[j]
		if !a.EstimatedSavings.Equal(b.EstimatedSavings) {
			return a.EstimatedSavings.GreaterThan(b.EstimatedSavings)
		}
		return a.Token < b.Token
	})

	if totalCost.IsPositive() {
		pct, _ := out.WastedSpend.Amount.Div(totalCost).Mul(decimal.NewFromInt(100)).Round(1).Float64()
		out.WastedSpend.Percent = pct
	}
	return out, nil
}

func termRow(t models.SearchTerm, category string) TermRow {
	return TermRow{
		QueryText:      t.QueryText,
		MatchedKeyword: t.MatchedKeyword,
		MatchType:      t.MatchType,
		Impressions:    t.Impressions,
		Clicks:         t.Clicks,
		Conversions:    t.Conversions,
		Cost:           t.Cost,
		CTR:            t.CTR(),
		CVR:            t.CVR(),
		Category:       category,
	}
}
