package searchterms

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"adsim/internal/models"
	"adsim/internal/repository"
)

// termRepo serves a fixed query log; the analysis path only reads terms.
// Limit and offset are honored so paged walks behave like the real store.
type termRepo struct {
	repository.Repository
	terms []models.SearchTerm
	pages int
}

func (r *termRepo) ListSearchTerms(ctx context.Context, runID uint64, params repository.ListSearchTermsParams) ([]models.SearchTerm, error) {
	r.pages++
	if params.Offset >= len(r.terms) {
		return nil, nil
	}
	page := r.terms[params.Offset:]
	if params.Limit > 0 && len(page) > params.Limit {
		page = page[:params.Limit]
	}
	return append([]models.SearchTerm(nil), page...), nil
}

func money(v string) decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return d
}

func term(query, keyword, matchType string, cost string) models.SearchTerm {
	return models.SearchTerm{
		QueryText:      query,
		MatchedKeyword: keyword,
		MatchType:      matchType,
		Impressions:    100,
		Clicks:         10,
		Conversions:    1,
		Cost:           money(cost),
	}
}

func TestAnalyze_WastedSpendAndSuggestions(t *testing.T) {
	repo := &termRepo{terms: []models.SearchTerm{
		term("buy apartment dubai", "buy apartment dubai", "exact", "300"),
		term("apartment for sale dubai", "apartment for sale", "phrase", "168"),
		term("emaar apartments", "apartment for sale", "broad", "65"),
		term("free apartment listings", "apartment for sale", "broad", "40"),
		term("free property valuation", "apartment for sale", "broad", "20"),
		term("apartment jobs dubai", "apartment for sale", "broad", "7"),
	}}
	svc := &Service{Repo: repo, Logger: zap.NewNop()}
	run := &models.Run{ID: 9}

	out, err := svc.Analyze(context.Background(), run, testConfig(), money("600"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.RunID != 9 {
		t.Fatalf("run_id=%d want 9", out.RunID)
	}

	// 65 + 40 + 20 + 7 of 600 total.
	if !out.WastedSpend.Amount.Equal(money("132")) {
		t.Fatalf("wasted amount=%s want 132", out.WastedSpend.Amount)
	}
	if out.WastedSpend.Percent != 22.0 {
		t.Fatalf("wasted percent=%v want 22.0", out.WastedSpend.Percent)
	}

	if len(out.Terms) != 6 {
		t.Fatalf("term count=%d want 6", len(out.Terms))
	}
	for i := 1; i < len(out.Terms); i++ {
		if out.Terms[i].Cost.GreaterThan(out.Terms[i-1].Cost) {
			t.Fatalf("terms not sorted by cost desc at %d", i)
		}
	}
	if out.Terms[0].Category != "" {
		t.Fatalf("healthy top spender categorized %q", out.Terms[0].Category)
	}
	if out.Terms[2].Category != CategoryCompetitor {
		t.Fatalf("emaar row category=%q want %s", out.Terms[2].Category, CategoryCompetitor)
	}

	// "free" merges two queries; suggestions rank by estimated savings.
	want := []NegativeSuggestion{
		{Token: "emaar", Category: CategoryCompetitor, BlockedQueries: 1, EstimatedSavings: money("65")},
		{Token: "free", Category: CategoryLowIntent, BlockedQueries: 2, EstimatedSavings: money("60")},
		{Token: "jobs", Category: CategoryLowIntent, BlockedQueries: 1, EstimatedSavings: money("7")},
	}
	if len(out.Suggestions) != len(want) {
		t.Fatalf("suggestion count=%d want %d: %+v", len(out.Suggestions), len(want), out.Suggestions)
	}
	for i, w := range want {
		got := out.Suggestions[i]
		if got.Token != w.Token || got.Category != w.Category || got.BlockedQueries != w.BlockedQueries || !got.EstimatedSavings.Equal(w.EstimatedSavings) {
			t.Fatalf("suggestion %d = %+v want %+v", i, got, w)
		}
	}
}

func TestAnalyze_WalksLogBeyondPageSize(t *testing.T) {
	// Six logged terms with a page size of 2 forces the analysis to read
	// the whole log across pages before totalling.
	repo := &termRepo{terms: []models.SearchTerm{
		term("buy apartment dubai", "buy apartment dubai", "exact", "300"),
		term("apartment for sale dubai", "apartment for sale", "phrase", "168"),
		term("emaar apartments", "apartment for sale", "broad", "65"),
		term("free apartment listings", "apartment for sale", "broad", "40"),
		term("free property valuation", "apartment for sale", "broad", "20"),
		term("apartment jobs dubai", "apartment for sale", "broad", "7"),
	}}
	svc := &Service{Repo: repo, Logger: zap.NewNop(), ReportLimit: 2}

	out, err := svc.Analyze(context.Background(), &models.Run{ID: 3}, testConfig(), money("600"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if repo.pages < 3 {
		t.Fatalf("pages read=%d, log was not walked page by page", repo.pages)
	}
	if len(out.Terms) != 6 {
		t.Fatalf("term count=%d want all 6 across pages", len(out.Terms))
	}
	// Harmful spend beyond the first page still counts in full.
	if !out.WastedSpend.Amount.Equal(money("132")) {
		t.Fatalf("wasted amount=%s want 132", out.WastedSpend.Amount)
	}
	if out.WastedSpend.Percent != 22.0 {
		t.Fatalf("wasted percent=%v want 22.0", out.WastedSpend.Percent)
	}
}

func TestAnalyze_NoHarmfulQueries(t *testing.T) {
	repo := &termRepo{terms: []models.SearchTerm{
		term("buy apartment dubai", "buy apartment dubai", "exact", "120"),
	}}
	svc := &Service{Repo: repo, Logger: zap.NewNop()}

	out, err := svc.Analyze(context.Background(), &models.Run{ID: 1}, testConfig(), money("120"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !out.WastedSpend.Amount.IsZero() || out.WastedSpend.Percent != 0 {
		t.Fatalf("clean run reported waste: %+v", out.WastedSpend)
	}
	if len(out.Suggestions) != 0 {
		t.Fatalf("clean run produced suggestions: %+v", out.Suggestions)
	}
}
