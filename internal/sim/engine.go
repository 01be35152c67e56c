package sim

import (
	"sort"

	"adsim/internal/sim/rng"
)

// RunState is the engine state carried between days of a run: cumulative
// fatigue counters per segment and quality-score learning state per keyword.
// Fatigue counters are monotonically non-decreasing for the life of the run.
type RunState struct {
	Fatigue map[string]int64         `json:"fatigue"`
	Quality map[string]*QualityState `json:"quality"`
}

func NewRunState() *RunState {
	return &RunState{
		Fatigue: map[string]int64{},
		Quality: map[string]*QualityState{},
	}
}

func (s *RunState) quality(keyword string) *QualityState {
	q, ok := s.Quality[keyword]
	if !ok {
		q = NewQualityState()
		s.Quality[keyword] = q
	}
	return q
}

// SearchTermOutcome is one distinct (query, keyword) aggregate for the day.
type SearchTermOutcome struct {
	Query       string
	Keyword     string
	MatchType   string
	Impressions int64
	Clicks      int64
	Conversions int64
	Cost        float64
}

// DayOutcome is everything one simulated day produced. The service layer
// turns it into a DailyResult row plus search-term log updates.
type DayOutcome struct {
	Day int

	Impressions             int64
	Clicks                  int64
	Conversions             int64
	FraudClicks             int64
	TrackingLostConversions int64

	Cost    float64
	Revenue float64

	AvgPosition     float64
	AvgQualityScore float64

	// Eligible demand partitions into served + lost-to-budget + lost-to-rank;
	// the buckets are disjoint by construction.
	ServedDemand     int64
	LostBudgetDemand int64
	LostRankDemand   int64
	ImpressionShare  float64
	LostISBudget     float64
	LostISRank       float64

	// Served impressions per intent level; feeds the intent-mix analysis.
	IntentImpressions map[string]int64

	// Raw driver weights observed during simulation; feeds causal analysis.
	DriverEvidence map[string]float64

	SearchTerms []SearchTermOutcome
}

// SimulateDay runs one advertising day. Pure over (cfg, seed, day) plus the
// carried state: identical inputs reproduce identical outcomes bit for bit.
// state is advanced in place (fatigue counters, quality EMAs).
func SimulateDay(cfg *ScenarioConfig, seed int64, day int, state *RunState) *DayOutcome {
	lex := NewLexicon(cfg)
	matcher := NewMatcher(cfg.Advertiser.Keywords)
	demandMult, bidMult := cfg.EventMults(day)

	out := &DayOutcome{
		Day:               day,
		IntentImpressions: map[string]int64{},
		DriverEvidence:    map[string]float64{},
	}

	type keywordDay struct {
		impressions int64
		clicks      int64
	}
	perKeyword := map[string]*keywordDay{}
	terms := map[string]*SearchTermOutcome{}

	budget := cfg.Advertiser.DailyBudget
	spent := 0.0
	budgetExhausted := false

	var positionSum, qsSum, fatigueSum float64
	var eligible int64

	for segIdx, seg := range AllSegments() {
		salt := uint64(segIdx + 1)
		demandStream := rng.NewSalted(seed, day, rng.StreamDemand, salt)
		queryStream := rng.NewSalted(seed, day, rng.StreamQueryText, salt)
		bidStream := rng.NewSalted(seed, day, rng.StreamCompetitorBid, salt)
		clickStream := rng.NewSalted(seed, day, rng.StreamClick, salt)
		convStream := rng.NewSalted(seed, day, rng.StreamConversion, salt)
		fraudStream := rng.NewSalted(seed, day, rng.StreamFraud, salt)
		trackStream := rng.NewSalted(seed, day, rng.StreamTracking, salt)
		noiseCTR := rng.NewSalted(seed, day, rng.StreamNoiseCTR, salt)
		noiseCVR := rng.NewSalted(seed, day, rng.StreamNoiseCVR, salt)

		demand := SegmentDemand(cfg, seg, day, demandMult, demandStream)
		if demand == 0 {
			continue
		}
		// Fatigue for the whole segment pass comes from the counter as of now;
		// earlier segments of the same day already contributed.
		fatigue := FatigueLevel(state.Fatigue[seg.Key()])
		baseCTR := cfg.Rates.BaseCTRByIntent[seg.Intent]
		baseCVR := cfg.Rates.BaseCVRByIntent[seg.Intent]

		clicker := NewCounter(clickStream)
		converter := NewCounter(convStream)

		var segmentImpressions int64

		for i := 0; i < demand; i++ {
			query := lex.Query(seg.Intent, queryStream)
			match := matcher.Resolve(query)
			if match == nil {
				continue
			}
			eligible++

			if budgetExhausted {
				out.LostBudgetDemand++
				continue
			}

			qState := state.quality(match.Keyword.Text)
			qs := qState.Score(cfg.Advertiser.AdRelevance, cfg.Advertiser.LandingScore, fatigue)
			auction := RunAuction(cfg, match.Keyword.Bid, qs, bidMult, bidStream)
			if !auction.Won {
				out.LostRankDemand++
				continue
			}

			out.ServedDemand++
			out.Impressions++
			segmentImpressions++
			out.IntentImpressions[seg.Intent]++
			positionSum += float64(auction.Position)
			qsSum += qs
			fatigueSum += fatigue

			kd := perKeyword[match.Keyword.Text]
			if kd == nil {
				kd = &keywordDay{}
				perKeyword[match.Keyword.Text] = kd
			}
			kd.impressions++

			termKey := query + "\x00" + match.Keyword.Text
			term := terms[termKey]
			if term == nil {
				term = &SearchTermOutcome{Query: query, Keyword: match.Keyword.Text, MatchType: match.MatchType}
				terms[termKey] = term
			}
			term.Impressions++

			ctr := EffectiveCTR(baseCTR, auction.Position, qs, fatigue, noiseCTR)
			if !clicker.Trial(ctr) {
				continue
			}
			out.Clicks++
			kd.clicks++
			term.Clicks++
			out.Cost += auction.CPC
			term.Cost += auction.CPC
			spent += auction.CPC
			if spent >= budget {
				budgetExhausted = true
			}

			if fraudStream.Bernoulli(cfg.FraudRate) {
				out.FraudClicks++
				continue
			}
			cvr := EffectiveCVR(baseCVR, cfg.Advertiser.LandingScore, fatigue, noiseCVR)
			if !converter.Trial(cvr) {
				continue
			}
			if trackStream.Bernoulli(cfg.TrackingLossRate) {
				out.TrackingLostConversions++
				continue
			}
			out.Conversions++
			term.Conversions++
			out.Revenue += cfg.RevenuePerConversion
		}

		state.Fatigue[seg.Key()] += segmentImpressions
	}

	if out.Impressions > 0 {
		out.AvgPosition = positionSum / float64(out.Impressions)
		out.AvgQualityScore = qsSum / float64(out.Impressions)
	}
	if eligible > 0 {
		out.ImpressionShare = float64(out.ServedDemand) / float64(eligible)
		out.LostISBudget = float64(out.LostBudgetDemand) / float64(eligible)
		out.LostISRank = float64(out.LostRankDemand) / float64(eligible)
	}

	// Fold the day back into keyword learning state, in stable order.
	kwTexts := make([]string, 0, len(perKeyword))
	for text := range perKeyword {
		kwTexts = append(kwTexts, text)
	}
	sort.Strings(kwTexts)
	for _, text := range kwTexts {
		kd := perKeyword[text]
		intentCTR := cfg.Rates.BaseCTRByIntent[IntentMedium]
		if intentCTR <= 0 {
			intentCTR = 0.03
		}
		state.quality(text).Update(day, kd.impressions, kd.clicks, intentCTR)
	}

	out.DriverEvidence = buildEvidence(cfg, day, out, eligible, fatigueSum)

	out.SearchTerms = make([]SearchTermOutcome, 0, len(terms))
	for _, term := range terms {
		out.SearchTerms = append(out.SearchTerms, *term)
	}
	sort.Slice(out.SearchTerms, func(i, j int) bool {
		if out.SearchTerms[i].Query != out.SearchTerms[j].Query {
			return out.SearchTerms[i].Query < out.SearchTerms[j].Query
		}
		return out.SearchTerms[i].Keyword < out.SearchTerms[j].Keyword
	})

	return out
}

// buildEvidence converts raw day outcomes into driver weights. The causal
// reader combines these with day-over-day deltas; weights here are fractions
// in [0, 1], not yet normalized percentages.
func buildEvidence(cfg *ScenarioConfig, day int, out *DayOutcome, eligible int64, fatigueSum float64) map[string]float64 {
	ev := map[string]float64{}
	if eligible > 0 {
		if out.LostBudgetDemand > 0 {
			ev["budget_limited"] = float64(out.LostBudgetDemand) / float64(eligible)
		}
		if out.LostRankDemand > 0 {
			ev["rank_loss"] = float64(out.LostRankDemand) / float64(eligible)
		}
	}
	if out.Impressions > 0 {
		avgFatigue := fatigueSum / float64(out.Impressions)
		if avgFatigue > 0.05 {
			ev["fatigue"] = avgFatigue
		}
	}
	if out.FraudClicks > 0 && out.Clicks > 0 {
		ev["fraud"] = float64(out.FraudClicks) / float64(out.Clicks)
	}
	if total := out.Conversions + out.TrackingLostConversions; out.TrackingLostConversions > 0 && total > 0 {
		ev["tracking_loss"] = float64(out.TrackingLostConversions) / float64(total)
	}
	if day > 1 {
		delta := cfg.SeasonalityMult(day) - cfg.SeasonalityMult(day-1)
		if delta > 0.02 || delta < -0.02 {
			ev["seasonal"] = clamp01(0.5 * absFloat(delta))
		}
	}
	if demandMult, bidMult := cfg.EventMults(day); demandMult != 1 || bidMult != 1 {
		ev["event_shock"] = clamp01(absFloat(demandMult-1) + absFloat(bidMult-1))
	}
	return ev
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
