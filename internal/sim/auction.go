package sim

import (
	"math"

	"adsim/internal/sim/rng"
)

// Quality score component weights: expected CTR, ad relevance, landing proxy.
const (
	qsWeightECTR      = 0.40
	qsWeightRelevance = 0.35
	qsWeightLanding   = 0.25

	qsFloor = 0.10

	minCPC     = 0.05
	cpcEpsilon = 0.01
)

// QualityState is the per-keyword learning state carried across days of a
// run. ECTRScore is a 0-1 expected-CTR component: 0.5 means performing at the
// scenario's base rate.
type QualityState struct {
	ECTRScore       float64 `json:"ectr_score"`
	ImpressionsSeen int64   `json:"impressions_seen"`
}

// learning phase: faster EMA adaptation during the first days of a run.
const (
	learningPhaseDays = 3
	emaAlphaLearning  = 0.2
	emaAlphaStable    = 0.1
)

func NewQualityState() *QualityState {
	return &QualityState{ECTRScore: 0.5}
}

// Update folds one day of realized performance into the expected-CTR score.
// Realized CTR is normalized against the base rate so that hitting baseline
// holds the score at 0.5 and outperforming raises it.
func (q *QualityState) Update(day int, impressions, clicks int64, baseCTR float64) {
	if impressions == 0 || baseCTR <= 0 {
		return
	}
	q.ImpressionsSeen += impressions
	realized := float64(clicks) / float64(impressions)
	observed := clamp01(0.5 * realized / baseCTR)
	alpha := emaAlphaStable
	if day <= learningPhaseDays {
		alpha = emaAlphaLearning
	}
	q.ECTRScore = clamp01((1-alpha)*q.ECTRScore + alpha*observed)
}

// Score composes the quality score, fatigue-adjusted. Heavy fatigue erodes
// perceived relevance slightly on top of its CTR penalty.
func (q *QualityState) Score(relevance, landing, fatigueLevel float64) float64 {
	raw := qsWeightECTR*q.ECTRScore + qsWeightRelevance*relevance + qsWeightLanding*landing
	raw *= 1 - 0.1*fatigueLevel
	if raw < qsFloor {
		return qsFloor
	}
	return clamp01(raw)
}

// DisplayScore maps the internal 0-1 score onto the 1-10 reporting scale.
func DisplayScore(internal float64) int {
	switch {
	case internal < 0.2:
		return 1
	case internal < 0.3:
		return 2
	case internal < 0.4:
		return 3
	case internal < 0.5:
		return 4
	case internal < 0.55:
		return 5
	case internal < 0.6:
		return 6
	case internal < 0.7:
		return 7
	case internal < 0.8:
		return 8
	case internal < 0.9:
		return 9
	default:
		return 10
	}
}

// AuctionOutcome is the result of one auction round for the advertiser.
type AuctionOutcome struct {
	Won      bool
	Position int     // 1..8 when won
	CPC      float64 // cost charged on click
	AdRank   float64
}

// position bands on the rank-over-threshold ratio. Deterministic and
// monotonic: a higher ratio never yields a worse slot.
var positionBands = []struct {
	minRatio float64
	position int
}{
	{2.00, 1},
	{1.70, 2},
	{1.45, 3},
	{1.25, 4},
	{1.12, 5},
	{1.05, 6},
	{1.02, 7},
}

// RunAuction resolves one round: the advertiser's ad rank against a
// competitor threshold drawn from the scenario's bid-mix distribution.
// Losing rounds are rank losses; budget exhaustion is handled by the caller
// before the auction is entered.
func RunAuction(cfg *ScenarioConfig, bid, qualityScore, bidMult float64, stream *rng.Stream) AuctionOutcome {
	adRank := bid * qualityScore
	threshold := competitorThreshold(cfg, bidMult, stream)
	if adRank < threshold {
		return AuctionOutcome{Won: false, AdRank: adRank}
	}
	ratio := adRank / threshold
	position := 8
	for _, band := range positionBands {
		if ratio >= band.minRatio {
			position = band.position
			break
		}
	}
	// Second-price: pay just enough to clear the runner-up rank, never more
	// than the bid.
	cpc := threshold/qualityScore + cpcEpsilon
	if cpc > bid {
		cpc = bid
	}
	if cpc < minCPC {
		cpc = minCPC
	}
	return AuctionOutcome{Won: true, Position: position, CPC: cpc, AdRank: adRank}
}

// competitorThreshold draws the winning competing ad rank for one round.
// Falls back to a flat mid-market threshold when the scenario carries no mix.
func competitorThreshold(cfg *ScenarioConfig, bidMult float64, stream *rng.Stream) float64 {
	if len(cfg.CompetitorMix) == 0 {
		return stream.Uniform(0.4, 1.2) * bidMult
	}
	weights := make([]float64, len(cfg.CompetitorMix))
	for i, band := range cfg.CompetitorMix {
		weights[i] = band.Weight
	}
	band := cfg.CompetitorMix[stream.WeightedPick(weights)]
	quality := band.Quality
	if quality <= 0 {
		quality = 0.6
	}
	return stream.Uniform(band.BidLow, band.BidHigh) * quality * bidMult
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
