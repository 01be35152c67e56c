package causal

import (
	"math"
	"sort"
)

const (
	// Drivers below this raw weight are considered noise and never cited.
	minEvidenceWeight = 0.05
	maxDrivers        = 3

	defaultFlatThresholdPct  = 1.0
	defaultIntentShiftPoints = 10.0
	defaultCrisisLowPct      = 35.0
	defaultRecoveryLowPct    = 30.0
	defaultEarlyWindowDays   = 3
)

// DayMetrics is the slice of a persisted day the analyzer reads. Values come
// from an immutable DailyResult; the analyzer never touches storage itself.
type DayMetrics struct {
	Day             int
	Impressions     int64
	Clicks          int64
	Conversions     int64
	Cost            float64
	AvgPosition     float64
	AvgQualityScore float64
	ImpressionShare float64

	// IntentMix is served impressions per intent level (high/medium/low).
	IntentMix map[string]int64

	// Evidence carries the raw driver weights the engine observed.
	Evidence map[string]float64
}

func (m *DayMetrics) cpc() float64 {
	if m.Clicks == 0 {
		return 0
	}
	return m.Cost / float64(m.Clicks)
}

func (m *DayMetrics) ctr() float64 {
	if m.Impressions == 0 {
		return 0
	}
	return float64(m.Clicks) / float64(m.Impressions)
}

func (m *DayMetrics) cvr() float64 {
	if m.Clicks == 0 {
		return 0
	}
	return float64(m.Conversions) / float64(m.Clicks)
}

func (m *DayMetrics) cpa() float64 {
	if m.Conversions == 0 {
		return 0
	}
	return m.Cost / float64(m.Conversions)
}

type Driver struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	ImpactPercent int    `json:"impact_percent"`
	Explanation   string `json:"explanation"`
}

type MetricChange struct {
	Previous      float64  `json:"previous"`
	Current       float64  `json:"current"`
	ChangePercent float64  `json:"change_percent"`
	Direction     string   `json:"direction"`
	Drivers       []Driver `json:"drivers"`
}

type IntentMix struct {
	HighPercent   float64 `json:"high_percent"`
	MediumPercent float64 `json:"medium_percent"`
	LowPercent    float64 `json:"low_percent"`
	HighDelta     float64 `json:"high_delta"`
	LowDelta      float64 `json:"low_delta"`
	IsSignificant bool    `json:"is_significant"`
}

type ConflictingSignal struct {
	Pattern     string `json:"pattern"`
	Explanation string `json:"explanation"`
}

type Analysis struct {
	Day              int                     `json:"day_number"`
	PreviousDay      *int                    `json:"previous_day"`
	IsFirstDay       bool                    `json:"is_first_day"`
	RuleTableVersion string                  `json:"rule_table_version"`
	Metrics          map[string]MetricChange `json:"metrics"`
	Conflicts        []ConflictingSignal     `json:"conflicting_signals"`
	IntentMix        IntentMix               `json:"intent_mix"`
	IsCrisisDay      bool                    `json:"is_crisis_day"`
	IsRecoveryDay    bool                    `json:"is_recovery_day"`
}

// Thresholds tunes the flat band, intent-shift significance and the
// crisis/recovery classification. Zero values fall back to the defaults.
type Thresholds struct {
	FlatPct           float64
	IntentShiftPoints float64
	CrisisLowPct      float64
	RecoveryLowPct    float64
	EarlyWindowDays   int
}

// Analyze compares a day against its predecessor and attributes the metric
// movement to catalogue drivers. previous is nil for day 1; following the
// baseline-less convention every metric then reads flat against itself.
func Analyze(current *DayMetrics, previous *DayMetrics, th Thresholds) *Analysis {
	flatPct := th.FlatPct
	if flatPct <= 0 {
		flatPct = defaultFlatThresholdPct
	}
	shiftPoints := th.IntentShiftPoints
	if shiftPoints <= 0 {
		shiftPoints = defaultIntentShiftPoints
	}
	crisisPct := th.CrisisLowPct
	if crisisPct <= 0 {
		crisisPct = defaultCrisisLowPct
	}
	recoveryPct := th.RecoveryLowPct
	if recoveryPct <= 0 {
		recoveryPct = defaultRecoveryLowPct
	}
	window := th.EarlyWindowDays
	if window <= 0 {
		window = defaultEarlyWindowDays
	}

	base := previous
	isFirst := previous == nil
	if isFirst {
		base = current
	}

	drivers := selectDrivers(current, base)

	out := &Analysis{
		Day:              current.Day,
		IsFirstDay:       isFirst,
		RuleTableVersion: RuleTableVersion,
		Metrics: map[string]MetricChange{
			"cpc":              metricChange(base.cpc(), current.cpc(), flatPct, drivers),
			"ctr":              metricChange(base.ctr(), current.ctr(), flatPct, drivers),
			"cvr":              metricChange(base.cvr(), current.cvr(), flatPct, drivers),
			"conversions":      metricChange(float64(base.Conversions), float64(current.Conversions), flatPct, drivers),
			"impression_share": metricChange(base.ImpressionShare, current.ImpressionShare, flatPct, drivers),
		},
	}
	if !isFirst {
		prev := previous.Day
		out.PreviousDay = &prev
	}

	out.Conflicts = detectConflicts(current, base, isFirst)
	out.IntentMix = intentMix(current, previous, shiftPoints)
	low := out.IntentMix.LowPercent
	out.IsCrisisDay = current.Day <= window && low > crisisPct
	out.IsRecoveryDay = current.Day > window && low < recoveryPct

	return out
}

func metricChange(prev, curr, flatPct float64, drivers []Driver) MetricChange {
	var changePct float64
	if prev == 0 {
		if curr > 0 {
			changePct = 100
		}
	} else {
		changePct = (curr - prev) / prev * 100
	}

	direction := "flat"
	if math.Abs(changePct) >= flatPct {
		if changePct > 0 {
			direction = "up"
		} else {
			direction = "down"
		}
	}

	mc := MetricChange{
		Previous:      round4(prev),
		Current:       round4(curr),
		ChangePercent: round2(changePct),
		Direction:     direction,
		Drivers:       drivers,
	}
	if direction == "flat" {
		mc.Drivers = nil
	}
	return mc
}

type weightedCause struct {
	id     string
	weight float64
}

// selectDrivers turns raw engine evidence plus day-over-day quality and
// position movement into the top catalogue drivers, with impact percentages
// summing to exactly 100 via largest-remainder rounding.
func selectDrivers(current, base *DayMetrics) []Driver {
	weights := map[string]float64{}
	for key, w := range current.Evidence {
		id, ok := evidenceCauses[key]
		if !ok || w < minEvidenceWeight {
			continue
		}
		if w > weights[id] {
			weights[id] = w
		}
	}

	// Quality and position movement is derived rather than logged.
	if base != current {
		if dq := current.AvgQualityScore - base.AvgQualityScore; dq <= -0.02 {
			weights["quality_score_decrease"] = math.Max(weights["quality_score_decrease"], math.Min(1, math.Abs(dq)*10))
		} else if dq >= 0.02 {
			weights["quality_score_increase"] = math.Max(weights["quality_score_increase"], math.Min(1, dq*10))
		}
		if dp := current.AvgPosition - base.AvgPosition; dp >= 0.3 {
			weights["position_decrease"] = math.Max(weights["position_decrease"], math.Min(1, dp/4))
		} else if dp <= -0.3 {
			weights["position_increase"] = math.Max(weights["position_increase"], math.Min(1, -dp/4))
		}
		lowDelta := lowIntentPercent(current.IntentMix) - lowIntentPercent(base.IntentMix)
		if lowDelta >= 5 {
			weights["low_intent_query_share"] = math.Max(weights["low_intent_query_share"], math.Min(1, lowDelta/20))
		} else if lowDelta <= -5 {
			weights["high_intent_query_share"] = math.Max(weights["high_intent_query_share"], math.Min(1, -lowDelta/20))
		}
	}

	ranked := make([]weightedCause, 0, len(weights))
	for id, w := range weights {
		ranked = append(ranked, weightedCause{id: id, weight: w})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].id < ranked[j].id
	})
	if len(ranked) > maxDrivers {
		ranked = ranked[:maxDrivers]
	}
	if len(ranked) == 0 {
		return nil
	}

	impacts := largestRemainder(ranked)
	drivers := make([]Driver, 0, len(ranked))
	for i, c := range ranked {
		def, _ := CauseByID(c.id)
		drivers = append(drivers, Driver{
			ID:            c.id,
			Label:         def.Label,
			ImpactPercent: impacts[i],
			Explanation:   def.Explanation,
		})
	}
	return drivers
}

// largestRemainder apportions 100 points across the ranked weights so the
// integer impacts always sum to exactly 100.
func largestRemainder(ranked []weightedCause) []int {
	total := 0.0
	for _, c := range ranked {
		total += c.weight
	}
	if total <= 0 {
		total = 1
	}

	impacts := make([]int, len(ranked))
	type remainder struct {
		index int
		frac  float64
	}
	remainders := make([]remainder, len(ranked))
	assigned := 0
	for i, c := range ranked {
		exact := c.weight / total * 100
		impacts[i] = int(math.Floor(exact))
		remainders[i] = remainder{index: i, frac: exact - math.Floor(exact)}
		assigned += impacts[i]
	}
	sort.Slice(remainders, func(i, j int) bool {
		if remainders[i].frac != remainders[j].frac {
			return remainders[i].frac > remainders[j].frac
		}
		return remainders[i].index < remainders[j].index
	})
	for i := 0; i < 100-assigned; i++ {
		impacts[remainders[i%len(remainders)].index]++
	}
	return impacts
}

// detectConflicts applies the fixed cross-metric patterns that indicate the
// headline numbers disagree about what happened.
func detectConflicts(current, base *DayMetrics, isFirst bool) []ConflictingSignal {
	if isFirst {
		return nil
	}
	var out []ConflictingSignal

	ctrDelta := pctChange(base.ctr(), current.ctr())
	cvrDelta := pctChange(base.cvr(), current.cvr())
	cpcDelta := pctChange(base.cpc(), current.cpc())
	cpaDelta := pctChange(base.cpa(), current.cpa())
	imprDelta := pctChange(float64(base.Impressions), float64(current.Impressions))

	if ctrDelta > 5 && cvrDelta < -3 {
		out = append(out, ConflictingSignal{
			Pattern:     "intent_mix_shift",
			Explanation: "CTR rose while CVR fell: clicks are coming from lower-intent searches.",
		})
	}
	if cpcDelta < -5 && cpaDelta > 10 {
		out = append(out, ConflictingSignal{
			Pattern:     "traffic_quality_decline",
			Explanation: "Clicks got cheaper but conversions got more expensive: traffic quality declined.",
		})
	}
	if imprDelta > 10 && cvrDelta < -3 {
		out = append(out, ConflictingSignal{
			Pattern:     "broad_reach_dilution",
			Explanation: "Reach grew faster than conversions: the added impressions convert poorly.",
		})
	}
	return out
}

func intentMix(current, previous *DayMetrics, shiftPoints float64) IntentMix {
	high, medium, low := intentShares(current.IntentMix)
	mix := IntentMix{
		HighPercent:   round1(high),
		MediumPercent: round1(medium),
		LowPercent:    round1(low),
	}
	if previous != nil {
		prevHigh, _, prevLow := intentShares(previous.IntentMix)
		mix.HighDelta = round1(high - prevHigh)
		mix.LowDelta = round1(low - prevLow)
		mix.IsSignificant = math.Abs(mix.HighDelta) > shiftPoints || math.Abs(mix.LowDelta) > shiftPoints
	}
	return mix
}

func intentShares(counts map[string]int64) (high, medium, low float64) {
	total := counts["high"] + counts["medium"] + counts["low"]
	if total == 0 {
		return 0, 0, 0
	}
	high = float64(counts["high"]) / float64(total) * 100
	medium = float64(counts["medium"]) / float64(total) * 100
	low = float64(counts["low"]) / float64(total) * 100
	return high, medium, low
}

func lowIntentPercent(counts map[string]int64) float64 {
	_, _, low := intentShares(counts)
	return low
}

func pctChange(prev, curr float64) float64 {
	if prev == 0 {
		if curr > 0 {
			return 100
		}
		return 0
	}
	return (curr - prev) / prev * 100
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
