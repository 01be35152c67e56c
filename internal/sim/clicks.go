package sim

import "adsim/internal/sim/rng"

// Position CTR multipliers, slot 1 highest. Slots beyond 8 never serve.
var positionMultipliers = [9]float64{0, 1.0, 0.85, 0.70, 0.55, 0.40, 0.30, 0.22, 0.15}

func PositionMultiplier(position int) float64 {
	if position < 1 || position > 8 {
		return 0
	}
	return positionMultipliers[position]
}

const (
	// Cumulative impressions at which fatigue reaches half its cap.
	fatigueScale = 1200.0
	// Fatigue approaches but never reaches this cap, so the level stays
	// strictly increasing at any counter a run can accumulate.
	fatigueCap = 0.95
)

// FatigueLevel maps a cumulative (run, segment) impression counter onto
// [0, fatigueCap). Strictly increasing in the counter and saturating, so
// early impressions fatigue fastest. The counter itself never decreases
// within a run.
func FatigueLevel(cumImpressions int64) float64 {
	if cumImpressions <= 0 {
		return 0
	}
	cum := float64(cumImpressions)
	return fatigueCap * cum / (cum + fatigueScale)
}

// EffectiveCTR modulates the segment's base CTR by auction position, quality
// score and fatigue, with multiplicative noise. Fatigue at saturation halves
// CTR.
func EffectiveCTR(baseCTR float64, position int, qualityScore, fatigueLevel float64, noise *rng.Stream) float64 {
	ctr := baseCTR *
		PositionMultiplier(position) *
		(0.6 + 0.8*qualityScore) *
		(1 - 0.5*fatigueLevel)
	return clamp01(noise.Noise(ctr, 0.1))
}

// EffectiveCVR modulates the base CVR by landing quality and fatigue. Fatigue
// hits conversions more gently than clicks.
func EffectiveCVR(baseCVR, landingScore, fatigueLevel float64, noise *rng.Stream) float64 {
	cvr := baseCVR *
		(0.6 + 0.6*landingScore) *
		(1 - 0.3*fatigueLevel)
	return clamp01(noise.Noise(cvr, 0.1))
}

// Counter accumulates Bernoulli outcomes without the systematic bias of
// flooring expected values: each trial is an independent draw on its stream,
// so low-volume days still round correctly in expectation.
type Counter struct {
	stream *rng.Stream
	count  int64
}

func NewCounter(stream *rng.Stream) *Counter {
	return &Counter{stream: stream}
}

// Trial records one Bernoulli draw with probability p and reports the hit.
func (c *Counter) Trial(p float64) bool {
	if c.stream.Bernoulli(p) {
		c.count++
		return true
	}
	return false
}

func (c *Counter) Count() int64 { return c.count }
