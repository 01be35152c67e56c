package sim

import (
	"fmt"

	"adsim/internal/sim/rng"
)

// Intent levels, devices, time buckets and geos span the 3×2×4×2 = 48 segment
// grid.
const (
	IntentHigh   = "high"
	IntentMedium = "medium"
	IntentLow    = "low"

	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"

	TimeMorning   = "morning"
	TimeAfternoon = "afternoon"
	TimeEvening   = "evening"
	TimeNight     = "night"

	GeoPrimary   = "primary"
	GeoSecondary = "secondary"
)

var (
	IntentLevels = []string{IntentHigh, IntentMedium, IntentLow}
	Devices      = []string{DeviceMobile, DeviceDesktop}
	TimeBuckets  = []string{TimeMorning, TimeAfternoon, TimeEvening, TimeNight}
	Geos         = []string{GeoPrimary, GeoSecondary}
)

// Segment is one cell of the traffic grid. Pure configuration; the only
// mutable state scoped to (run, segment) is the cumulative fatigue counter,
// which lives on the run.
type Segment struct {
	Intent     string
	Device     string
	TimeBucket string
	Geo        string
}

// Key is the stable identifier used for fatigue counters and stream salts.
func (s Segment) Key() string {
	return fmt.Sprintf("%s_%s_%s_%s", s.Intent, s.Device, s.TimeBucket, s.Geo)
}

// AllSegments enumerates the grid in a fixed order. Order matters: segment
// index salts the per-segment RNG draws.
func AllSegments() []Segment {
	out := make([]Segment, 0, len(IntentLevels)*len(Devices)*len(TimeBuckets)*len(Geos))
	for _, intent := range IntentLevels {
		for _, device := range Devices {
			for _, bucket := range TimeBuckets {
				for _, geo := range Geos {
					out = append(out, Segment{Intent: intent, Device: device, TimeBucket: bucket, Geo: geo})
				}
			}
		}
	}
	return out
}

func splitShare(split map[string]float64, key string, fallback float64) float64 {
	if split == nil {
		return fallback
	}
	if v, ok := split[key]; ok {
		return v
	}
	return fallback
}

// SegmentDemand converts the scenario's daily baseline into this segment's
// eligible search volume for the day. A small uniform jitter (±5%) keeps
// volumes from being perfectly flat day to day without moving the mean.
func SegmentDemand(cfg *ScenarioConfig, seg Segment, day int, demandMult float64, stream *rng.Stream) int {
	base := float64(cfg.Demand.DailyBaseline)
	share := splitShare(cfg.Demand.IntentSplit, seg.Intent, 1.0/3) *
		splitShare(cfg.Demand.DeviceSplit, seg.Device, 0.5) *
		splitShare(cfg.Demand.GeoSplit, seg.Geo, 0.5) *
		splitShare(cfg.Demand.TimeSplit, seg.TimeBucket, 0.25)
	vol := base * share * cfg.SeasonalityMult(day) * demandMult
	vol = stream.Noise(vol, 0.05)
	if vol < 0 {
		return 0
	}
	return int(vol)
}
