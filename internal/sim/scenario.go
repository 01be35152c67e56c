package sim

import (
	"fmt"
	"strings"
)

// ScenarioConfig is the immutable market document a run simulates against.
// It is authored as a YAML seed file, stored as JSON on the scenario row and
// parsed once per simulated day. The engine never mutates it.
type ScenarioConfig struct {
	Slug        string `json:"slug" yaml:"slug"`
	Name        string `json:"name" yaml:"name"`
	Market      string `json:"market" yaml:"market"`
	Description string `json:"description" yaml:"description"`

	Demand     DemandConfig `json:"demand" yaml:"demand"`
	Rates      RatesConfig  `json:"rates" yaml:"rates"`
	CPCAnchors RatesByLevel `json:"cpc_anchors" yaml:"cpc_anchors"`

	TrackingLossRate float64 `json:"tracking_loss_rate" yaml:"tracking_loss_rate"`
	FraudRate        float64 `json:"fraud_rate" yaml:"fraud_rate"`

	RevenuePerConversion float64 `json:"revenue_per_conversion" yaml:"revenue_per_conversion"`

	Seasonality   Seasonality      `json:"seasonality" yaml:"seasonality"`
	EventShocks   []EventShock     `json:"event_shocks" yaml:"event_shocks"`
	CompetitorMix []CompetitorBand `json:"competitor_mix" yaml:"competitor_mix"`

	Advertiser AdvertiserConfig `json:"advertiser" yaml:"advertiser"`
	Lexicon    LexiconConfig    `json:"lexicon" yaml:"lexicon"`
}

// LexiconConfig supplies the query-generation vocabulary: the market's topic
// terms, competitor brand names and off-topic spillover terms. Topics default
// to the advertiser's keyword tokens when empty.
type LexiconConfig struct {
	Topics      []string `json:"topics" yaml:"topics"`
	Competitors []string `json:"competitors" yaml:"competitors"`
	OffTopic    []string `json:"off_topic" yaml:"off_topic"`
}

// DemandConfig describes daily search volume and how it splits across the
// segment axes. Split values are fractions and should sum to 1 per axis.
type DemandConfig struct {
	DailyBaseline int                `json:"daily_baseline" yaml:"daily_baseline"`
	IntentSplit   map[string]float64 `json:"intent_split" yaml:"intent_split"`
	DeviceSplit   map[string]float64 `json:"device_split" yaml:"device_split"`
	GeoSplit      map[string]float64 `json:"geo_split" yaml:"geo_split"`
	TimeSplit     map[string]float64 `json:"time_split" yaml:"time_split"`
}

// RatesByLevel maps intent level -> rate (base CTR, base CVR or CPC anchor).
type RatesByLevel map[string]float64

type RatesConfig struct {
	BaseCTRByIntent RatesByLevel `json:"base_ctr_by_intent" yaml:"base_ctr_by_intent"`
	BaseCVRByIntent RatesByLevel `json:"base_cvr_by_intent" yaml:"base_cvr_by_intent"`
}

// Seasonality scales demand by day-of-week and a coarse monthly curve.
// Day 1 of a run is treated as the first weekday of the curve.
type Seasonality struct {
	DayOfWeekFactors []float64 `json:"day_of_week_factors" yaml:"day_of_week_factors"`
	MonthlyFactors   []float64 `json:"monthly_factors" yaml:"monthly_factors"`
}

// EventShock is a scripted demand/pressure shock over an inclusive day range.
type EventShock struct {
	Name       string  `json:"name" yaml:"name"`
	FromDay    int     `json:"from_day" yaml:"from_day"`
	ToDay      int     `json:"to_day" yaml:"to_day"`
	DemandMult float64 `json:"demand_mult" yaml:"demand_mult"`
	BidMult    float64 `json:"bid_mult" yaml:"bid_mult"`
}

// CompetitorBand is one slice of the competitor bid-mix distribution: with
// probability proportional to Weight, the competing ad rank threshold for an
// auction is drawn from [BidLow, BidHigh] × Quality.
type CompetitorBand struct {
	Archetype string  `json:"archetype" yaml:"archetype"`
	Weight    float64 `json:"weight" yaml:"weight"`
	BidLow    float64 `json:"bid_low" yaml:"bid_low"`
	BidHigh   float64 `json:"bid_high" yaml:"bid_high"`
	Quality   float64 `json:"quality" yaml:"quality"`
}

// AdvertiserConfig is the simulated account: budget, keyword set and the
// static quality proxies. Keyword CRUD is out of scope, so the set rides on
// the scenario.
type AdvertiserConfig struct {
	DailyBudget  float64          `json:"daily_budget" yaml:"daily_budget"`
	Keywords     []KeywordConfig  `json:"keywords" yaml:"keywords"`
	AdRelevance  float64          `json:"ad_relevance" yaml:"ad_relevance"`
	LandingScore float64          `json:"landing_score" yaml:"landing_score"`
}

type KeywordConfig struct {
	Text       string  `json:"text" yaml:"text"`
	MatchType  string  `json:"match_type" yaml:"match_type"`
	Bid        float64 `json:"bid" yaml:"bid"`
	IsNegative bool    `json:"is_negative" yaml:"is_negative"`
}

// Validate rejects documents the engine cannot simulate. Seeding fails fast
// instead of letting a malformed scenario surface mid-run.
func (c *ScenarioConfig) Validate() error {
	if strings.TrimSpace(c.Slug) == "" {
		return fmt.Errorf("scenario: slug is required")
	}
	if c.Demand.DailyBaseline <= 0 {
		return fmt.Errorf("scenario %s: demand.daily_baseline must be positive", c.Slug)
	}
	if c.TrackingLossRate < 0 || c.TrackingLossRate > 1 {
		return fmt.Errorf("scenario %s: tracking_loss_rate out of [0,1]", c.Slug)
	}
	if c.FraudRate < 0 || c.FraudRate > 1 {
		return fmt.Errorf("scenario %s: fraud_rate out of [0,1]", c.Slug)
	}
	if c.Advertiser.DailyBudget <= 0 {
		return fmt.Errorf("scenario %s: advertiser.daily_budget must be positive", c.Slug)
	}
	active := 0
	for i, kw := range c.Advertiser.Keywords {
		if strings.TrimSpace(kw.Text) == "" {
			return fmt.Errorf("scenario %s: keyword %d has empty text", c.Slug, i)
		}
		switch kw.MatchType {
		case MatchExact, MatchPhrase, MatchBroad:
		default:
			return fmt.Errorf("scenario %s: keyword %q has unknown match type %q", c.Slug, kw.Text, kw.MatchType)
		}
		if !kw.IsNegative {
			if kw.Bid <= 0 {
				return fmt.Errorf("scenario %s: keyword %q needs a positive bid", c.Slug, kw.Text)
			}
			active++
		}
	}
	if active == 0 {
		return fmt.Errorf("scenario %s: at least one non-negative keyword required", c.Slug)
	}
	for i, shock := range c.EventShocks {
		if shock.FromDay > shock.ToDay {
			return fmt.Errorf("scenario %s: event shock %d has inverted day range", c.Slug, i)
		}
	}
	return nil
}

// SeasonalityMult returns the demand multiplier for a 1-indexed day.
func (c *ScenarioConfig) SeasonalityMult(day int) float64 {
	mult := 1.0
	if n := len(c.Seasonality.DayOfWeekFactors); n > 0 {
		mult *= c.Seasonality.DayOfWeekFactors[(day-1)%n]
	}
	if n := len(c.Seasonality.MonthlyFactors); n > 0 {
		mult *= c.Seasonality.MonthlyFactors[((day-1)/30)%n]
	}
	return mult
}

// EventMults returns the (demand, bid) multipliers of the shock covering the
// day, or (1, 1) when none applies. Shocks do not stack; the first match wins.
func (c *ScenarioConfig) EventMults(day int) (demand, bid float64) {
	for _, shock := range c.EventShocks {
		if day >= shock.FromDay && day <= shock.ToDay {
			d, b := shock.DemandMult, shock.BidMult
			if d == 0 {
				d = 1
			}
			if b == 0 {
				b = 1
			}
			return d, b
		}
	}
	return 1, 1
}
