package causal

// RuleTableVersion identifies the driver catalogue and thresholds used to
// produce an analysis. Bump it whenever a rule changes so stored or cached
// analyses can be told apart from ones produced by newer rules.
const RuleTableVersion = "2025.1"

type Cause struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Explanation string `json:"explanation"`
}

// causes is the fixed driver catalogue. Analyses only ever cite entries from
// this table.
var causes = map[string]Cause{
	"competitor_bid_increase": {
		ID:          "competitor_bid_increase",
		Label:       "Competitor Bid Increase",
		Explanation: "A competitor raised their bids, increasing auction pressure.",
	},
	"quality_score_decrease": {
		ID:          "quality_score_decrease",
		Label:       "Quality Score Dropped",
		Explanation: "Your Quality Score decreased, raising your cost per click.",
	},
	"quality_score_increase": {
		ID:          "quality_score_increase",
		Label:       "Quality Score Improved",
		Explanation: "Your Quality Score increased, lowering your cost per click.",
	},
	"low_intent_query_share": {
		ID:          "low_intent_query_share",
		Label:       "More Low-Intent Queries",
		Explanation: "Broad match triggered on more general searches.",
	},
	"high_intent_query_share": {
		ID:          "high_intent_query_share",
		Label:       "More High-Intent Queries",
		Explanation: "Your keywords matched more purchase-ready searches.",
	},
	"ad_fatigue": {
		ID:          "ad_fatigue",
		Label:       "Ad Fatigue",
		Explanation: "Users saw your ads too many times, reducing engagement.",
	},
	"position_decrease": {
		ID:          "position_decrease",
		Label:       "Lower Ad Position",
		Explanation: "Your ads appeared lower on the page, reducing visibility.",
	},
	"position_increase": {
		ID:          "position_increase",
		Label:       "Higher Ad Position",
		Explanation: "Your ads appeared higher on the page, improving visibility.",
	},
	"budget_limited": {
		ID:          "budget_limited",
		Label:       "Budget Ran Out Early",
		Explanation: "Your daily budget was exhausted before the day's demand ended.",
	},
	"invalid_click_activity": {
		ID:          "invalid_click_activity",
		Label:       "Invalid Click Activity",
		Explanation: "A share of clicks came from non-converting invalid traffic.",
	},
	"tracking_loss": {
		ID:          "tracking_loss",
		Label:       "Tracking Discrepancy",
		Explanation: "Some conversions may not have been tracked properly.",
	},
	"seasonal_trend": {
		ID:          "seasonal_trend",
		Label:       "Seasonal Pattern",
		Explanation: "Normal market fluctuations for this time period.",
	},
	"market_event": {
		ID:          "market_event",
		Label:       "Market Event",
		Explanation: "A scheduled market event changed demand and bid pressure.",
	},
}

// evidenceCauses maps raw engine evidence keys to catalogue entries.
var evidenceCauses = map[string]string{
	"budget_limited": "budget_limited",
	"rank_loss":      "competitor_bid_increase",
	"fatigue":        "ad_fatigue",
	"fraud":          "invalid_click_activity",
	"tracking_loss":  "tracking_loss",
	"seasonal":       "seasonal_trend",
	"event_shock":    "market_event",
}

func CauseByID(id string) (Cause, bool) {
	c, ok := causes[id]
	return c, ok
}
