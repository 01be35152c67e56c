package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DailyResult is one simulated day, immutable once created. Derived ratios
// (ctr, cvr, cpc, cpa, roas) are computed on read and never persisted.
type DailyResult struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	RunID     uint64 `gorm:"not null;uniqueIndex:idx_run_day;index"`
	DayNumber int    `gorm:"not null;uniqueIndex:idx_run_day"`

	Impressions int64 `gorm:"not null;default:0"`
	Clicks      int64 `gorm:"not null;default:0"`
	Conversions int64 `gorm:"not null;default:0"`

	FraudClicks             int64 `gorm:"not null;default:0"`
	TrackingLostConversions int64 `gorm:"not null;default:0"`

	Cost    decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Revenue decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	AvgPosition     float64 `gorm:"not null;default:0"`
	AvgQualityScore float64 `gorm:"not null;default:0"`

	// Unserved demand splits into two disjoint buckets: budget and rank.
	ImpressionShare float64 `gorm:"not null;default:0"`
	LostISBudget    float64 `gorm:"column:lost_is_budget;not null;default:0"`
	LostISRank      float64 `gorm:"column:lost_is_rank;not null;default:0"`

	ServedDemand     int64 `gorm:"not null;default:0"`
	LostBudgetDemand int64 `gorm:"not null;default:0"`
	LostRankDemand   int64 `gorm:"not null;default:0"`

	// IntentMix holds the day's served impressions per intent level;
	// DriverEvidence holds the raw driver weights observed while simulating.
	// Both feed the causal analysis reader.
	IntentMix      datatypes.JSON `gorm:"type:jsonb"`
	DriverEvidence datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (DailyResult) TableName() string {
	return "daily_results"
}

// CTR is clicks over impressions; 0 when there were no impressions.
func (r DailyResult) CTR() float64 {
	if r.Impressions == 0 {
		return 0
	}
	return float64(r.Clicks) / float64(r.Impressions)
}

func (r DailyResult) CVR() float64 {
	if r.Clicks == 0 {
		return 0
	}
	return float64(r.Conversions) / float64(r.Clicks)
}

func (r DailyResult) CPC() decimal.Decimal {
	if r.Clicks == 0 {
		return decimal.Zero
	}
	return r.Cost.Div(decimal.NewFromInt(r.Clicks))
}

func (r DailyResult) CPA() decimal.Decimal {
	if r.Conversions == 0 {
		return decimal.Zero
	}
	return r.Cost.Div(decimal.NewFromInt(r.Conversions))
}

func (r DailyResult) ROAS() decimal.Decimal {
	if r.Cost.IsZero() {
		return decimal.Zero
	}
	return r.Revenue.Div(r.Cost)
}
