package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SearchTerm is the append-only query log for a run, aggregated per distinct
// (query, matched keyword) pair. The engine adds to the counters after each
// simulated day; rows are never rewritten otherwise.
type SearchTerm struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement"`
	RunID uint64 `gorm:"not null;uniqueIndex:idx_run_query;index"`

	QueryText      string `gorm:"type:varchar(300);not null;uniqueIndex:idx_run_query"`
	MatchedKeyword string `gorm:"type:varchar(200);not null;uniqueIndex:idx_run_query"`
	MatchType      string `gorm:"type:varchar(10);not null"`

	Impressions int64           `gorm:"not null;default:0"`
	Clicks      int64           `gorm:"not null;default:0"`
	Conversions int64           `gorm:"not null;default:0"`
	Cost        decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (SearchTerm) TableName() string {
	return "search_terms"
}

func (t SearchTerm) CTR() float64 {
	if t.Impressions == 0 {
		return 0
	}
	return float64(t.Clicks) / float64(t.Impressions)
}

func (t SearchTerm) CVR() float64 {
	if t.Clicks == 0 {
		return 0
	}
	return float64(t.Conversions) / float64(t.Clicks)
}
