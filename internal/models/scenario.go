package models

import (
	"time"

	"gorm.io/datatypes"
)

// Scenario is an immutable market configuration. The full document (demand
// splits, rate anchors, seasonality, event shocks, competitor mix, advertiser
// setup) lives in Config and is parsed by the engine; it is written once by
// the seeder and never mutated by a run.
type Scenario struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	Slug        string `gorm:"type:varchar(100);not null;uniqueIndex"`
	Name        string `gorm:"type:varchar(200);not null"`
	Market      string `gorm:"type:varchar(100)"`
	Description string `gorm:"type:text"`

	Config datatypes.JSON `gorm:"type:jsonb;not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Scenario) TableName() string {
	return "scenarios"
}
