package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
)

// Run owns a sequence of DailyResults. Only the run service mutates it, one
// day at a time; CurrentDay increases by exactly 1 per step and never exceeds
// DurationDays.
type Run struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ScenarioID   uint64 `gorm:"not null;index"`
	ScenarioSlug string `gorm:"type:varchar(100);not null;index"`

	Seed         int64  `gorm:"not null"`
	DurationDays int    `gorm:"not null"`
	CurrentDay   int    `gorm:"not null;default:0"`
	Status       string `gorm:"type:varchar(20);not null;default:'pending';index"`

	// SimState carries the cross-day engine state: cumulative fatigue counters
	// per segment and quality-score EMAs per keyword. Counters are monotonic
	// within a run.
	SimState datatypes.JSON `gorm:"type:jsonb"`

	StartedAt   *time.Time `gorm:"type:timestamptz"`
	CompletedAt *time.Time `gorm:"type:timestamptz"`
	CreatedAt   time.Time  `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt   time.Time  `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Run) TableName() string {
	return "runs"
}
