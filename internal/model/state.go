package model

import "time"

const (
	DefaultStateColor     = "#6b7280"
	DefaultStateSortOrder = 100
)

// StateKind is a catalog entry describing an activity state an advisor can be in.
type StateKind struct {
	ID           int64  `gorm:"primaryKey"`
	Slug         string `gorm:"uniqueIndex;size:64;not null"`
	Name         string `gorm:"size:128;not null"`
	Color        string `gorm:"size:16;not null"`
	Icon         string `gorm:"size:64"`
	SortOrder    int    `gorm:"not null"`
	Active       bool   `gorm:"not null"`
	LimitMinutes *int   // nil means no daily cap
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AdvisorStateConfig is a per-advisor override for a state kind. It never carries its own limit.
type AdvisorStateConfig struct {
	ID            int64   `gorm:"primaryKey"`
	AdvisorID     int64   `gorm:"uniqueIndex:ux_advisor_state_config;not null"`
	StateKindID   int64   `gorm:"uniqueIndex:ux_advisor_state_config;not null"`
	Active        bool    `gorm:"not null"`
	ColorOverride *string `gorm:"size:16"`
	UpdatedAt     time.Time
}
