package model

import (
	"time"

	"gorm.io/datatypes"
)

// StateOccupancy is one interval during which an advisor occupied a state kind.
// EndedAt is nil while the interval is open; at most one open row exists per advisor.
type StateOccupancy struct {
	ID                int64             `gorm:"primaryKey"`
	AdvisorID         int64             `gorm:"not null;index:ix_occupancy_advisor_started,priority:1"`
	StateKindID       int64             `gorm:"not null;index"`
	StartedAt         time.Time         `gorm:"not null;index:ix_occupancy_advisor_started,priority:2"`
	EndedAt           *time.Time        `gorm:"index"`
	Metadata          datatypes.JSONMap `gorm:"type:json"`
	DurationSeconds   int64             `gorm:"not null"`
	LimitMinutes      *int
	DifferenceMinutes *int

	// Associations
	StateKind StateKind `gorm:"foreignKey:StateKindID"`
}

// IsOpen reports whether the occupancy has not been closed yet.
func (o *StateOccupancy) IsOpen() bool {
	return o.EndedAt == nil
}
