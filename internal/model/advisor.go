package model

import "time"

// Advisor is a tracked worker. The ID is assigned by the upstream directory and is stable across systems.
type Advisor struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false"` // Upstream ID
	Name      string `gorm:"size:256"`
	Role      string `gorm:"size:128"`
	SiteID    *int64 `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Site *Site `gorm:"constraint:OnDelete:SET NULL"`
}
