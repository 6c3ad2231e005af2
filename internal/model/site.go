package model

import "time"

// Site represents a physical location advisors are assigned to.
type Site struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false"` // Upstream ID
	Name      string    `gorm:"size:128;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Advisors []Advisor `gorm:"foreignKey:SiteID"`
}
