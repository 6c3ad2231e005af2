package model

import "time"

// PushSubscription holds a supervisor's browser push subscription to overage alerts.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Advisors []*Advisor `gorm:"many2many:subscription_advisor_mapping;"`
}
