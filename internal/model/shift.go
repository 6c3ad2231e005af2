package model

import (
	"time"

	"gorm.io/datatypes"
)

// DateLayout is the calendar date format used for shift records and assignments.
const DateLayout = "2006-01-02"

// ShiftRecord holds one advisor's actual and scheduled shift boundaries for a calendar date.
type ShiftRecord struct {
	ID                   int64           `gorm:"primaryKey" json:"id"`
	AdvisorID            int64           `gorm:"not null;uniqueIndex:ux_shift_advisor_date" json:"advisor_id"`
	Date                 string          `gorm:"size:10;not null;uniqueIndex:ux_shift_advisor_date" json:"date"` // YYYY-MM-DD
	EntryAt              *time.Time      `json:"entry_at"`
	ExitAt               *time.Time      `json:"exit_at"`
	ScheduledEntry       *datatypes.Time `json:"scheduled_entry"`
	ScheduledExit        *datatypes.Time `json:"scheduled_exit"`
	EntryVarianceMinutes *int            `json:"entry_variance_minutes"`
	EntryLabel           *string         `gorm:"size:16" json:"entry_label"`
	ExitVarianceMinutes  *int            `json:"exit_variance_minutes"`
	ExitLabel            *string         `gorm:"size:16" json:"exit_label"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// ShiftAssignment is a schedule a leader assigned to an advisor. It is owned by the
// scheduling service and only read here.
type ShiftAssignment struct {
	ID           int64          `gorm:"primaryKey" json:"id"`
	LeaderID     int64          `gorm:"index" json:"leader_id"`
	AdvisorID    int64          `gorm:"not null;index" json:"advisor_id"`
	AdvisorName  string         `gorm:"size:256" json:"advisor_name"`
	AdvisorRole  string         `gorm:"size:128" json:"advisor_role"`
	StartDate    string         `gorm:"size:10;not null" json:"start_date"`
	EndDate      *string        `gorm:"size:10" json:"end_date"`
	EntryTime    datatypes.Time `gorm:"not null" json:"entry_time"`
	ExitTime     datatypes.Time `gorm:"not null" json:"exit_time"`
	Weekdays     string         `gorm:"size:256" json:"weekdays"` // JSON list or comma separated day names
	ExtraMinutes int            `json:"extra_minutes"`
	Reason       string         `gorm:"size:512" json:"reason"`
	CreatedAt    time.Time      `json:"created_at"`
}
