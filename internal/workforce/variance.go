package workforce

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Boundary selects which end of a shift is being compared.
type Boundary int

const (
	Entry Boundary = iota
	Exit
)

func (b Boundary) String() string {
	if b == Exit {
		return "exit"
	}
	return "entry"
}

const (
	LabelOnTime = "On time"
	LabelLate   = "Late"
	LabelEarly  = "Early"
	LabelAfter  = "After"
	LabelBefore = "Before"
)

// ScheduledAt combines a local calendar day with a time of day in loc.
func ScheduledAt(day time.Time, tod datatypes.Time, loc *time.Location) time.Time {
	d := time.Duration(tod)
	local := day.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		int(d/time.Hour), int(d%time.Hour/time.Minute), int(d%time.Minute/time.Second), 0, loc)
}

// Variance compares actual against the scheduled time of day on day. It returns nil and ""
// when either side is missing. Minutes are floor(seconds / 60), so the sign is kept.
func Variance(actual *time.Time, day time.Time, scheduled *datatypes.Time, b Boundary, loc *time.Location, tolerance int) (*int, string) {
	if actual == nil || scheduled == nil {
		return nil, ""
	}
	seconds := int64(actual.Sub(ScheduledAt(day, *scheduled, loc)) / time.Second)
	minutes := int(floorDiv(seconds, 60))
	return &minutes, label(minutes, b, tolerance)
}

func label(minutes int, b Boundary, tolerance int) string {
	switch {
	case minutes >= -tolerance && minutes <= tolerance:
		return LabelOnTime
	case minutes > tolerance:
		if b == Exit {
			return LabelAfter
		}
		return LabelLate
	default:
		if b == Exit {
			return LabelBefore
		}
		return LabelEarly
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// markMessage is the human readable outcome of a shift mark.
func markMessage(b Boundary, minutes *int, lbl string) string {
	prefix := "Entry recorded"
	if b == Exit {
		prefix = "Exit recorded"
	}
	if minutes == nil {
		return prefix + ". No schedule found for today."
	}

	m := *minutes
	switch lbl {
	case LabelOnTime:
		return prefix + " on time."
	case LabelLate:
		return fmt.Sprintf("%s. Arrived late (+%d min).", prefix, m)
	case LabelEarly:
		return fmt.Sprintf("%s. Arrived early (%d min).", prefix, -m)
	case LabelAfter:
		return fmt.Sprintf("%s. Left after schedule (+%d min).", prefix, m)
	default:
		return fmt.Sprintf("%s. Left before schedule (%d min).", prefix, -m)
	}
}
