package workforce

import (
	"context"
	"log/slog"
	"time"

	"workforce-status-backend/internal/model"
	"workforce-status-backend/internal/parse"
	"workforce-status-backend/internal/store"
)

// ScheduleLookup is the result of resolving an advisor's schedule for one day.
// Match is nil when no valid assignment covers the weekday; Active still lists the candidates.
type ScheduleLookup struct {
	Date    string                  `json:"date"`
	Weekday string                  `json:"weekday"`
	Match   *model.ShiftAssignment  `json:"match"`
	Active  []model.ShiftAssignment `json:"active"`
}

// CurrentSchedule returns the assignment covering the advisor's local day containing date.
func (e *Engine) CurrentSchedule(ctx context.Context, advisorID int64, date time.Time) (*ScheduleLookup, error) {
	day, _ := DayBounds(date, e.loc)
	return e.schedule(ctx, e.store, advisorID, day)
}

func (e *Engine) schedule(ctx context.Context, s store.Store, advisorID int64, day time.Time) (*ScheduleLookup, error) {
	date := day.Format(model.DateLayout)
	assignments, err := s.AssignmentsOn(ctx, advisorID, date)
	if err != nil {
		return nil, err
	}

	lookup := &ScheduleLookup{
		Date:    date,
		Weekday: day.Weekday().String(),
		Active:  assignments,
	}
	for i := range assignments {
		a := &assignments[i]
		days, err := parse.Weekdays(a.Weekdays)
		if err != nil {
			slog.Warn("skipping assignment with unreadable weekdays", "assignment_id", a.ID, "error", err)
			continue
		}
		for _, d := range days {
			if d == day.Weekday() {
				lookup.Match = a
				return lookup, nil
			}
		}
	}
	return lookup, nil
}
