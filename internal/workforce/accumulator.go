package workforce

import (
	"context"
	"time"

	"workforce-status-backend/internal/model"
)

// Interval is a span of time; a nil End means still open.
type Interval struct {
	Start time.Time
	End   *time.Time
}

// OverlapMinutes sums, per interval, the whole minutes of overlap between [Start, End or now]
// and [start, end). Each interval is floored on its own, so partial minutes never add up.
func OverlapMinutes(intervals []Interval, start, end, now time.Time) int {
	total := 0
	for _, iv := range intervals {
		if !iv.Start.Before(end) {
			continue
		}
		ivEnd := now
		if iv.End != nil {
			ivEnd = *iv.End
		}

		from := iv.Start
		if start.After(from) {
			from = start
		}
		to := ivEnd
		if end.Before(to) {
			to = end
		}
		if !to.After(from) {
			continue
		}
		total += int(to.Sub(from) / time.Minute)
	}
	return total
}

// DayBounds returns the local calendar day containing t as [midnight, next midnight).
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// ParseDate parses a YYYY-MM-DD date as local midnight in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(model.DateLayout, date, loc)
}

func intervalsOf(occs []model.StateOccupancy, stateKindID int64) []Interval {
	var out []Interval
	for _, o := range occs {
		if o.StateKindID == stateKindID {
			out = append(out, Interval{Start: o.StartedAt, End: o.EndedAt})
		}
	}
	return out
}

// MinutesUsed returns the whole minutes the advisor spent in the kind during [start, end).
// Open occupancies count up to now.
func (e *Engine) MinutesUsed(ctx context.Context, advisorID, stateKindID int64, start, end time.Time) (int, error) {
	return e.minutesUsed(ctx, advisorID, stateKindID, start, end, e.now())
}

// MinutesUsedToday is MinutesUsed over the advisor's current local day.
func (e *Engine) MinutesUsedToday(ctx context.Context, advisorID, stateKindID int64) (int, error) {
	now := e.now()
	start, end := DayBounds(now, e.loc)
	return e.minutesUsed(ctx, advisorID, stateKindID, start, end, now)
}

func (e *Engine) minutesUsed(ctx context.Context, advisorID, stateKindID int64, start, end, now time.Time) (int, error) {
	occs, err := e.store.OccupanciesOverlapping(ctx, advisorID, start, end)
	if err != nil {
		return 0, err
	}
	return OverlapMinutes(intervalsOf(occs, stateKindID), start, end, now), nil
}
