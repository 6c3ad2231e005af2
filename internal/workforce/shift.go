package workforce

import (
	"context"
	"errors"
	"time"

	"workforce-status-backend/internal/model"
	"workforce-status-backend/internal/store"
)

// MarkResult is the outcome of an entry or exit mark.
type MarkResult struct {
	Record  *model.ShiftRecord
	Created bool
	Message string
}

// MarkEntry records the advisor's clock-in for today. A second entry fails with
// ErrAlreadyMarked unless forced, in which case the timestamp and variance are recomputed.
func (e *Engine) MarkEntry(ctx context.Context, advisorID int64, forced bool) (*MarkResult, error) {
	return e.mark(ctx, advisorID, Entry, forced)
}

// MarkExit records the advisor's clock-out for today. It needs an entry first.
func (e *Engine) MarkExit(ctx context.Context, advisorID int64, forced bool) (*MarkResult, error) {
	return e.mark(ctx, advisorID, Exit, forced)
}

func (e *Engine) mark(ctx context.Context, advisorID int64, b Boundary, forced bool) (*MarkResult, error) {
	unlock := e.locks.Lock(advisorID)
	defer unlock()

	now := e.now()
	day, _ := DayBounds(now, e.loc)
	date := day.Format(model.DateLayout)
	result := &MarkResult{}

	err := e.store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.LockAdvisor(ctx, advisorID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrAdvisorNotFound
			}
			return err
		}

		rec, err := tx.FindShiftRecord(ctx, advisorID, date)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if b == Exit {
				return ErrNoEntryYet
			}
			rec = &model.ShiftRecord{AdvisorID: advisorID, Date: date}
			result.Created = true
		case err != nil:
			return err
		}

		if b == Exit && rec.EntryAt == nil {
			return ErrNoEntryYet
		}
		if !forced && markedAt(rec, b) != nil {
			return ErrAlreadyMarked
		}

		if err := e.backfillSchedule(ctx, tx, rec, day); err != nil {
			return err
		}

		stamp := now
		if b == Entry {
			rec.EntryAt = &stamp
			rec.EntryVarianceMinutes, rec.EntryLabel = e.variance(rec.EntryAt, day, rec, b)
		} else {
			rec.ExitAt = &stamp
			rec.ExitVarianceMinutes, rec.ExitLabel = e.variance(rec.ExitAt, day, rec, b)
		}

		if err := tx.SaveShiftRecord(ctx, rec); err != nil {
			return err
		}
		result.Record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	minutes, lbl := boundaryResult(result.Record, b)
	result.Message = markMessage(b, minutes, lbl)
	if lbl == "" {
		lbl = "unscheduled"
	}
	shiftMarksTotal.WithLabelValues(b.String(), lbl).Inc()
	return result, nil
}

// backfillSchedule copies today's scheduled boundaries from the matching assignment when the
// record does not have them yet.
func (e *Engine) backfillSchedule(ctx context.Context, tx store.Store, rec *model.ShiftRecord, day time.Time) error {
	if rec.ScheduledEntry != nil && rec.ScheduledExit != nil {
		return nil
	}
	lookup, err := e.schedule(ctx, tx, rec.AdvisorID, day)
	if err != nil {
		return err
	}
	if lookup.Match == nil {
		return nil
	}
	if rec.ScheduledEntry == nil {
		t := lookup.Match.EntryTime
		rec.ScheduledEntry = &t
	}
	if rec.ScheduledExit == nil {
		t := lookup.Match.ExitTime
		rec.ScheduledExit = &t
	}
	return nil
}

func (e *Engine) variance(actual *time.Time, day time.Time, rec *model.ShiftRecord, b Boundary) (*int, *string) {
	scheduled := rec.ScheduledEntry
	if b == Exit {
		scheduled = rec.ScheduledExit
	}
	minutes, lbl := Variance(actual, day, scheduled, b, e.loc, e.tolerance)
	if lbl == "" {
		return nil, nil
	}
	return minutes, &lbl
}

func markedAt(rec *model.ShiftRecord, b Boundary) *time.Time {
	if b == Exit {
		return rec.ExitAt
	}
	return rec.EntryAt
}

func boundaryResult(rec *model.ShiftRecord, b Boundary) (*int, string) {
	minutes, lbl := rec.EntryVarianceMinutes, rec.EntryLabel
	if b == Exit {
		minutes, lbl = rec.ExitVarianceMinutes, rec.ExitLabel
	}
	if lbl == nil {
		return minutes, ""
	}
	return minutes, *lbl
}
