package workforce

import (
	"context"
	"time"

	"workforce-status-backend/internal/model"
)

// Status is the advisor's currently open state.
type Status struct {
	OccupancyID    int64     `json:"occupancy_id"`
	StateKindID    int64     `json:"state_kind_id"`
	Slug           string    `json:"slug"`
	Name           string    `json:"name"`
	Color          string    `json:"color"`
	Icon           string    `json:"icon"`
	StartedAt      time.Time `json:"started_at"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
}

// BreakdownEntry is one occupancy started on the requested day.
type BreakdownEntry struct {
	OccupancyID    int64      `json:"occupancy_id"`
	Slug           string     `json:"slug"`
	Name           string     `json:"name"`
	Color          string     `json:"color"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at"`
	ElapsedSeconds int64      `json:"elapsed_seconds"`
	Open           bool       `json:"open"`
}

// Breakdown lists a day's occupancies in start order.
type Breakdown struct {
	Date         string           `json:"date"`
	Entries      []BreakdownEntry `json:"entries"`
	TotalSeconds int64            `json:"total_seconds"`
}

// HistoryEntry is an occupancy overlapping the requested day with the fields stored at close.
type HistoryEntry struct {
	OccupancyID       int64          `json:"occupancy_id"`
	Slug              string         `json:"slug"`
	Name              string         `json:"name"`
	StartedAt         time.Time      `json:"started_at"`
	EndedAt           *time.Time     `json:"ended_at"`
	DurationSeconds   int64          `json:"duration_seconds"`
	LimitMinutes      *int           `json:"limit_minutes"`
	DifferenceMinutes *int           `json:"difference_minutes"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// KindSummary is the advisor's budget for one active state kind today.
type KindSummary struct {
	StateKindID      int64       `json:"state_kind_id"`
	Slug             string      `json:"slug"`
	Name             string      `json:"name"`
	Color            string      `json:"color"`
	Icon             string      `json:"icon"`
	SortOrder        int         `json:"sort_order"`
	LimitMinutes     *int        `json:"limit_minutes"`
	LimitSource      LimitSource `json:"limit_source"`
	UsedMinutes      int         `json:"used_minutes"`
	RemainingMinutes *int        `json:"remaining_minutes"`
}

// Overage is an open occupancy whose kind has already used more than its limit today.
type Overage struct {
	Occupancy    model.StateOccupancy
	LimitMinutes int
	UsedMinutes  int
}

// OverMinutes is how far past the limit the advisor is.
func (o Overage) OverMinutes() int {
	return o.UsedMinutes - o.LimitMinutes
}

// CurrentStatus returns the advisor's open state, or nil when none is open.
func (e *Engine) CurrentStatus(ctx context.Context, advisorID int64) (*Status, error) {
	occ, err := openOccupancy(ctx, e.store, advisorID)
	if err != nil || occ == nil {
		return nil, err
	}
	now := e.now()
	return &Status{
		OccupancyID:    occ.ID,
		StateKindID:    occ.StateKindID,
		Slug:           occ.StateKind.Slug,
		Name:           occ.StateKind.Name,
		Color:          e.resolver.Color(ctx, advisorID, &occ.StateKind),
		Icon:           occ.StateKind.Icon,
		StartedAt:      occ.StartedAt,
		ElapsedSeconds: elapsedSeconds(occ, now),
	}, nil
}

// DailyBreakdown lists the occupancies that started on the advisor's local day containing date.
func (e *Engine) DailyBreakdown(ctx context.Context, advisorID int64, date time.Time) (*Breakdown, error) {
	start, end := DayBounds(date, e.loc)
	occs, err := e.store.OccupanciesStartedBetween(ctx, advisorID, start, end)
	if err != nil {
		return nil, err
	}

	now := e.now()
	out := &Breakdown{Date: start.Format(model.DateLayout), Entries: make([]BreakdownEntry, 0, len(occs))}
	for i := range occs {
		occ := &occs[i]
		elapsed := elapsedSeconds(occ, now)
		out.Entries = append(out.Entries, BreakdownEntry{
			OccupancyID:    occ.ID,
			Slug:           occ.StateKind.Slug,
			Name:           occ.StateKind.Name,
			Color:          e.resolver.Color(ctx, advisorID, &occ.StateKind),
			StartedAt:      occ.StartedAt,
			EndedAt:        occ.EndedAt,
			ElapsedSeconds: elapsed,
			Open:           occ.IsOpen(),
		})
		out.TotalSeconds += elapsed
	}
	return out, nil
}

// History lists every occupancy overlapping the advisor's local day with its stored totals.
func (e *Engine) History(ctx context.Context, advisorID int64, date time.Time) ([]HistoryEntry, error) {
	start, end := DayBounds(date, e.loc)
	occs, err := e.store.OccupanciesOverlapping(ctx, advisorID, start, end)
	if err != nil {
		return nil, err
	}

	out := make([]HistoryEntry, 0, len(occs))
	for _, occ := range occs {
		out = append(out, HistoryEntry{
			OccupancyID:       occ.ID,
			Slug:              occ.StateKind.Slug,
			Name:              occ.StateKind.Name,
			StartedAt:         occ.StartedAt,
			EndedAt:           occ.EndedAt,
			DurationSeconds:   occ.DurationSeconds,
			LimitMinutes:      occ.LimitMinutes,
			DifferenceMinutes: occ.DifferenceMinutes,
			Metadata:          occ.Metadata,
		})
	}
	return out, nil
}

// Summary reports limit, usage and remaining minutes today for every active kind.
func (e *Engine) Summary(ctx context.Context, advisorID int64) ([]KindSummary, error) {
	kinds, err := e.catalog.List(ctx, true)
	if err != nil {
		return nil, err
	}

	now := e.now()
	start, end := DayBounds(now, e.loc)
	occs, err := e.store.OccupanciesOverlapping(ctx, advisorID, start, end)
	if err != nil {
		return nil, err
	}

	out := make([]KindSummary, 0, len(kinds))
	for i := range kinds {
		kind := &kinds[i]
		limit, source := e.resolver.Limit(ctx, advisorID, kind)
		used := OverlapMinutes(intervalsOf(occs, kind.ID), start, end, now)

		var remaining *int
		if limit != nil {
			r := max(0, *limit-used)
			remaining = &r
		}
		out = append(out, KindSummary{
			StateKindID:      kind.ID,
			Slug:             kind.Slug,
			Name:             kind.Name,
			Color:            e.resolver.Color(ctx, advisorID, kind),
			Icon:             kind.Icon,
			SortOrder:        kind.SortOrder,
			LimitMinutes:     limit,
			LimitSource:      source,
			UsedMinutes:      used,
			RemainingMinutes: remaining,
		})
	}
	return out, nil
}

// OpenOverages returns the open occupancies whose kind is already past its limit today.
func (e *Engine) OpenOverages(ctx context.Context) ([]Overage, error) {
	open, err := e.store.AllOpenOccupancies(ctx)
	if err != nil {
		return nil, err
	}

	var out []Overage
	for _, occ := range open {
		limit, _ := e.resolver.Limit(ctx, occ.AdvisorID, &occ.StateKind)
		if limit == nil {
			continue
		}
		used, err := e.MinutesUsedToday(ctx, occ.AdvisorID, occ.StateKindID)
		if err != nil {
			return nil, err
		}
		if used > *limit {
			out = append(out, Overage{Occupancy: occ, LimitMinutes: *limit, UsedMinutes: used})
		}
	}
	return out, nil
}

func elapsedSeconds(occ *model.StateOccupancy, now time.Time) int64 {
	end := now
	if occ.EndedAt != nil {
		end = *occ.EndedAt
	}
	if end.Before(occ.StartedAt) {
		return 0
	}
	return int64(end.Sub(occ.StartedAt) / time.Second)
}
