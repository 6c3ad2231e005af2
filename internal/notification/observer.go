package notification

import (
	"context"

	"workforce-status-backend/internal/workforce"
)

// OverLimitObserver dispatches an alert whenever a transition closes an occupancy that ran
// past its limit.
func OverLimitObserver(wp *WorkerPool) workforce.Observer {
	return workforce.ObserverFunc(func(_ context.Context, ev workforce.TransitionEvent) {
		occ := ev.Closed
		if occ == nil || occ.LimitMinutes == nil || occ.DifferenceMinutes == nil || *occ.DifferenceMinutes >= 0 {
			return
		}
		wp.Dispatch(Alert{
			AdvisorID:    occ.AdvisorID,
			OccupancyID:  occ.ID,
			StateSlug:    occ.StateKind.Slug,
			StateName:    occ.StateKind.Name,
			LimitMinutes: *occ.LimitMinutes,
			UsedMinutes:  *occ.LimitMinutes - *occ.DifferenceMinutes,
			Closed:       true,
		})
	})
}
