package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"workforce-status-backend/internal/notification"
	"workforce-status-backend/internal/presence"
	"workforce-status-backend/internal/workforce"
)

// OverageSource lists open occupancies already past their limit today.
type OverageSource interface {
	OpenOverages(ctx context.Context) ([]workforce.Overage, error)
}

// LeaderNotifier receives relay alerts for leaders.
type LeaderNotifier interface {
	NotifyLeaders(msg presence.Outbound)
}

// AlertDispatcher queues push alerts.
type AlertDispatcher interface {
	Dispatch(alert notification.Alert) bool
}

// Watcher scans open occupancies on an interval and alerts once per occupancy that runs
// past its limit.
type Watcher struct {
	source   OverageSource
	leaders  LeaderNotifier
	push     AlertDispatcher
	interval time.Duration
	alerted  *cache.Cache
	now      func() time.Time
}

// New creates a watcher. Alerts for an occupancy are suppressed for alertTTL after the first
// one. leaders and push may be nil.
func New(source OverageSource, leaders LeaderNotifier, push AlertDispatcher, interval, alertTTL time.Duration, now func() time.Time) *Watcher {
	if now == nil {
		now = time.Now
	}
	return &Watcher{
		source:   source,
		leaders:  leaders,
		push:     push,
		interval: interval,
		alerted:  cache.New(alertTTL, 2*alertTTL),
		now:      now,
	}
}

// Run scans until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	slog.Info("starting overage watcher", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("overage watcher shutting down")
			return
		case <-ticker.C:
			if _, err := w.Scan(ctx); err != nil {
				slog.Error("overage scan failed", "error", err)
			}
		}
	}
}

// Scan checks open occupancies once and returns how many new alerts were sent.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	overages, err := w.source.OpenOverages(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, o := range overages {
		key := fmt.Sprintf("%d", o.Occupancy.ID)
		// Add fails when the key is already present and unexpired.
		if err := w.alerted.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
			continue
		}
		w.alert(o)
		sent++
	}
	return sent, nil
}

func (w *Watcher) alert(o workforce.Overage) {
	occ := o.Occupancy
	slog.Info("state limit exceeded",
		"advisor_id", occ.AdvisorID,
		"state", occ.StateKind.Slug,
		"limit_minutes", o.LimitMinutes,
		"used_minutes", o.UsedMinutes)

	if w.leaders != nil {
		now := w.now().UTC()
		w.leaders.NotifyLeaders(presence.Outbound{
			Type:         presence.TypeLimitExceeded,
			AdvisorID:    occ.AdvisorID,
			State:        occ.StateKind.Slug,
			LimitMinutes: o.LimitMinutes,
			UsedMinutes:  o.UsedMinutes,
			Message:      fmt.Sprintf("%s is %d min over the limit", occ.StateKind.Name, o.OverMinutes()),
			Timestamp:    &now,
		})
	}
	if w.push != nil {
		w.push.Dispatch(notification.Alert{
			AdvisorID:    occ.AdvisorID,
			OccupancyID:  occ.ID,
			StateSlug:    occ.StateKind.Slug,
			StateName:    occ.StateKind.Name,
			LimitMinutes: o.LimitMinutes,
			UsedMinutes:  o.UsedMinutes,
		})
	}
}
