package workforce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"

	"workforce-status-backend/internal/model"
	"workforce-status-backend/internal/store"
)

// TransitionEvent describes a committed change of an advisor's open state.
// Closed is nil when nothing was open; Opened is nil for an explicit close.
type TransitionEvent struct {
	AdvisorID int64
	Closed    *model.StateOccupancy
	Opened    *model.StateOccupancy
	At        time.Time
}

// Observer is told about transitions after their transaction committed. It must not block.
type Observer interface {
	OnTransition(ctx context.Context, ev TransitionEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev TransitionEvent)

func (f ObserverFunc) OnTransition(ctx context.Context, ev TransitionEvent) { f(ctx, ev) }

// Options configures an Engine.
type Options struct {
	Location *time.Location
	// OnTimeTolerance is the largest absolute shift variance, in minutes, still labelled on time.
	OnTimeTolerance int
	Now             func() time.Time
}

// Engine owns every advisor's open occupancy and shift record. Writes for one advisor are
// serialized in-process by a keyed mutex and across processes by a transaction that locks
// the advisor row.
type Engine struct {
	store     store.Store
	catalog   *Catalog
	resolver  *Resolver
	locks     *keyedMutex
	loc       *time.Location
	tolerance int
	clock     func() time.Time

	mu        sync.RWMutex
	observers []Observer
}

// NewEngine creates an engine on top of the given store, catalog and resolver.
func NewEngine(s store.Store, catalog *Catalog, resolver *Resolver, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OnTimeTolerance <= 0 {
		opts.OnTimeTolerance = 2
	}
	return &Engine{
		store:     s,
		catalog:   catalog,
		resolver:  resolver,
		locks:     newKeyedMutex(),
		loc:       opts.Location,
		tolerance: opts.OnTimeTolerance,
		clock:     opts.Now,
	}
}

// Subscribe registers an observer for committed transitions.
func (e *Engine) Subscribe(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

func (e *Engine) Catalog() *Catalog { return e.catalog }

func (e *Engine) Resolver() *Resolver { return e.resolver }

func (e *Engine) Location() *time.Location { return e.loc }

// Now returns the engine clock.
func (e *Engine) Now() time.Time { return e.now() }

// Today returns local midnight of the current day and its YYYY-MM-DD form.
func (e *Engine) Today() (time.Time, string) {
	start, _ := DayBounds(e.now(), e.loc)
	return start, start.Format(model.DateLayout)
}

// now is the engine clock in UTC at the precision the database keeps.
func (e *Engine) now() time.Time {
	return e.clock().UTC().Truncate(time.Microsecond)
}

func (e *Engine) notify(ctx context.Context, ev TransitionEvent) {
	e.mu.RLock()
	observers := append([]Observer(nil), e.observers...)
	e.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	for _, o := range observers {
		o.OnTransition(ctx, ev)
	}
}

// NormalizeSlug trims and lowercases a requested state slug.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// Transition moves the advisor into the state named by slug. Re-entering the current state
// returns the open occupancy with created=false. Otherwise the open occupancy, if any, is
// closed and a new one opened, all in one transaction.
func (e *Engine) Transition(ctx context.Context, advisorID int64, slug string, metadata map[string]any) (*model.StateOccupancy, bool, error) {
	slug = NormalizeSlug(slug)

	unlock := e.locks.Lock(advisorID)
	defer unlock()

	now := e.now()
	var (
		result  *model.StateOccupancy
		closed  *model.StateOccupancy
		created bool
		// metric label, a catalog slug once the kind resolves
		state = "error"
	)
	err := e.store.InTx(ctx, func(tx store.Store) error {
		kind, err := tx.FindActiveStateKind(ctx, slug)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrUnknownState, slug)
		}
		if err != nil {
			return err
		}
		state = kind.Slug

		if _, err := tx.GetOrCreateAdvisor(ctx, advisorID); err != nil {
			return err
		}
		if _, err := tx.LockAdvisor(ctx, advisorID); err != nil {
			return err
		}

		current, err := openOccupancy(ctx, tx, advisorID)
		if err != nil {
			return err
		}
		if current != nil && current.StateKindID == kind.ID {
			result = current
			return nil
		}
		if current != nil {
			if err := e.close(ctx, tx, current, now); err != nil {
				return err
			}
			closed = current
		}

		occ := &model.StateOccupancy{
			AdvisorID:   advisorID,
			StateKindID: kind.ID,
			StartedAt:   now,
			Metadata:    datatypes.JSONMap(metadata),
		}
		if err := tx.CreateOccupancy(ctx, occ); err != nil {
			return err
		}
		occ.StateKind = *kind
		result, created = occ, true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUnknownState) {
			transitionsTotal.WithLabelValues("unknown", "rejected").Inc()
		} else {
			transitionsTotal.WithLabelValues(state, "error").Inc()
		}
		return nil, false, err
	}

	if !created {
		transitionsTotal.WithLabelValues(state, "unchanged").Inc()
		return result, false, nil
	}

	transitionsTotal.WithLabelValues(state, "created").Inc()
	slog.Debug("state transition", "advisor_id", advisorID, "state", state, "closed_id", occupancyID(closed))
	e.notify(ctx, TransitionEvent{AdvisorID: advisorID, Closed: closed, Opened: result, At: now})
	return result, true, nil
}

// Close ends the advisor's open occupancy without opening another one.
func (e *Engine) Close(ctx context.Context, advisorID int64) (*model.StateOccupancy, error) {
	unlock := e.locks.Lock(advisorID)
	defer unlock()

	now := e.now()
	var closed *model.StateOccupancy
	err := e.store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.LockAdvisor(ctx, advisorID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNoOpenState
			}
			return err
		}
		current, err := openOccupancy(ctx, tx, advisorID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrNoOpenState
		}
		if err := e.close(ctx, tx, current, now); err != nil {
			return err
		}
		closed = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, TransitionEvent{AdvisorID: advisorID, Closed: closed, At: now})
	return closed, nil
}

// close stamps the end of occ and its derived fields. The limit is resolved against the
// occupancy's own kind, and difference is limit minus whole minutes elapsed.
func (e *Engine) close(ctx context.Context, tx store.Store, occ *model.StateOccupancy, now time.Time) error {
	end := now
	if end.Before(occ.StartedAt) {
		end = occ.StartedAt
	}
	occ.EndedAt = &end
	occ.DurationSeconds = int64(end.Sub(occ.StartedAt) / time.Second)

	limit, _ := e.resolver.within(tx).Limit(ctx, occ.AdvisorID, &occ.StateKind)
	occ.LimitMinutes = limit
	occ.DifferenceMinutes = nil
	if limit != nil {
		diff := *limit - int(occ.DurationSeconds/60)
		occ.DifferenceMinutes = &diff
		if diff < 0 {
			closedOverLimitTotal.Inc()
		}
	}
	return tx.CloseOccupancy(ctx, occ)
}

// openOccupancy returns the advisor's single open occupancy or nil. Finding more than one is
// reported as ErrMultipleOpen and left for an operator to repair.
func openOccupancy(ctx context.Context, s store.Store, advisorID int64) (*model.StateOccupancy, error) {
	open, err := s.OpenOccupancies(ctx, advisorID)
	if err != nil {
		return nil, err
	}
	switch len(open) {
	case 0:
		return nil, nil
	case 1:
		return &open[0], nil
	default:
		slog.Error("single open state invariant violated", "advisor_id", advisorID, "open", len(open))
		return nil, fmt.Errorf("%w: advisor %d has %d open occupancies", ErrMultipleOpen, advisorID, len(open))
	}
}

func occupancyID(o *model.StateOccupancy) int64 {
	if o == nil {
		return 0
	}
	return o.ID
}
