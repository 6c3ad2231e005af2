package workforce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"workforce-status-backend/internal/db"
	"workforce-status-backend/internal/db/dbtest"
	"workforce-status-backend/internal/model"
	"workforce-status-backend/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type testEnv struct {
	engine *Engine
	store  store.Store
	clock  *fakeClock
}

// Monday 2025-03-10, 14:00 UTC.
var testStart = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvIn(t, time.UTC)
}

func newTestEnvIn(t *testing.T, loc *time.Location) *testEnv {
	t.Helper()
	st := store.NewGormStore(dbtest.New(t))
	clock := &fakeClock{t: testStart}

	catalog := NewCatalog(st, time.Minute)
	require.NoError(t, catalog.Load(context.Background(), true))
	resolver := NewResolver(st, 64, time.Minute)

	return &testEnv{
		engine: NewEngine(st, catalog, resolver, Options{Location: loc, Now: clock.Now}),
		store:  st,
		clock:  clock,
	}
}

func (env *testEnv) countOpen(t *testing.T, advisorID int64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, env.store.DB().Model(&model.StateOccupancy{}).
		Where("advisor_id = ? AND ended_at IS NULL", advisorID).Count(&n).Error)
	return n
}

func (env *testEnv) reload(t *testing.T, id int64) model.StateOccupancy {
	t.Helper()
	var occ model.StateOccupancy
	require.NoError(t, env.store.DB().First(&occ, id).Error)
	return occ
}

func TestTransition_SameStateIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, created, err := env.engine.Transition(ctx, 1, "break", nil)
	require.NoError(t, err)
	assert.True(t, created)

	env.clock.Advance(time.Minute)
	second, created, err := env.engine.Transition(ctx, 1, "break", map[string]any{"ignored": true})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var total int64
	require.NoError(t, env.store.DB().Model(&model.StateOccupancy{}).Count(&total).Error)
	assert.Equal(t, int64(1), total)
}

func TestTransition_ClosesPreviousState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	brk, _, err := env.engine.Transition(ctx, 1, "break", map[string]any{"source": "web"})
	require.NoError(t, err)

	env.clock.Advance(20*time.Minute + 30*time.Second)
	lunch, created, err := env.engine.Transition(ctx, 1, "lunch", nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, lunch.EndedAt)
	assert.Equal(t, "lunch", lunch.StateKind.Slug)

	closed := env.reload(t, brk.ID)
	require.NotNil(t, closed.EndedAt)
	assert.Equal(t, int64(1230), closed.DurationSeconds)
	require.NotNil(t, closed.LimitMinutes)
	assert.Equal(t, 15, *closed.LimitMinutes)
	require.NotNil(t, closed.DifferenceMinutes)
	assert.Equal(t, -5, *closed.DifferenceMinutes)
	assert.Equal(t, "web", closed.Metadata["source"])

	assert.Equal(t, int64(1), env.countOpen(t, 1))
}

func TestTransition_UnlimitedKindLeavesDifferenceUnset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	avail, _, err := env.engine.Transition(ctx, 1, "available", nil)
	require.NoError(t, err)
	env.clock.Advance(time.Hour)
	_, _, err = env.engine.Transition(ctx, 1, "break", nil)
	require.NoError(t, err)

	closed := env.reload(t, avail.ID)
	assert.Equal(t, int64(3600), closed.DurationSeconds)
	assert.Nil(t, closed.LimitMinutes)
	assert.Nil(t, closed.DifferenceMinutes)
}

func TestTransition_NormalizesSlug(t *testing.T) {
	env := newTestEnv(t)

	occ, created, err := env.engine.Transition(context.Background(), 1, "  BREAK ", nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "break", occ.StateKind.Slug)
}

func TestTransition_UnknownState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inactive := model.StateKind{Slug: "retired", Name: "Retired", Active: false}
	require.NoError(t, env.engine.Catalog().Save(ctx, &inactive))
	require.NoError(t, env.store.DB().Model(&inactive).Update("active", false).Error)

	for _, slug := range []string{"nap", "retired", ""} {
		_, _, err := env.engine.Transition(ctx, 1, slug, nil)
		assert.ErrorIs(t, err, ErrUnknownState, slug)
	}

	var total int64
	require.NoError(t, env.store.DB().Model(&model.StateOccupancy{}).Count(&total).Error)
	assert.Zero(t, total)
	_, err := env.store.FindAdvisor(ctx, 1)
	assert.ErrorIs(t, err, store.ErrNotFound, "rejected transitions must not create advisors")
}

func TestTransition_CreatesAdvisorLazily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.engine.Transition(ctx, 77, "available", nil)
	require.NoError(t, err)

	advisor, err := env.store.FindAdvisor(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, int64(77), advisor.ID)
}

func TestTransition_ConcurrentCallsKeepOneOpen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slugs := []string{"break", "lunch", "available", "meeting"}

	var wg sync.WaitGroup
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			env.clock.Advance(time.Second)
			_, _, err := env.engine.Transition(ctx, 1, slugs[i%len(slugs)], nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), env.countOpen(t, 1))
	assert.Zero(t, env.engine.locks.size())
}

func TestTransition_FailedWriteRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var failing atomic.Bool
	require.NoError(t, env.store.DB().Callback().Create().Before("gorm:create").
		Register("test:fail_occupancy_create", func(tx *gorm.DB) {
			if failing.Load() && tx.Statement.Table == "state_occupancies" {
				_ = tx.AddError(errors.New("disk full"))
			}
		}))

	brk, _, err := env.engine.Transition(ctx, 1, "break", nil)
	require.NoError(t, err)

	failing.Store(true)
	env.clock.Advance(5 * time.Minute)
	_, _, err = env.engine.Transition(ctx, 1, "lunch", nil)
	require.Error(t, err)

	still := env.reload(t, brk.ID)
	assert.Nil(t, still.EndedAt, "the close must roll back with the failed open")
	assert.Zero(t, still.DurationSeconds)
	assert.Equal(t, int64(1), env.countOpen(t, 1))
}

func TestTransition_MultipleOpenIsSurfaced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gdb := env.store.DB()

	require.NoError(t, gdb.Exec("DROP INDEX "+db.OpenOccupancyIndex).Error)
	kinds, err := env.engine.Catalog().List(ctx, true)
	require.NoError(t, err)
	for _, k := range kinds[:2] {
		require.NoError(t, env.store.CreateOccupancy(ctx, &model.StateOccupancy{AdvisorID: 1, StateKindID: k.ID, StartedAt: testStart}))
	}
	_, err = env.store.GetOrCreateAdvisor(ctx, 1)
	require.NoError(t, err)

	_, _, err = env.engine.Transition(ctx, 1, "break", nil)
	assert.ErrorIs(t, err, ErrMultipleOpen)

	_, err = env.engine.CurrentStatus(ctx, 1)
	assert.ErrorIs(t, err, ErrMultipleOpen)

	assert.Equal(t, int64(2), env.countOpen(t, 1), "the violation is reported, not repaired")
}

func TestClose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.Close(ctx, 1)
	assert.ErrorIs(t, err, ErrNoOpenState)

	_, _, err = env.engine.Transition(ctx, 1, "lunch", nil)
	require.NoError(t, err)
	env.clock.Advance(45 * time.Minute)

	closed, err := env.engine.Close(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(45*60), closed.DurationSeconds)
	require.NotNil(t, closed.DifferenceMinutes)
	assert.Equal(t, 15, *closed.DifferenceMinutes)
	assert.Zero(t, env.countOpen(t, 1))

	_, err = env.engine.Close(ctx, 1)
	assert.ErrorIs(t, err, ErrNoOpenState)
}

func TestObserversSeeCommittedTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var events []TransitionEvent
	env.engine.Subscribe(ObserverFunc(func(_ context.Context, ev TransitionEvent) {
		events = append(events, ev)
	}))

	_, _, err := env.engine.Transition(ctx, 1, "break", nil)
	require.NoError(t, err)
	_, _, err = env.engine.Transition(ctx, 1, "break", nil)
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	_, _, err = env.engine.Transition(ctx, 1, "lunch", nil)
	require.NoError(t, err)
	_, err = env.engine.Close(ctx, 1)
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Nil(t, events[0].Closed)
	assert.Equal(t, "break", events[0].Opened.StateKind.Slug)
	assert.Equal(t, "break", events[1].Closed.StateKind.Slug)
	assert.Equal(t, "lunch", events[1].Opened.StateKind.Slug)
	assert.Nil(t, events[2].Opened)
	assert.Equal(t, "lunch", events[2].Closed.StateKind.Slug)
}

func TestCurrentStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	status, err := env.engine.CurrentStatus(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, status)

	_, _, err = env.engine.Transition(ctx, 1, "meeting", nil)
	require.NoError(t, err)
	env.clock.Advance(90 * time.Second)

	status, err = env.engine.CurrentStatus(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, "meeting", status.Slug)
	assert.Equal(t, "#7c3aed", status.Color)
	assert.Equal(t, int64(90), status.ElapsedSeconds)
	assert.True(t, status.StartedAt.Equal(testStart))
}

func TestSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Yesterday's break must not count against today.
	env.clock.Set(testStart.Add(-24 * time.Hour))
	_, _, err := env.engine.Transition(ctx, 1, "break", nil)
	require.NoError(t, err)
	env.clock.Advance(30 * time.Minute)
	_, err = env.engine.Close(ctx, 1)
	require.NoError(t, err)

	env.clock.Set(testStart)
	_, _, err = env.engine.Transition(ctx, 1, "break", nil)
	require.NoError(t, err)
	env.clock.Advance(10*time.Minute + 59*time.Second)
	_, _, err = env.engine.Transition(ctx, 1, "available", nil)
	require.NoError(t, err)
	env.clock.Advance(3 * time.Minute)

	summary, err := env.engine.Summary(ctx, 1)
	require.NoError(t, err)
	require.Len(t, summary, len(DefaultKinds()))

	bySlug := make(map[string]KindSummary)
	for _, s := range summary {
		bySlug[s.Slug] = s
	}

	brk := bySlug["break"]
	assert.Equal(t, 10, brk.UsedMinutes)
	require.NotNil(t, brk.RemainingMinutes)
	assert.Equal(t, 5, *brk.RemainingMinutes)
	assert.Equal(t, LimitFromCatalog, brk.LimitSource)

	lunch := bySlug["lunch"]
	assert.Zero(t, lunch.UsedMinutes)
	require.NotNil(t, lunch.RemainingMinutes)
	assert.Equal(t, 60, *lunch.RemainingMinutes)

	avail := bySlug["available"]
	assert.Equal(t, 3, avail.UsedMinutes)
	assert.Nil(t, avail.LimitMinutes)
	assert.Nil(t, avail.RemainingMinutes)

	assert.Equal(t, "check-in", summary[0].Slug, "ordered by sort order")
}

func TestSummary_RemainingNeverNegative(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.engine.Transition(ctx, 1, "break", nil)
	require.NoError(t, err)
	env.clock.Advance(40 * time.Minute)

	summary, err := env.engine.Summary(ctx, 1)
	require.NoError(t, err)
	for _, s := range summary {
		if s.Slug == "break" {
			assert.Equal(t, 40, s.UsedMinutes)
			assert.Equal(t, 0, *s.RemainingMinutes)
		}
	}
}

func TestDailyBreakdownAndHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Started yesterday, still running into today.
	env.clock.Set(testStart.Add(-15 * time.Hour))
	_, _, err := env.engine.Transition(ctx, 1, "available", nil)
	require.NoError(t, err)

	env.clock.Set(testStart)
	_, _, err = env.engine.Transition(ctx, 1, "break", nil)
	require.NoError(t, err)
	env.clock.Advance(12 * time.Minute)
	_, _, err = env.engine.Transition(ctx, 1, "meeting", nil)
	require.NoError(t, err)
	env.clock.Advance(5 * time.Minute)

	breakdown, err := env.engine.DailyBreakdown(ctx, 1, testStart)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", breakdown.Date)
	require.Len(t, breakdown.Entries, 2)
	assert.Equal(t, "break", breakdown.Entries[0].Slug)
	assert.Equal(t, int64(720), breakdown.Entries[0].ElapsedSeconds)
	assert.False(t, breakdown.Entries[0].Open)
	assert.Equal(t, "meeting", breakdown.Entries[1].Slug)
	assert.Equal(t, int64(300), breakdown.Entries[1].ElapsedSeconds)
	assert.True(t, breakdown.Entries[1].Open)
	assert.Equal(t, int64(1020), breakdown.TotalSeconds)

	history, err := env.engine.History(ctx, 1, testStart)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "available", history[0].Slug)
	assert.Equal(t, int64(15*3600), history[0].DurationSeconds)
	require.NotNil(t, history[1].DifferenceMinutes)
	assert.Equal(t, 3, *history[1].DifferenceMinutes)
	assert.Nil(t, history[2].EndedAt)
}

func TestDayBoundsFollowLocation(t *testing.T) {
	bogota := time.FixedZone("COT", -5*3600)
	env := newTestEnvIn(t, bogota)
	ctx := context.Background()

	// 03:00 UTC on the 11th is still the 10th in Bogota.
	env.clock.Set(time.Date(2025, 3, 11, 3, 0, 0, 0, time.UTC))
	_, _, err := env.engine.Transition(ctx, 1, "break", nil)
	require.NoError(t, err)

	breakdown, err := env.engine.DailyBreakdown(ctx, 1, time.Date(2025, 3, 10, 12, 0, 0, 0, bogota))
	require.NoError(t, err)
	assert.Len(t, breakdown.Entries, 1)

	breakdown, err = env.engine.DailyBreakdown(ctx, 1, time.Date(2025, 3, 11, 12, 0, 0, 0, bogota))
	require.NoError(t, err)
	assert.Empty(t, breakdown.Entries)
}

func TestOpenOverages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.engine.Transition(ctx, 1, "break", nil)
	require.NoError(t, err)
	_, _, err = env.engine.Transition(ctx, 2, "lunch", nil)
	require.NoError(t, err)
	_, _, err = env.engine.Transition(ctx, 3, "available", nil)
	require.NoError(t, err)

	env.clock.Advance(16 * time.Minute)
	overages, err := env.engine.OpenOverages(ctx)
	require.NoError(t, err)
	require.Len(t, overages, 1)
	assert.Equal(t, int64(1), overages[0].Occupancy.AdvisorID)
	assert.Equal(t, 15, overages[0].LimitMinutes)
	assert.Equal(t, 1, overages[0].OverMinutes())
}

func TestTransition_LookupErrorUsesFixedMetricLabel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.DB().Callback().Query().Before("gorm:query").
		Register("test:fail_state_kind_query", func(tx *gorm.DB) {
			if tx.Statement.Table == "state_kinds" {
				_ = tx.AddError(errors.New("connection reset"))
			}
		}))

	errorsBefore := testutil.ToFloat64(transitionsTotal.WithLabelValues("error", "error"))
	seriesBefore := testutil.CollectAndCount(transitionsTotal)

	for _, slug := range []string{"zz-client-slug-1", "zz-client-slug-2"} {
		_, _, err := env.engine.Transition(ctx, 1, slug, nil)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnknownState)
	}

	assert.Equal(t, errorsBefore+2, testutil.ToFloat64(transitionsTotal.WithLabelValues("error", "error")))
	assert.Equal(t, seriesBefore, testutil.CollectAndCount(transitionsTotal), "client slugs never become label values")
}
