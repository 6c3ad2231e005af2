package workforce

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"workforce-status-backend/internal/model"
)

func (env *testEnv) assign(t *testing.T, advisorID int64, weekdays string, entry, exit datatypes.Time) model.ShiftAssignment {
	t.Helper()
	a := model.ShiftAssignment{
		AdvisorID: advisorID,
		StartDate: "2025-03-01",
		EntryTime: entry,
		ExitTime:  exit,
		Weekdays:  weekdays,
	}
	require.NoError(t, env.store.DB().Create(&a).Error)
	return a
}

func (env *testEnv) advisor(t *testing.T, id int64) {
	t.Helper()
	_, err := env.store.GetOrCreateAdvisor(context.Background(), id)
	require.NoError(t, err)
}

func TestMarkEntry_AlreadyMarkedAndForced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.advisor(t, 1)
	env.assign(t, 1, `["lunes","martes"]`, datatypes.NewTime(9, 0, 0, 0), datatypes.NewTime(18, 0, 0, 0))

	env.clock.Set(time.Date(2025, 3, 10, 8, 55, 0, 0, time.UTC))
	first, err := env.engine.MarkEntry(ctx, 1, false)
	require.NoError(t, err)
	assert.True(t, first.Created)
	require.NotNil(t, first.Record.EntryVarianceMinutes)
	assert.Equal(t, -5, *first.Record.EntryVarianceMinutes)
	assert.Equal(t, LabelEarly, *first.Record.EntryLabel)
	assert.Equal(t, "Entry recorded. Arrived early (5 min).", first.Message)
	require.NotNil(t, first.Record.ScheduledEntry)
	assert.Equal(t, "09:00:00", first.Record.ScheduledEntry.String())

	env.clock.Advance(8 * time.Minute)
	_, err = env.engine.MarkEntry(ctx, 1, false)
	assert.ErrorIs(t, err, ErrAlreadyMarked)

	var stored model.ShiftRecord
	require.NoError(t, env.store.DB().First(&stored, first.Record.ID).Error)
	assert.True(t, stored.EntryAt.Equal(time.Date(2025, 3, 10, 8, 55, 0, 0, time.UTC)), "a rejected mark changes nothing")

	forced, err := env.engine.MarkEntry(ctx, 1, true)
	require.NoError(t, err)
	assert.False(t, forced.Created)
	assert.Equal(t, 3, *forced.Record.EntryVarianceMinutes)
	assert.Equal(t, LabelLate, *forced.Record.EntryLabel)
	assert.Equal(t, "Entry recorded. Arrived late (+3 min).", forced.Message)

	var count int64
	require.NoError(t, env.store.DB().Model(&model.ShiftRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMarkExit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.advisor(t, 1)

	_, err := env.engine.MarkExit(ctx, 1, false)
	assert.ErrorIs(t, err, ErrNoEntryYet)
	_, err = env.engine.MarkExit(ctx, 1, true)
	assert.ErrorIs(t, err, ErrNoEntryYet, "forcing does not skip the entry requirement")

	env.clock.Set(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	entry, err := env.engine.MarkEntry(ctx, 1, false)
	require.NoError(t, err)
	assert.Nil(t, entry.Record.EntryLabel, "no assignment means no variance")
	assert.Equal(t, "Entry recorded. No schedule found for today.", entry.Message)

	// The schedule shows up later in the day and is picked up by the exit mark.
	env.assign(t, 1, "lunes", datatypes.NewTime(9, 0, 0, 0), datatypes.NewTime(18, 0, 0, 0))
	env.clock.Set(time.Date(2025, 3, 10, 18, 10, 0, 0, time.UTC))
	exit, err := env.engine.MarkExit(ctx, 1, false)
	require.NoError(t, err)
	require.NotNil(t, exit.Record.ExitVarianceMinutes)
	assert.Equal(t, 10, *exit.Record.ExitVarianceMinutes)
	assert.Equal(t, LabelAfter, *exit.Record.ExitLabel)
	assert.Equal(t, "Exit recorded. Left after schedule (+10 min).", exit.Message)
	assert.Nil(t, exit.Record.EntryLabel, "entry variance is only computed by the entry mark")

	_, err = env.engine.MarkExit(ctx, 1, false)
	assert.ErrorIs(t, err, ErrAlreadyMarked)

	env.clock.Advance(-20 * time.Minute)
	exit, err = env.engine.MarkExit(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, -10, *exit.Record.ExitVarianceMinutes)
	assert.Equal(t, LabelBefore, *exit.Record.ExitLabel)
}

func TestMark_AdvisorNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.MarkEntry(context.Background(), 404, false)
	assert.ErrorIs(t, err, ErrAdvisorNotFound)
	_, err = env.engine.MarkExit(context.Background(), 404, false)
	assert.ErrorIs(t, err, ErrAdvisorNotFound)
}

func TestCurrentSchedule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	nine, six := datatypes.NewTime(9, 0, 0, 0), datatypes.NewTime(18, 0, 0, 0)

	env.assign(t, 1, `["martes","jueves"]`, nine, six)
	weekend := env.assign(t, 1, "sábado, domingo", nine, six)
	env.assign(t, 1, "not-a-day", nine, six)

	monday := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	lookup, err := env.engine.CurrentSchedule(ctx, 1, monday)
	require.NoError(t, err)
	assert.Nil(t, lookup.Match, "no weekday match returns no schedule")
	assert.Len(t, lookup.Active, 3)
	assert.Equal(t, "Monday", lookup.Weekday)

	sunday := time.Date(2025, 3, 16, 12, 0, 0, 0, time.UTC)
	lookup, err = env.engine.CurrentSchedule(ctx, 1, sunday)
	require.NoError(t, err)
	require.NotNil(t, lookup.Match)
	assert.Equal(t, weekend.ID, lookup.Match.ID)
	assert.Equal(t, "2025-03-16", lookup.Date)

	lookup, err = env.engine.CurrentSchedule(ctx, 1, time.Date(2025, 2, 23, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, lookup.Active, "assignments have not started yet")
}

func TestMarkEntry_DateFollowsTimestampAcrossMidnight(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.advisor(t, 1)
	env.assign(t, 1, "martes", datatypes.NewTime(9, 0, 0, 0), datatypes.NewTime(18, 0, 0, 0))

	before := time.Date(2025, 3, 10, 23, 59, 59, 999999000, time.UTC)
	after := time.Date(2025, 3, 11, 0, 0, 0, 1000, time.UTC)
	var mu sync.Mutex
	reads := 0
	env.engine.clock = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		reads++
		if reads == 1 {
			return before
		}
		return after
	}

	res, err := env.engine.MarkEntry(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", res.Record.Date)
	require.NotNil(t, res.Record.EntryAt)
	assert.True(t, res.Record.EntryAt.Equal(before))
	assert.Nil(t, res.Record.ScheduledEntry, "Tuesday's schedule must not apply to a Monday mark")
	assert.Nil(t, res.Record.EntryVarianceMinutes)
}
