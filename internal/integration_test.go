package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workforce-status-backend/internal/api"
	"workforce-status-backend/internal/db/dbtest"
	"workforce-status-backend/internal/notification"
	"workforce-status-backend/internal/presence"
	"workforce-status-backend/internal/store"
	"workforce-status-backend/internal/watcher"
	"workforce-status-backend/internal/workforce"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type alertRecorder struct {
	mu     sync.Mutex
	alerts []notification.Alert
}

func (r *alertRecorder) Dispatch(a notification.Alert) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return true
}

func next(t *testing.T, c *presence.Client) presence.Outbound {
	t.Helper()
	select {
	case raw := <-c.Send:
		var msg presence.Outbound
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for relay message")
		return presence.Outbound{}
	}
}

func post(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestBreakLifecycle drives an advisor through a break that runs over its limit, checking
// what leaders see on the relay, what the watcher alerts and what the day report holds.
func TestBreakLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	st := store.NewGormStore(dbtest.New(t))
	clk := &clock{t: time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)}

	catalog := workforce.NewCatalog(st, time.Minute)
	require.NoError(t, catalog.Load(ctx, true))
	engine := workforce.NewEngine(st, catalog, workforce.NewResolver(st, 16, time.Minute), workforce.Options{Now: clk.Now})

	hub := presence.NewHub(clk.Now)
	engine.Subscribe(hub)

	var (
		mu     sync.Mutex
		closed []int
	)
	engine.Subscribe(workforce.ObserverFunc(func(_ context.Context, ev workforce.TransitionEvent) {
		if ev.Closed != nil && ev.Closed.DifferenceMinutes != nil {
			mu.Lock()
			closed = append(closed, *ev.Closed.DifferenceMinutes)
			mu.Unlock()
		}
	}))

	alerts := &alertRecorder{}
	w := watcher.New(engine, hub, alerts, time.Minute, time.Hour, clk.Now)
	router := api.NewRouter(api.NewHandler(engine, st, hub, nil), api.RouterConfig{})

	leader := presence.NewClient("leader", 16)
	hub.Register(leader)
	hub.Handle(leader, []byte(`{"type":"identify_leader"}`))
	assert.Equal(t, presence.TypeConnected, next(t, leader).Type)

	agent := presence.NewClient("agent", 16)
	hub.Register(agent)
	hub.Handle(agent, []byte(`{"type":"identify_agent","advisor_id":1,"name":"Ana"}`))
	assert.Equal(t, presence.TypeConnected, next(t, agent).Type)
	msg := next(t, leader)
	assert.Equal(t, presence.TypeUserConnected, msg.Type)
	assert.Equal(t, int64(1), msg.AdvisorID)

	// --- Break starts ---
	resp := post(t, router, "/api/advisors/1/transitions", gin.H{"state": "break"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	msg = next(t, leader)
	assert.Equal(t, presence.TypeStateChange, msg.Type)
	assert.Equal(t, "break", msg.State)

	clk.Advance(10 * time.Minute)
	sent, err := w.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent, "still inside the limit")

	// --- Break runs over ---
	clk.Advance(12 * time.Minute)
	sent, err = w.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	msg = next(t, leader)
	assert.Equal(t, presence.TypeLimitExceeded, msg.Type)
	assert.Equal(t, 15, msg.LimitMinutes)
	assert.Equal(t, 22, msg.UsedMinutes)
	assert.Equal(t, "Break is 7 min over the limit", msg.Message)

	sent, err = w.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent, "one alert per occupancy")
	require.Len(t, alerts.alerts, 1)
	assert.Equal(t, "break", alerts.alerts[0].StateSlug)

	// --- Back to work ---
	resp = post(t, router, "/api/advisors/1/transitions", gin.H{"state": "available"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	msg = next(t, leader)
	assert.Equal(t, "available", msg.State)

	mu.Lock()
	assert.Equal(t, []int{-7}, closed)
	mu.Unlock()

	breakdown, err := engine.DailyBreakdown(ctx, 1, clk.Now())
	require.NoError(t, err)
	var breakSeconds int64
	for _, e := range breakdown.Entries {
		if e.Slug == "break" {
			breakSeconds = e.ElapsedSeconds
		}
	}
	assert.EqualValues(t, 22*60, breakSeconds)

	snapshot := hub.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "available", snapshot[0].State)

	hub.Disconnect(agent)
	msg = next(t, leader)
	assert.Equal(t, presence.TypeUserDisconnected, msg.Type)
	assert.Empty(t, hub.Snapshot())
}
