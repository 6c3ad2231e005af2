package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workforce-status-backend/config"
	"workforce-status-backend/internal/db/dbtest"
	"workforce-status-backend/internal/model"
	"workforce-status-backend/internal/store"
)

// mockStore records what the service upserts.
type mockStore struct {
	calls    int
	sites    []model.Site
	advisors []model.Advisor
}

func (m *mockStore) UpsertDirectory(_ context.Context, sites []model.Site, advisors []model.Advisor) error {
	m.calls++
	m.sites, m.advisors = sites, advisors
	return nil
}

func int64Ptr(v int64) *int64 { return &v }

// pagedServer serves items two per page and fails the pages listed in failing.
func pagedServer(t *testing.T, items []Item, failing map[int]bool, headers *http.Header) (*httptest.Server, *int32) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if headers != nil {
			*headers = r.Header.Clone()
		}
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		page := int(body["page"].(float64))
		if failing[page] {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		start := (page - 1) * 2
		end := min(start+2, len(items))
		var resp Response
		resp.Data.Page = page
		resp.Data.PageSize = 2
		resp.Data.Total = len(items)
		if start < len(items) {
			resp.Data.Items = items[start:end]
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func testConfig(url string) config.DirectoryConfig {
	return config.DirectoryConfig{
		Enabled: true,
		Request: config.DirectoryRequest{
			URL:      url,
			PageSize: 2,
			Headers:  map[string]string{"Authorization": "Bearer upstream"},
			Payload:  map[string]any{"status": "active"},
		},
	}
}

var directoryItems = []Item{
	{ID: 1, Name: "  Ana   Perez ", Role: "Advisor", SiteID: int64Ptr(10), SiteName: "Bogotá"},
	{ID: 2, Name: "Luis", Role: "Leader", SiteID: int64Ptr(10), SiteName: "Bogotá"},
	{ID: 3, Name: "Marta", Role: "Advisor"},
	{ID: 1, Name: "Ana Perez", Role: "Senior Advisor", SiteID: int64Ptr(11)},
	{ID: 0, Name: "broken"},
}

func TestSyncOnce_Paginates(t *testing.T) {
	var headers http.Header
	srv, requests := pagedServer(t, directoryItems, nil, &headers)
	ms := &mockStore{}

	n, err := NewService(testConfig(srv.URL), ms).SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(3), atomic.LoadInt32(requests))
	assert.Equal(t, "Bearer upstream", headers.Get("Authorization"))

	require.Len(t, ms.advisors, 3)
	assert.Equal(t, "Ana Perez", ms.advisors[0].Name)
	assert.Equal(t, "Senior Advisor", ms.advisors[0].Role, "the last listing of an id wins")
	assert.Equal(t, int64(11), *ms.advisors[0].SiteID)
	assert.Nil(t, ms.advisors[2].SiteID)

	require.Len(t, ms.sites, 2)
	assert.Equal(t, "Bogotá", ms.sites[0].Name)
	assert.Equal(t, "Site 11", ms.sites[1].Name)
}

func TestSyncOnce_FetchErrors(t *testing.T) {
	t.Run("first page fails", func(t *testing.T) {
		srv, _ := pagedServer(t, directoryItems, map[int]bool{1: true}, nil)
		ms := &mockStore{}

		_, err := NewService(testConfig(srv.URL), ms).SyncOnce(context.Background())
		assert.Error(t, err)
		assert.Zero(t, ms.calls, "nothing is written when nothing was fetched")
	})

	t.Run("later page fails", func(t *testing.T) {
		srv, _ := pagedServer(t, directoryItems, map[int]bool{2: true}, nil)
		ms := &mockStore{}

		n, err := NewService(testConfig(srv.URL), ms).SyncOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 1, ms.calls)
	})

	t.Run("application error code", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"code": 500, "data": {}}`))
		}))
		defer srv.Close()

		_, err := NewService(testConfig(srv.URL), &mockStore{}).SyncOnce(context.Background())
		assert.ErrorContains(t, err, "non-zero application code")
	})
}

func TestSyncOnce_WritesAdvisors(t *testing.T) {
	srv, _ := pagedServer(t, directoryItems, nil, nil)
	st := store.NewGormStore(dbtest.New(t))
	ctx := context.Background()

	// An advisor created lazily by a transition gets its name filled in.
	_, err := st.GetOrCreateAdvisor(ctx, 3)
	require.NoError(t, err)

	svc := NewService(testConfig(srv.URL), st)
	_, err = svc.SyncOnce(ctx)
	require.NoError(t, err)
	_, err = svc.SyncOnce(ctx)
	require.NoError(t, err)

	advisor, err := st.FindAdvisor(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Marta", advisor.Name)

	var count int64
	require.NoError(t, st.DB().Model(&model.Advisor{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}
