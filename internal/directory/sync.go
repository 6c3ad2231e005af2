package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"workforce-status-backend/config"
	"workforce-status-backend/internal/model"
	"workforce-status-backend/internal/parse"
)

// Upserter persists what the directory lists.
type Upserter interface {
	UpsertDirectory(ctx context.Context, sites []model.Site, advisors []model.Advisor) error
}

// Service periodically copies the upstream advisor directory into the advisors table.
type Service struct {
	cfg    config.DirectoryConfig
	store  Upserter
	client *http.Client
}

// NewService creates a directory sync service.
func NewService(cfg config.DirectoryConfig, store Upserter) *Service {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			slog.Warn("invalid directory proxy URL, syncing without proxy", "proxy", cfg.HTTPProxy, "error", err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Service{
		cfg:   cfg,
		store: store,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}

// Run syncs once and then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		slog.Info("directory sync is disabled")
		return
	}
	slog.Info("starting directory sync", "interval", s.cfg.Interval)

	s.runOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("directory sync shutting down")
			return
		case <-timer.C:
			s.runOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	n, err := s.SyncOnce(ctx)
	if err != nil {
		slog.Error("directory sync failed", "error", err)
		return
	}
	slog.Info("directory sync finished", "advisors", n)
}

// SyncOnce fetches every page and upserts the advisors and sites seen. A fetch error with
// nothing fetched leaves the table untouched; a partial fetch still writes what arrived.
func (s *Service) SyncOnce(ctx context.Context) (int, error) {
	var items []Item
	total := 1
	pageSize := s.cfg.Request.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	var fetchErr error
	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page, pageSize)
		if err != nil {
			fetchErr = fmt.Errorf("page %d: %w", page, err)
			break
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		items = append(items, resp.Data.Items...)
		slog.Debug("fetched directory page", "page", page, "items", len(items), "total", total)
	}

	if fetchErr != nil && len(items) == 0 {
		return 0, fetchErr
	}
	if fetchErr != nil {
		slog.Warn("directory fetch incomplete, writing partial result", "items", len(items), "error", fetchErr)
	}

	sites, advisors := collect(items)
	if err := s.store.UpsertDirectory(ctx, sites, advisors); err != nil {
		return 0, err
	}
	return len(advisors), nil
}

// collect dedupes items by id, keeping the last occurrence, and derives the sites they name.
func collect(items []Item) ([]model.Site, []model.Advisor) {
	siteIndex := make(map[int64]int)
	advisorIndex := make(map[int64]int)
	var sites []model.Site
	var advisors []model.Advisor

	for _, it := range items {
		if it.ID <= 0 {
			continue
		}
		if it.SiteID != nil {
			name := parse.DisplayName(it.SiteName)
			if name == "" {
				name = fmt.Sprintf("Site %d", *it.SiteID)
			}
			site := model.Site{ID: *it.SiteID, Name: name}
			if i, ok := siteIndex[site.ID]; ok {
				sites[i] = site
			} else {
				siteIndex[site.ID] = len(sites)
				sites = append(sites, site)
			}
		}

		advisor := model.Advisor{
			ID:     it.ID,
			Name:   parse.DisplayName(it.Name),
			Role:   parse.DisplayName(it.Role),
			SiteID: it.SiteID,
		}
		if i, ok := advisorIndex[advisor.ID]; ok {
			advisors[i] = advisor
		} else {
			advisorIndex[advisor.ID] = len(advisors)
			advisors = append(advisors, advisor)
		}
	}
	return sites, advisors
}

// fetchPage fetches a single page of the directory.
func (s *Service) fetchPage(ctx context.Context, page, pageSize int) (*Response, error) {
	payload := make(map[string]any)
	for k, v := range s.cfg.Request.Payload {
		payload[k] = v
	}
	payload["page"] = page
	payload["pageSize"] = pageSize

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Request.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Request.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal directory response: %w", err)
	}
	if apiResp.Code != 0 {
		return nil, fmt.Errorf("directory returned non-zero application code: %d", apiResp.Code)
	}
	return &apiResp, nil
}
