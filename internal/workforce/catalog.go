package workforce

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"workforce-status-backend/internal/model"
	"workforce-status-backend/internal/parse"
	"workforce-status-backend/internal/store"
)

const (
	catalogActiveKey = "active"
	catalogAllKey    = "all"
)

// Catalog is the read-mostly view of the state kinds table. Transitions never trust it;
// they validate the slug against the table inside their transaction.
type Catalog struct {
	store store.Store
	cache *cache.Cache
}

// NewCatalog creates a catalog whose listings are cached for ttl.
func NewCatalog(s store.Store, ttl time.Duration) *Catalog {
	return &Catalog{
		store: s,
		cache: cache.New(ttl, 2*ttl),
	}
}

// DefaultKinds is the catalog written on first start when the table is empty.
func DefaultKinds() []model.StateKind {
	limit := func(m int) *int { return &m }
	return []model.StateKind{
		{Slug: "check-in", Name: "Check-in", Color: "#2563eb", Icon: "login", SortOrder: 10, Active: true},
		{Slug: "available", Name: "Available", Color: "#16a34a", Icon: "check-circle", SortOrder: 20, Active: true},
		{Slug: "break", Name: "Break", Color: "#f59e0b", Icon: "coffee", SortOrder: 30, Active: true, LimitMinutes: limit(15)},
		{Slug: "lunch", Name: "Lunch", Color: "#ea580c", Icon: "utensils", SortOrder: 40, Active: true, LimitMinutes: limit(60)},
		{Slug: "meeting", Name: "Meeting", Color: "#7c3aed", Icon: "users", SortOrder: 50, Active: true},
		{Slug: "training", Name: "Training", Color: "#0891b2", Icon: "book", SortOrder: 60, Active: true},
		{Slug: "check-out", Name: "Check-out", Color: model.DefaultStateColor, Icon: "logout", SortOrder: 70, Active: true},
	}
}

// Load warms the cache, seeding the default kinds first when asked to and the table is empty.
func (c *Catalog) Load(ctx context.Context, seed bool) error {
	if seed {
		n, err := c.store.SeedStateKinds(ctx, DefaultKinds())
		if err != nil {
			return err
		}
		if n > 0 {
			slog.Info("seeded state catalog", "kinds", n)
		}
	}

	kinds, err := c.List(ctx, true)
	if err != nil {
		return err
	}
	slog.Info("state catalog loaded", "active_kinds", len(kinds))
	return nil
}

// List returns the kinds ordered for display.
func (c *Catalog) List(ctx context.Context, activeOnly bool) ([]model.StateKind, error) {
	key := catalogAllKey
	if activeOnly {
		key = catalogActiveKey
	}
	if cached, found := c.cache.Get(key); found {
		return append([]model.StateKind(nil), cached.([]model.StateKind)...), nil
	}

	kinds, err := c.store.ListStateKinds(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, append([]model.StateKind(nil), kinds...), cache.DefaultExpiration)
	return kinds, nil
}

// Save validates and writes a kind, then drops the cached listings.
func (c *Catalog) Save(ctx context.Context, kind *model.StateKind) error {
	kind.Slug = parse.Slug(kind.Slug)
	if kind.Slug == "" {
		return fmt.Errorf("%w: slug is required", ErrInvalidStateKind)
	}
	if kind.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidStateKind)
	}
	if kind.LimitMinutes != nil && *kind.LimitMinutes < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidStateKind)
	}
	if kind.Color == "" {
		kind.Color = model.DefaultStateColor
	}

	if err := c.store.SaveStateKind(ctx, kind); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}

// Invalidate drops every cached listing.
func (c *Catalog) Invalidate() {
	c.cache.Flush()
}
