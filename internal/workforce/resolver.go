package workforce

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"workforce-status-backend/internal/model"
	"workforce-status-backend/internal/store"
)

// LimitSource tells where an effective limit came from.
type LimitSource string

const (
	LimitFromAdvisor LimitSource = "advisor"
	LimitFromCatalog LimitSource = "catalog"
)

type configKey struct {
	advisorID   int64
	stateKindID int64
}

// Resolver computes the effective limit and color of a state kind for one advisor.
// Override rows are cached in an expiring LRU; a nil entry records that no row exists.
type Resolver struct {
	store   store.Store
	configs *expirable.LRU[configKey, *model.AdvisorStateConfig]
}

// NewResolver creates a resolver caching up to size override lookups for ttl.
func NewResolver(s store.Store, size int, ttl time.Duration) *Resolver {
	return &Resolver{
		store:   s,
		configs: expirable.NewLRU[configKey, *model.AdvisorStateConfig](size, nil, ttl),
	}
}

// within returns a resolver reading through st and sharing this resolver's cache.
func (r *Resolver) within(st store.Store) *Resolver {
	return &Resolver{store: st, configs: r.configs}
}

func (r *Resolver) config(ctx context.Context, advisorID, stateKindID int64) *model.AdvisorStateConfig {
	key := configKey{advisorID: advisorID, stateKindID: stateKindID}
	if cfg, ok := r.configs.Get(key); ok {
		overrideCacheTotal.WithLabelValues("hit").Inc()
		return cfg
	}
	overrideCacheTotal.WithLabelValues("miss").Inc()

	cfg, err := r.store.FindStateConfig(ctx, advisorID, stateKindID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			// Degrade to catalog defaults and retry on the next lookup.
			slog.Warn("override lookup failed", "advisor_id", advisorID, "state_kind_id", stateKindID, "error", err)
			return nil
		}
		cfg = nil
	}
	r.configs.Add(key, cfg)
	return cfg
}

// Limit returns the effective daily limit in minutes, nil meaning no cap. Overrides never
// carry a limit of their own: an active override still yields the kind's default.
func (r *Resolver) Limit(ctx context.Context, advisorID int64, kind *model.StateKind) (*int, LimitSource) {
	source := LimitFromCatalog
	if cfg := r.config(ctx, advisorID, kind.ID); cfg != nil && cfg.Active {
		source = LimitFromAdvisor
	}
	if kind.LimitMinutes == nil {
		return nil, source
	}
	limit := *kind.LimitMinutes
	return &limit, source
}

// Color returns the advisor's color override when one is set, otherwise the kind color.
func (r *Resolver) Color(ctx context.Context, advisorID int64, kind *model.StateKind) string {
	if cfg := r.config(ctx, advisorID, kind.ID); cfg != nil && cfg.ColorOverride != nil {
		if c := strings.TrimSpace(*cfg.ColorOverride); c != "" {
			return c
		}
	}
	if kind.Color == "" {
		return model.DefaultStateColor
	}
	return kind.Color
}

// SaveConfig writes an override and evicts its cached lookup.
func (r *Resolver) SaveConfig(ctx context.Context, cfg *model.AdvisorStateConfig) error {
	if cfg.ColorOverride != nil && strings.TrimSpace(*cfg.ColorOverride) == "" {
		cfg.ColorOverride = nil
	}
	err := r.store.UpsertStateConfig(ctx, cfg)
	r.Forget(cfg.AdvisorID, cfg.StateKindID)
	return err
}

// Forget evicts the cached override of one (advisor, kind) pair.
func (r *Resolver) Forget(advisorID, stateKindID int64) {
	r.configs.Remove(configKey{advisorID: advisorID, stateKindID: stateKindID})
}
