package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"workforce-status-backend/internal/model"
)

// ListStates handles GET /api/states. ?active=false includes inactive kinds.
func (h *Handler) ListStates(c *gin.Context) {
	activeOnly := true
	if v, err := strconv.ParseBool(c.DefaultQuery("active", "true")); err == nil {
		activeOnly = v
	}

	kinds, err := h.engine.Catalog().List(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]stateKindResponse, len(kinds))
	for i, k := range kinds {
		out[i] = newStateKindResponse(k)
	}
	c.JSON(http.StatusOK, out)
}

type stateKindRequest struct {
	Slug         *string `json:"slug"`
	Name         *string `json:"name"`
	Color        *string `json:"color"`
	Icon         *string `json:"icon"`
	SortOrder    *int    `json:"sort_order"`
	Active       *bool   `json:"active"`
	LimitMinutes *int    `json:"limit_minutes"`
	// ClearLimit removes the daily cap on update.
	ClearLimit bool `json:"clear_limit"`
}

func (r stateKindRequest) apply(k *model.StateKind) {
	if r.Slug != nil {
		k.Slug = *r.Slug
	}
	if r.Name != nil {
		k.Name = *r.Name
	}
	if r.Color != nil {
		k.Color = *r.Color
	}
	if r.Icon != nil {
		k.Icon = *r.Icon
	}
	if r.SortOrder != nil {
		k.SortOrder = *r.SortOrder
	}
	if r.Active != nil {
		k.Active = *r.Active
	}
	if r.LimitMinutes != nil {
		limit := *r.LimitMinutes
		k.LimitMinutes = &limit
	}
	if r.ClearLimit {
		k.LimitMinutes = nil
	}
}

// CreateState handles POST /api/states.
func (h *Handler) CreateState(c *gin.Context) {
	var req stateKindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	kind := model.StateKind{Active: true, SortOrder: model.DefaultStateSortOrder}
	req.apply(&kind)
	if err := h.engine.Catalog().Save(c.Request.Context(), &kind); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newStateKindResponse(kind))
}

// UpdateState handles PUT /api/states/:id. Omitted fields keep their value.
func (h *Handler) UpdateState(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state id"})
		return
	}
	var req stateKindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	kind, err := h.store.FindStateKind(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	req.apply(kind)
	if err := h.engine.Catalog().Save(c.Request.Context(), kind); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStateKindResponse(*kind))
}

// ListStateConfigs handles GET /api/state-configs?advisor=.
func (h *Handler) ListStateConfigs(c *gin.Context) {
	advisorID, err := strconv.ParseInt(c.Query("advisor"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "advisor is required"})
		return
	}

	configs, err := h.store.ListStateConfigs(c.Request.Context(), advisorID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]stateConfigResponse, len(configs))
	for i, cfg := range configs {
		out[i] = newStateConfigResponse(cfg)
	}
	c.JSON(http.StatusOK, out)
}

type stateConfigRequest struct {
	AdvisorID     int64   `json:"advisor_id" binding:"required"`
	StateKindID   int64   `json:"state_kind_id" binding:"required"`
	Active        *bool   `json:"active"`
	ColorOverride *string `json:"color_override"`
}

// PutStateConfig handles PUT /api/state-configs.
func (h *Handler) PutStateConfig(c *gin.Context) {
	var req stateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	ctx := c.Request.Context()

	if _, err := h.store.FindStateKind(ctx, req.StateKindID); err != nil {
		respondError(c, err)
		return
	}

	cfg := model.AdvisorStateConfig{
		AdvisorID:     req.AdvisorID,
		StateKindID:   req.StateKindID,
		Active:        true,
		ColorOverride: req.ColorOverride,
	}
	if req.Active != nil {
		cfg.Active = *req.Active
	}
	if err := h.engine.Resolver().SaveConfig(ctx, &cfg); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStateConfigResponse(cfg))
}

// GetAdvisorStates handles GET /api/advisors/:advisor_id/states.
func (h *Handler) GetAdvisorStates(c *gin.Context) {
	advisorID, ok := advisorParam(c)
	if !ok {
		return
	}
	summary, err := h.engine.Summary(c.Request.Context(), advisorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"advisor_id": advisorID, "states": summary})
}
