package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type transitionRequest struct {
	State    string         `json:"state" binding:"required"`
	Metadata map[string]any `json:"metadata"`
}

// PostTransition handles POST /api/advisors/:advisor_id/transitions.
// It answers 201 when a new occupancy was opened and 200 when the state was already current.
func (h *Handler) PostTransition(c *gin.Context) {
	advisorID, ok := advisorParam(c)
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	occ, created, err := h.engine.Transition(c.Request.Context(), advisorID, req.State, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"created": created, "occupancy": newOccupancyResponse(occ)})
}

// PostClose handles POST /api/advisors/:advisor_id/close.
func (h *Handler) PostClose(c *gin.Context) {
	advisorID, ok := advisorParam(c)
	if !ok {
		return
	}
	occ, err := h.engine.Close(c.Request.Context(), advisorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"occupancy": newOccupancyResponse(occ)})
}

// GetStatus handles GET /api/advisors/:advisor_id/status.
func (h *Handler) GetStatus(c *gin.Context) {
	advisorID, ok := advisorParam(c)
	if !ok {
		return
	}
	status, err := h.engine.CurrentStatus(c.Request.Context(), advisorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": status})
}

// GetDay handles GET /api/advisors/:advisor_id/day?date=.
func (h *Handler) GetDay(c *gin.Context) {
	advisorID, ok := advisorParam(c)
	if !ok {
		return
	}
	day, ok := h.dateQuery(c)
	if !ok {
		return
	}
	breakdown, err := h.engine.DailyBreakdown(c.Request.Context(), advisorID, day)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

// GetHistory handles GET /api/advisors/:advisor_id/history?date=.
func (h *Handler) GetHistory(c *gin.Context) {
	advisorID, ok := advisorParam(c)
	if !ok {
		return
	}
	day, ok := h.dateQuery(c)
	if !ok {
		return
	}
	entries, err := h.engine.History(c.Request.Context(), advisorID, day)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
