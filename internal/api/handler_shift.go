package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"workforce-status-backend/internal/workforce"
)

// GetSchedule handles GET /api/advisors/:advisor_id/schedule?date=.
func (h *Handler) GetSchedule(c *gin.Context) {
	advisorID, ok := advisorParam(c)
	if !ok {
		return
	}
	day, ok := h.dateQuery(c)
	if !ok {
		return
	}
	lookup, err := h.engine.CurrentSchedule(c.Request.Context(), advisorID, day)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lookup)
}

// PostShiftEntry handles POST /api/advisors/:advisor_id/shift/entry?force=.
func (h *Handler) PostShiftEntry(c *gin.Context) {
	h.mark(c, h.engine.MarkEntry)
}

// PostShiftExit handles POST /api/advisors/:advisor_id/shift/exit?force=.
func (h *Handler) PostShiftExit(c *gin.Context) {
	h.mark(c, h.engine.MarkExit)
}

type markFunc func(ctx context.Context, advisorID int64, forced bool) (*workforce.MarkResult, error)

func (h *Handler) mark(c *gin.Context, fn markFunc) {
	advisorID, ok := advisorParam(c)
	if !ok {
		return
	}
	res, err := fn(c.Request.Context(), advisorID, boolQuery(c, "force"))
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"message": res.Message, "record": res.Record})
}
