package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"workforce-status-backend/internal/presence"
	"workforce-status-backend/internal/store"
	"workforce-status-backend/internal/workforce"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	engine  *workforce.Engine
	store   store.Store
	hub     *presence.Hub
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(engine *workforce.Engine, s store.Store, hub *presence.Hub, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		engine:  engine,
		store:   s,
		hub:     hub,
		webpush: webpushOptions,
	}
}

func advisorParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("advisor_id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid advisor id"})
		return 0, false
	}
	return id, true
}

// dateQuery reads ?date=YYYY-MM-DD as a local day, defaulting to today.
func (h *Handler) dateQuery(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		day, _ := h.engine.Today()
		return day, true
	}
	day, err := workforce.ParseDate(raw, h.engine.Location())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return time.Time{}, false
	}
	return day, true
}

func boolQuery(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}

// respondError maps domain errors to status codes. Anything unrecognised is a 500 whose
// detail is logged, not returned.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workforce.ErrUnknownState),
		errors.Is(err, workforce.ErrInvalidStateKind),
		errors.Is(err, workforce.ErrNoEntryYet):
		status = http.StatusBadRequest
	case errors.Is(err, workforce.ErrAdvisorNotFound),
		errors.Is(err, workforce.ErrNoOpenState),
		errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workforce.ErrAlreadyMarked),
		errors.Is(err, gorm.ErrDuplicatedKey):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
