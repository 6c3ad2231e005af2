package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetPresence handles GET /api/presence.
func (h *Handler) GetPresence(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": h.hub.Snapshot(), "leaders": h.hub.Leaders()})
}
