package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"workforce-status-backend/internal/auth"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshToken handles POST /api/auth/refresh, trading a refresh token for a new pair.
func RefreshToken(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		pair, err := issuer.Refresh(req.RefreshToken)
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrWrongType) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		if err != nil {
			slog.Error("failed to refresh token", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, pair)
	}
}
