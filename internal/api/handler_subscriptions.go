package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"workforce-status-backend/internal/model"
	"workforce-status-backend/internal/store"
)

type putSubscriptionRequest struct {
	Endpoint           string  `json:"endpoint" binding:"required"`
	P256DH             string  `json:"p256dh" binding:"required"`
	Auth               string  `json:"auth" binding:"required"`
	SubscribedAdvisors []int64 `json:"subscribed_advisors"`
}

// PutSubscription handles the creation or replacement of a subscription.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if err := h.store.SaveSubscription(c.Request.Context(), &subscription, req.SubscribedAdvisors); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam returns key from the raw query without URL decoding; push endpoints are
// matched byte for byte.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription handles the retrieval of a subscription.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	subscription, err := h.store.FindSubscription(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		} else {
			respondError(c, err)
		}
		return
	}

	advisorIDs := make([]int64, len(subscription.Advisors))
	for i, advisor := range subscription.Advisors {
		advisorIDs[i] = advisor.ID
	}

	c.JSON(http.StatusOK, gin.H{"subscribed_advisors": advisorIDs})
}

// GetVAPIDPublicKey returns the VAPID public key browsers subscribe with.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push notifications are not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
