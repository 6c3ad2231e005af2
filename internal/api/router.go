package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"workforce-status-backend/internal/auth"
	"workforce-status-backend/internal/mw"
)

// RouterConfig holds the cross-cutting settings of the HTTP surface.
type RouterConfig struct {
	// Limiter throttles /api per client IP. Nil disables throttling.
	Limiter *mw.IPRateLimiter
	// TrustedProxies may set X-Forwarded-For. Empty means the socket address is the client IP.
	TrustedProxies []string
	CacheTTL       time.Duration
	// AppSecret is required in mw.AppSecretHeader on /api routes when set.
	AppSecret string
	// Issuer verifies bearer tokens. Nil disables token auth and the role gate.
	Issuer          *auth.Issuer
	SupervisorRoles []string
	// Relay serves the realtime presence relay under RelayPrefix when set.
	Relay       http.Handler
	RelayPrefix string
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		slog.Error("invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery(), mw.RequestLogger(), mw.Metrics())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.Relay != nil {
		r.Any(cfg.RelayPrefix+"/*path", gin.WrapH(cfg.Relay))
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	supervisor := func(c *gin.Context) { c.Next() }
	api := r.Group("/api")
	if cfg.Limiter != nil {
		api.Use(mw.RateLimiter(cfg.Limiter))
	}
	api.Use(mw.AppSecret(cfg.AppSecret))
	if cfg.Issuer != nil {
		// registered before Authenticate so a stale access token does not block renewal
		api.POST("/auth/refresh", RefreshToken(cfg.Issuer))
		api.Use(mw.Authenticate(cfg.Issuer, false))
		supervisor = mw.RequireRole(cfg.SupervisorRoles...)
	}
	{
		states := api.Group("/states", mw.FlushOnWrite(cacheStore))
		states.GET("", caching, h.ListStates)
		states.POST("", supervisor, h.CreateState)
		states.PUT("/:id", supervisor, h.UpdateState)

		api.GET("/state-configs", h.ListStateConfigs)
		api.PUT("/state-configs", supervisor, h.PutStateConfig)

		advisor := api.Group("/advisors/:advisor_id")
		advisor.GET("/states", h.GetAdvisorStates)
		advisor.POST("/transitions", h.PostTransition)
		advisor.POST("/close", h.PostClose)
		advisor.GET("/status", h.GetStatus)
		advisor.GET("/day", h.GetDay)
		advisor.GET("/history", h.GetHistory)
		advisor.GET("/schedule", h.GetSchedule)
		advisor.POST("/shift/entry", h.PostShiftEntry)
		advisor.POST("/shift/exit", h.PostShiftExit)

		api.GET("/presence", h.GetPresence)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", supervisor, h.PutSubscription)
		api.DELETE("/subscriptions", supervisor, h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
