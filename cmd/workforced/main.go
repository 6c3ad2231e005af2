package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"workforce-status-backend/config"
	"workforce-status-backend/internal/api"
	"workforce-status-backend/internal/auth"
	"workforce-status-backend/internal/db"
	"workforce-status-backend/internal/directory"
	"workforce-status-backend/internal/mw"
	"workforce-status-backend/internal/notification"
	"workforce-status-backend/internal/presence"
	"workforce-status-backend/internal/store"
	"workforce-status-backend/internal/watcher"
	"workforce-status-backend/internal/workforce"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
		os.Exit(1)
	}

	configPath := pflag.StringP("config", "c", "", "path to the YAML configuration file (default $CONFIG_PATH or ./config/config.yaml)")
	pflag.Parse()
	if *configPath == "" {
		*configPath = os.Getenv("CONFIG_PATH")
	}
	if *configPath == "" {
		*configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	logger := config.SetupLogger(cfg.Log)
	logger.Info("configuration loaded", "path", *configPath)

	if err := run(cfg); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server gracefully stopped")
}

func run(cfg *config.Config) error {
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog := workforce.NewCatalog(appStore, time.Duration(cfg.Workforce.CatalogTTLSeconds)*time.Second)
	if err := catalog.Load(ctx, cfg.Workforce.SeedCatalog); err != nil {
		return fmt.Errorf("failed to load state catalog: %w", err)
	}
	resolver := workforce.NewResolver(appStore, cfg.Workforce.OverrideCacheSize,
		time.Duration(cfg.Workforce.OverrideCacheTTLSeconds)*time.Second)
	engine := workforce.NewEngine(appStore, catalog, resolver, workforce.Options{
		Location:        cfg.Workforce.Location,
		OnTimeTolerance: cfg.Workforce.OnTimeToleranceMinutes,
	})

	hub := presence.NewHub(nil)
	engine.Subscribe(hub)

	var (
		webpushOptions *webpush.Options
		alerts         watcher.AlertDispatcher
	)
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions)
		pool.Start(ctx)
		engine.Subscribe(notification.OverLimitObserver(pool))
		alerts = pool
	} else {
		slog.Warn("VAPID keys are not configured, push alerts are disabled")
	}

	if cfg.Watcher.Enabled {
		w := watcher.New(engine, hub, alerts, cfg.Watcher.Interval, time.Duration(cfg.Watcher.AlertTTLMinutes)*time.Minute, nil)
		go w.Run(ctx)
	}

	go directory.NewService(cfg.Directory, appStore).Run(ctx)

	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	go limiter.Run(ctx, time.Minute, time.Duration(cfg.Server.RateLimitIdleMinutes)*time.Minute)

	routerCfg := api.RouterConfig{
		Limiter:        limiter,
		TrustedProxies: cfg.Server.TrustedProxies,
		CacheTTL:       time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		AppSecret:      cfg.Server.AppSecret,
	}
	if cfg.Auth.Enabled {
		routerCfg.Issuer = auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer,
			time.Duration(cfg.Auth.AccessMinutes)*time.Minute,
			time.Duration(cfg.Auth.RefreshDays)*24*time.Hour, nil)
		routerCfg.SupervisorRoles = cfg.Auth.SupervisorRoles
	}
	if cfg.Realtime.Enabled {
		routerCfg.Relay = presence.NewRelay(hub, cfg.Realtime.Prefix)
		routerCfg.RelayPrefix = cfg.Realtime.Prefix
	}

	router := api.NewRouter(api.NewHandler(engine, appStore, hub, webpushOptions), routerCfg)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		slog.Info("shutdown signal received, stopping services", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("HTTP server ListenAndServe: %w", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}
	return nil
}
