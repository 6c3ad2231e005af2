package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Workforce  WorkforceConfig  `yaml:"workforce"`
	Auth       AuthConfig       `yaml:"auth"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Watcher    WatcherConfig    `yaml:"watcher"`
	Directory  DirectoryConfig  `yaml:"directory"`
	Realtime   RealtimeConfig   `yaml:"realtime"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	// RateLimitIdleMinutes is how long an address keeps its limiter after its last request.
	RateLimitIdleMinutes int `yaml:"rate_limit_idle_minutes"`
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is believed. Empty trusts none.
	TrustedProxies []string `yaml:"trusted_proxies"`
	// AppSecret is compared against the X-App-Secret header on /api routes. Empty disables the check.
	AppSecret string `yaml:"app_secret"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres | sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"` // silent | error | warn | info
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | text
}

// WorkforceConfig holds the state engine settings.
type WorkforceConfig struct {
	Timezone                string         `yaml:"timezone"`
	Location                *time.Location `yaml:"-"`
	CatalogTTLSeconds       int            `yaml:"catalog_ttl_seconds"`
	OverrideCacheSize       int            `yaml:"override_cache_size"`
	OverrideCacheTTLSeconds int            `yaml:"override_cache_ttl_seconds"`
	OnTimeToleranceMinutes  int            `yaml:"on_time_tolerance_minutes"`
	SeedCatalog             bool           `yaml:"seed_catalog"`
}

// AuthConfig holds the token verification settings.
type AuthConfig struct {
	Enabled         bool     `yaml:"enabled"`
	JWTSecret       string   `yaml:"jwt_secret"`
	Issuer          string   `yaml:"issuer"`
	AccessMinutes   int      `yaml:"access_minutes"`
	RefreshDays     int      `yaml:"refresh_days"`
	SupervisorRoles []string `yaml:"supervisor_roles"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// WatcherConfig controls the periodic overage scan.
type WatcherConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
	AlertTTLMinutes int           `yaml:"alert_ttl_minutes"`
}

// DirectoryConfig describes the upstream advisor directory that is synced into the advisors table.
type DirectoryConfig struct {
	Enabled         bool             `yaml:"enabled"`
	IntervalSeconds int              `yaml:"interval_seconds"`
	Interval        time.Duration    `yaml:"-"`
	HTTPProxy       string           `yaml:"http_proxy"`
	Request         DirectoryRequest `yaml:"request"`
}

// DirectoryRequest defines the HTTP request for the directory sync.
type DirectoryRequest struct {
	URL      string            `yaml:"url"`
	Headers  map[string]string `yaml:"headers"`
	PageSize int               `yaml:"page_size"`
	Payload  map[string]any    `yaml:"payload"`
}

// RealtimeConfig controls the SockJS presence relay.
type RealtimeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("WORKFORCE_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("WORKFORCE_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("WORKFORCE_APP_SECRET"); v != "" {
		cfg.Server.AppSecret = v
	}
	if v := os.Getenv("WORKFORCE_VAPID_PUBLIC_KEY"); v != "" {
		cfg.Push.PublicKey = v
	}
	if v := os.Getenv("WORKFORCE_VAPID_PRIVATE_KEY"); v != "" {
		cfg.Push.PrivateKey = v
	}
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}
	if cfg.Server.RateLimitIdleMinutes <= 0 {
		cfg.Server.RateLimitIdleMinutes = 10
	}
	for _, p := range cfg.Server.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return fmt.Errorf("invalid trusted proxy %q", p)
			}
		}
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	if cfg.Workforce.Timezone == "" {
		cfg.Workforce.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(cfg.Workforce.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", cfg.Workforce.Timezone, err)
	}
	cfg.Workforce.Location = loc
	if cfg.Workforce.CatalogTTLSeconds <= 0 {
		cfg.Workforce.CatalogTTLSeconds = 30
	}
	if cfg.Workforce.OverrideCacheSize <= 0 {
		cfg.Workforce.OverrideCacheSize = 1024
	}
	if cfg.Workforce.OverrideCacheTTLSeconds <= 0 {
		cfg.Workforce.OverrideCacheTTLSeconds = 60
	}
	if cfg.Workforce.OnTimeToleranceMinutes <= 0 {
		cfg.Workforce.OnTimeToleranceMinutes = 2
	}

	if cfg.Auth.AccessMinutes <= 0 {
		cfg.Auth.AccessMinutes = 60
	}
	if cfg.Auth.RefreshDays <= 0 {
		cfg.Auth.RefreshDays = 7
	}
	if len(cfg.Auth.SupervisorRoles) == 0 {
		cfg.Auth.SupervisorRoles = []string{"admin", "leader"}
	}
	if cfg.Auth.Enabled && cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must be set when auth is enabled")
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		slog.Warn("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Watcher.IntervalSeconds <= 0 {
		cfg.Watcher.IntervalSeconds = 60
	}
	cfg.Watcher.Interval = time.Duration(cfg.Watcher.IntervalSeconds) * time.Second
	if cfg.Watcher.AlertTTLMinutes <= 0 {
		cfg.Watcher.AlertTTLMinutes = 24 * 60
	}

	if cfg.Directory.IntervalSeconds <= 0 {
		cfg.Directory.IntervalSeconds = 900
	}
	cfg.Directory.Interval = time.Duration(cfg.Directory.IntervalSeconds) * time.Second
	if cfg.Directory.Request.PageSize <= 0 {
		cfg.Directory.Request.PageSize = 100
	}

	if cfg.Realtime.Prefix == "" {
		cfg.Realtime.Prefix = "/realtime"
	}
	return nil
}

// SetupLogger builds the process logger from the log section and installs it as the slog default.
func SetupLogger(cfg LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
