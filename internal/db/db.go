package db

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"workforce-status-backend/config"
	"workforce-status-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		dialector = postgres.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	slog.Info("running database migrations", "driver", cfg.Driver)
	if err := Migrate(db); err != nil {
		return nil, err
	}

	slog.Info("database initialization complete")
	return db, nil
}

// Migrate creates or updates every table and applies the open-occupancy index.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Site{},
		&model.Advisor{},
		&model.StateKind{},
		&model.AdvisorStateConfig{},
		&model.StateOccupancy{},
		&model.ShiftRecord{},
		&model.ShiftAssignment{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return applyIndexDDL(db)
}

// OpenOccupancyIndex is the partial unique index that allows a single open occupancy per advisor.
const OpenOccupancyIndex = "ux_state_occupancies_open"

func applyIndexDDL(db *gorm.DB) error {
	ddls := []string{
		// Both postgres and sqlite support partial indexes with this syntax.
		"CREATE UNIQUE INDEX IF NOT EXISTS " + OpenOccupancyIndex +
			" ON state_occupancies (advisor_id) WHERE ended_at IS NULL",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
