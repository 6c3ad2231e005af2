package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"workforce-status-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB
	// InTx runs fn inside a single database transaction. The Store passed to fn is bound to it.
	InTx(ctx context.Context, fn func(tx Store) error) error

	GetOrCreateAdvisor(ctx context.Context, advisorID int64) (*model.Advisor, error)
	FindAdvisor(ctx context.Context, advisorID int64) (*model.Advisor, error)
	LockAdvisor(ctx context.Context, advisorID int64) (*model.Advisor, error)
	UpsertDirectory(ctx context.Context, sites []model.Site, advisors []model.Advisor) error

	ListStateKinds(ctx context.Context, activeOnly bool) ([]model.StateKind, error)
	FindStateKind(ctx context.Context, id int64) (*model.StateKind, error)
	FindActiveStateKind(ctx context.Context, slug string) (*model.StateKind, error)
	SaveStateKind(ctx context.Context, kind *model.StateKind) error
	SeedStateKinds(ctx context.Context, kinds []model.StateKind) (int, error)

	FindStateConfig(ctx context.Context, advisorID, stateKindID int64) (*model.AdvisorStateConfig, error)
	ListStateConfigs(ctx context.Context, advisorID int64) ([]model.AdvisorStateConfig, error)
	UpsertStateConfig(ctx context.Context, cfg *model.AdvisorStateConfig) error

	OpenOccupancies(ctx context.Context, advisorID int64) ([]model.StateOccupancy, error)
	AllOpenOccupancies(ctx context.Context) ([]model.StateOccupancy, error)
	CreateOccupancy(ctx context.Context, occ *model.StateOccupancy) error
	CloseOccupancy(ctx context.Context, occ *model.StateOccupancy) error
	OccupanciesOverlapping(ctx context.Context, advisorID int64, start, end time.Time) ([]model.StateOccupancy, error)
	OccupanciesStartedBetween(ctx context.Context, advisorID int64, start, end time.Time) ([]model.StateOccupancy, error)

	FindShiftRecord(ctx context.Context, advisorID int64, date string) (*model.ShiftRecord, error)
	SaveShiftRecord(ctx context.Context, rec *model.ShiftRecord) error
	AssignmentsOn(ctx context.Context, advisorID int64, date string) ([]model.ShiftAssignment, error)

	SaveSubscription(ctx context.Context, sub *model.PushSubscription, advisorIDs []int64) error
	FindSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForAdvisor(ctx context.Context, advisorID int64) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// notFound maps gorm's missing-row error onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// GetOrCreateAdvisor returns the advisor, creating a minimal record when none exists yet.
func (s *gormStore) GetOrCreateAdvisor(ctx context.Context, advisorID int64) (*model.Advisor, error) {
	advisor, err := s.FindAdvisor(ctx, advisorID)
	if err == nil {
		return advisor, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	created := model.Advisor{ID: advisorID}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&created).Error; err != nil {
		return nil, fmt.Errorf("failed to create advisor %d: %w", advisorID, err)
	}
	return s.FindAdvisor(ctx, advisorID)
}

func (s *gormStore) FindAdvisor(ctx context.Context, advisorID int64) (*model.Advisor, error) {
	var advisor model.Advisor
	if err := s.db.WithContext(ctx).First(&advisor, advisorID).Error; err != nil {
		return nil, notFound(err)
	}
	return &advisor, nil
}

// LockAdvisor reads the advisor row, taking a row lock on dialects that support it.
func (s *gormStore) LockAdvisor(ctx context.Context, advisorID int64) (*model.Advisor, error) {
	q := s.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var advisor model.Advisor
	if err := q.First(&advisor, advisorID).Error; err != nil {
		return nil, notFound(err)
	}
	return &advisor, nil
}

// UpsertDirectory writes the sites and advisors seen upstream in one transaction.
func (s *gormStore) UpsertDirectory(ctx context.Context, sites []model.Site, advisors []model.Advisor) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(sites) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
			}).Omit(clause.Associations).Create(&sites).Error; err != nil {
				return fmt.Errorf("batch upsert sites failed: %w", err)
			}
		}
		if len(advisors) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "role", "site_id", "updated_at"}),
			}).Omit(clause.Associations).Create(&advisors).Error; err != nil {
				return fmt.Errorf("batch upsert advisors failed: %w", err)
			}
		}
		return nil
	})
}
