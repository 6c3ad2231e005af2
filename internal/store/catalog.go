package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"workforce-status-backend/internal/model"
)

func (s *gormStore) ListStateKinds(ctx context.Context, activeOnly bool) ([]model.StateKind, error) {
	q := s.db.WithContext(ctx).Order("sort_order ASC").Order("id ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}

	var kinds []model.StateKind
	if err := q.Find(&kinds).Error; err != nil {
		return nil, fmt.Errorf("failed to list state kinds: %w", err)
	}
	return kinds, nil
}

func (s *gormStore) FindStateKind(ctx context.Context, id int64) (*model.StateKind, error) {
	var kind model.StateKind
	if err := s.db.WithContext(ctx).First(&kind, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &kind, nil
}

// FindActiveStateKind looks up an active kind by its already normalized slug.
func (s *gormStore) FindActiveStateKind(ctx context.Context, slug string) (*model.StateKind, error) {
	var kind model.StateKind
	if err := s.db.WithContext(ctx).
		Where("slug = ? AND active = ?", slug, true).
		First(&kind).Error; err != nil {
		return nil, notFound(err)
	}
	return &kind, nil
}

func (s *gormStore) SaveStateKind(ctx context.Context, kind *model.StateKind) error {
	if err := s.db.WithContext(ctx).Save(kind).Error; err != nil {
		return fmt.Errorf("failed to save state kind %q: %w", kind.Slug, err)
	}
	return nil
}

// SeedStateKinds inserts the given kinds only when the catalog is empty and reports how many were written.
func (s *gormStore) SeedStateKinds(ctx context.Context, kinds []model.StateKind) (int, error) {
	seeded := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.StateKind{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 || len(kinds) == 0 {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&kinds).Error; err != nil {
			return err
		}
		seeded = len(kinds)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to seed state kinds: %w", err)
	}
	return seeded, nil
}

func (s *gormStore) FindStateConfig(ctx context.Context, advisorID, stateKindID int64) (*model.AdvisorStateConfig, error) {
	var cfg model.AdvisorStateConfig
	if err := s.db.WithContext(ctx).
		Where("advisor_id = ? AND state_kind_id = ?", advisorID, stateKindID).
		First(&cfg).Error; err != nil {
		return nil, notFound(err)
	}
	return &cfg, nil
}

func (s *gormStore) ListStateConfigs(ctx context.Context, advisorID int64) ([]model.AdvisorStateConfig, error) {
	var cfgs []model.AdvisorStateConfig
	if err := s.db.WithContext(ctx).
		Where("advisor_id = ?", advisorID).
		Order("state_kind_id ASC").
		Find(&cfgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list state configs for advisor %d: %w", advisorID, err)
	}
	return cfgs, nil
}

// UpsertStateConfig creates or replaces the override for the (advisor, state kind) pair.
func (s *gormStore) UpsertStateConfig(ctx context.Context, cfg *model.AdvisorStateConfig) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "advisor_id"}, {Name: "state_kind_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"active", "color_override", "updated_at"}),
	}).Create(cfg).Error; err != nil {
		return fmt.Errorf("failed to upsert state config for advisor %d: %w", cfg.AdvisorID, err)
	}
	return nil
}
