package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"workforce-status-backend/internal/model"
)

// OpenOccupancies returns every open interval of the advisor with its state kind loaded.
// More than one row means the single-open invariant is broken; callers surface that.
func (s *gormStore) OpenOccupancies(ctx context.Context, advisorID int64) ([]model.StateOccupancy, error) {
	var open []model.StateOccupancy
	if err := s.db.WithContext(ctx).
		Preload("StateKind").
		Where("advisor_id = ? AND ended_at IS NULL", advisorID).
		Order("started_at ASC").
		Find(&open).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch open occupancies for advisor %d: %w", advisorID, err)
	}
	return open, nil
}

func (s *gormStore) AllOpenOccupancies(ctx context.Context) ([]model.StateOccupancy, error) {
	var open []model.StateOccupancy
	if err := s.db.WithContext(ctx).
		Preload("StateKind").
		Where("ended_at IS NULL").
		Order("advisor_id ASC").
		Find(&open).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch open occupancies: %w", err)
	}
	return open, nil
}

func (s *gormStore) CreateOccupancy(ctx context.Context, occ *model.StateOccupancy) error {
	occ.StartedAt = occ.StartedAt.UTC()
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(occ).Error; err != nil {
		return fmt.Errorf("failed to create occupancy for advisor %d: %w", occ.AdvisorID, err)
	}
	return nil
}

// CloseOccupancy writes the end timestamp and derived fields. Rows that are already closed are
// left untouched and reported as ErrAlreadyClosed.
func (s *gormStore) CloseOccupancy(ctx context.Context, occ *model.StateOccupancy) error {
	if occ.EndedAt == nil {
		return fmt.Errorf("occupancy %d: missing end timestamp", occ.ID)
	}
	endedAt := occ.EndedAt.UTC()
	occ.EndedAt = &endedAt

	res := s.db.WithContext(ctx).
		Model(&model.StateOccupancy{}).
		Where("id = ? AND ended_at IS NULL", occ.ID).
		Updates(map[string]any{
			"ended_at":           endedAt,
			"duration_seconds":   occ.DurationSeconds,
			"limit_minutes":      occ.LimitMinutes,
			"difference_minutes": occ.DifferenceMinutes,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to close occupancy %d: %w", occ.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("occupancy %d: %w", occ.ID, ErrAlreadyClosed)
	}
	return nil
}

// OccupanciesOverlapping returns the advisor's intervals that started before end and were
// still open at start, in start order.
func (s *gormStore) OccupanciesOverlapping(ctx context.Context, advisorID int64, start, end time.Time) ([]model.StateOccupancy, error) {
	var occs []model.StateOccupancy
	if err := s.db.WithContext(ctx).
		Preload("StateKind").
		Where("advisor_id = ? AND started_at < ? AND (ended_at IS NULL OR ended_at > ?)", advisorID, end.UTC(), start.UTC()).
		Order("started_at ASC").
		Find(&occs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch occupancies for advisor %d: %w", advisorID, err)
	}
	return occs, nil
}

// OccupanciesStartedBetween returns intervals whose start lies in [start, end).
func (s *gormStore) OccupanciesStartedBetween(ctx context.Context, advisorID int64, start, end time.Time) ([]model.StateOccupancy, error) {
	var occs []model.StateOccupancy
	if err := s.db.WithContext(ctx).
		Preload("StateKind").
		Where("advisor_id = ? AND started_at >= ? AND started_at < ?", advisorID, start.UTC(), end.UTC()).
		Order("started_at ASC").
		Find(&occs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch occupancies for advisor %d: %w", advisorID, err)
	}
	return occs, nil
}
