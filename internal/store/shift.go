package store

import (
	"context"
	"fmt"

	"workforce-status-backend/internal/model"
)

func (s *gormStore) FindShiftRecord(ctx context.Context, advisorID int64, date string) (*model.ShiftRecord, error) {
	var rec model.ShiftRecord
	if err := s.db.WithContext(ctx).
		Where("advisor_id = ? AND date = ?", advisorID, date).
		First(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (s *gormStore) SaveShiftRecord(ctx context.Context, rec *model.ShiftRecord) error {
	if rec.EntryAt != nil {
		t := rec.EntryAt.UTC()
		rec.EntryAt = &t
	}
	if rec.ExitAt != nil {
		t := rec.ExitAt.UTC()
		rec.ExitAt = &t
	}
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("failed to save shift record for advisor %d on %s: %w", rec.AdvisorID, rec.Date, err)
	}
	return nil
}

// AssignmentsOn returns the assignments valid on date, newest first.
func (s *gormStore) AssignmentsOn(ctx context.Context, advisorID int64, date string) ([]model.ShiftAssignment, error) {
	var assignments []model.ShiftAssignment
	if err := s.db.WithContext(ctx).
		Where("advisor_id = ? AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)", advisorID, date, date).
		Order("created_at DESC").
		Order("id DESC").
		Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch assignments for advisor %d: %w", advisorID, err)
	}
	return assignments, nil
}
