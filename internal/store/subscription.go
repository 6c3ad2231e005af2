package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"workforce-status-backend/internal/model"
)

// SaveSubscription creates or replaces a subscription and the advisors it follows.
func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription, advisorIDs []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Omit(clause.Associations).Create(sub).Error; err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}

		var advisors []model.Advisor
		if len(advisorIDs) > 0 {
			if err := tx.Find(&advisors, advisorIDs).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(sub).Association("Advisors").Replace(&advisors); err != nil {
			return fmt.Errorf("failed to replace subscribed advisors: %w", err)
		}
		return nil
	})
}

func (s *gormStore) FindSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).Preload("Advisors").First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := model.PushSubscription{Endpoint: endpoint}
		if err := tx.Model(&sub).Association("Advisors").Clear(); err != nil {
			return err
		}
		return tx.Delete(&sub).Error
	})
}

func (s *gormStore) SubscriptionsForAdvisor(ctx context.Context, advisorID int64) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).
		Joins("JOIN subscription_advisor_mapping sam ON sam.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sam.advisor_id = ?", advisorID).
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for advisor %d: %w", advisorID, err)
	}
	return subs, nil
}
