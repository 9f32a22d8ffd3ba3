// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Subscription and OilSelection models.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aromabox/go-aroma-backend/internal/domain"
)

// GetSubscriptionByUser fetches a user's subscription. Returns ErrNotFound
// when the user has none.
func GetSubscriptionByUser(ctx context.Context, db *gorm.DB, userID string) (*domain.Subscription, error) {
	var s domain.Subscription
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSubscription creates or updates the single subscription row of a user.
// The (user_id) unique index makes this an upsert keyed on the owner.
func SaveSubscription(ctx context.Context, db *gorm.DB, userID, planID, startMonth string, autoRenew bool) (*domain.Subscription, error) {
	s := &domain.Subscription{
		ID:         uuid.NewString(),
		UserID:     userID,
		PlanID:     planID,
		Status:     domain.SubscriptionActive,
		StartMonth: startMonth,
		AutoRenew:  autoRenew,
		CreatedAt:  time.Now().UTC(),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"plan_id":     planID,
				"status":      domain.SubscriptionActive,
				"start_month": startMonth,
				"auto_renew":  autoRenew,
				"updated_at":  time.Now().UTC(),
			}),
		}).
		Create(s).Error
	if err != nil {
		return nil, err
	}
	// Re-read so the caller sees the surviving row id after a conflict.
	return GetSubscriptionByUser(ctx, db, userID)
}

// UpdateSubscriptionStatus sets the subscription status. Returns ErrNotFound
// when the user has no subscription.
func UpdateSubscriptionStatus(ctx context.Context, db *gorm.DB, userID, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("user_id = ?", userID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CancelSubscription marks the subscription cancelled and resets its plan to
// defaultPlanID, so a later re-enrollment starts from the default offering.
// Returns ErrNotFound when the user has no subscription.
func CancelSubscription(ctx context.Context, db *gorm.DB, userID, defaultPlanID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"status":     domain.SubscriptionCancelled,
			"plan_id":    defaultPlanID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertSelection writes one (month, device) oil choice. The composite
// unique index on (subscription_id, month_key, device_id) turns repeat
// writes into updates.
func UpsertSelection(ctx context.Context, db *gorm.DB, subscriptionID, monthKey, deviceID, oilID string) error {
	sel := &domain.OilSelection{
		ID:             uuid.NewString(),
		SubscriptionID: subscriptionID,
		MonthKey:       monthKey,
		DeviceID:       deviceID,
		OilID:          oilID,
		CreatedAt:      time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "subscription_id"}, {Name: "month_key"}, {Name: "device_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"oil_id":     oilID,
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(sel).Error
}

// UpsertSelections writes a batch of oil choices inside one transaction.
func UpsertSelections(ctx context.Context, db *gorm.DB, subscriptionID string, picks map[string]map[string]string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for monthKey, byDevice := range picks {
			for deviceID, oilID := range byDevice {
				if err := UpsertSelection(ctx, tx, subscriptionID, monthKey, deviceID, oilID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ListSelections returns every stored oil choice of a subscription.
func ListSelections(ctx context.Context, db *gorm.DB, subscriptionID string) ([]domain.OilSelection, error) {
	var out []domain.OilSelection
	err := db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("month_key ASC, device_id ASC").
		Find(&out).Error
	return out, err
}

// ClearSelections removes all stored oil choices of a subscription.
func ClearSelections(ctx context.Context, db *gorm.DB, subscriptionID string) error {
	return db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Delete(&domain.OilSelection{}).Error
}
