package repository

import (
	"context"
	"time"

	"github.com/aether-os/engine/internal/models"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubscriptionRepository interface {
	// Upsert sets the user's plan. A nil periodEnd leaves the stored value alone.
	Upsert(ctx context.Context, userID uuid.UUID, plan, status string, periodEnd *time.Time) error
	GetByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

type subscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Upsert(ctx context.Context, userID uuid.UUID, plan, status string, periodEnd *time.Time) error {
	sub := models.Subscription{UserID: userID, Plan: plan, Status: status, CurrentPeriodEnd: periodEnd}
	cols := []string{"plan", "status", "updated_at"}
	if periodEnd != nil {
		cols = append(cols, "current_period_end")
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}).Create(&sub).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "upsert subscription failed")
	}
	return nil
}

func (r *subscriptionRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).First(&sub, "user_id = ?", userID).Error; err != nil {
		return nil, notFoundOr(err, "subscription")
	}
	return &sub, nil
}
