package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

const (
	SubscriptionActive   = "active"
	SubscriptionInactive = "inactive"
)

// Subscription is a user's billing plan, one row per user.
type Subscription struct {
	UserID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"user_id"`
	Plan             string     `gorm:"type:varchar(16);not null;default:free" json:"plan" validate:"oneof=free pro enterprise"`
	Status           string     `gorm:"type:varchar(16);not null;default:active" json:"status"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
