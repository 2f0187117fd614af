package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/simmerworks/simmer-backend/pkg/enums"
)

// UserSubscription is the canonical per-user subscription record. At most one
// row exists per user; every accepted billing event overwrites the mutable
// fields wholesale. The provider identifier columns double as the lookup keys
// webhooks use to resolve a provider customer back to a user.
type UserSubscription struct {
	UserID                 uuid.UUID                `gorm:"column:user_id;type:uuid;primaryKey"`
	Status                 enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null"`
	TrialEndsAt            *time.Time               `gorm:"column:trial_ends_at"`
	CurrentPeriodEndsAt    *time.Time               `gorm:"column:current_period_ends_at"`
	Provider               enums.BillingProvider    `gorm:"column:provider;type:billing_provider;not null"`
	ProviderCustomerID     *string                  `gorm:"column:provider_customer_id;index"`
	ProviderSubscriptionID *string                  `gorm:"column:provider_subscription_id;index"`
	CreatedAt              time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's pluralization.
func (UserSubscription) TableName() string {
	return "user_subscriptions"
}
