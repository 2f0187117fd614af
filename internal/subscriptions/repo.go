package subscriptions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simmerworks/simmer-backend/pkg/db/models"
	"github.com/simmerworks/simmer-backend/pkg/enums"
)

// Repository exposes persistence for the canonical per-user subscription
// record. Writes are keyed by user id: a single ON CONFLICT upsert keeps at
// most one row per user regardless of write interleaving.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a subscriptions repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// mutableColumns are fully overwritten on every accepted billing event.
// There is no partial-field merge.
var mutableColumns = []string{
	"status",
	"trial_ends_at",
	"current_period_ends_at",
	"provider",
	"provider_customer_id",
	"provider_subscription_id",
	"updated_at",
}

// Upsert writes the record as the current truth for the user. Reapplying the
// same event yields a byte-identical row, which is what makes at-least-once
// webhook delivery safe.
func (r *Repository) Upsert(ctx context.Context, record *models.UserSubscription) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(mutableColumns),
		}).
		Create(record).Error
}

// FindByUserID loads the user's subscription record, returning nil when the
// user has no billing history.
func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.UserSubscription, error) {
	var record models.UserSubscription
	err := r.db.WithContext(ctx).First(&record, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindUserIDByProviderSubscriptionID resolves a provider subscription handle
// back to the owning user.
func (r *Repository) FindUserIDByProviderSubscriptionID(ctx context.Context, subscriptionID string) (uuid.UUID, bool, error) {
	return r.findUserID(ctx, "provider_subscription_id = ?", subscriptionID)
}

// FindUserIDByProviderCustomerID resolves a provider customer handle back to
// the owning user.
func (r *Repository) FindUserIDByProviderCustomerID(ctx context.Context, customerID string) (uuid.UUID, bool, error) {
	return r.findUserID(ctx, "provider_customer_id = ?", customerID)
}

func (r *Repository) findUserID(ctx context.Context, query string, arg string) (uuid.UUID, bool, error) {
	var record models.UserSubscription
	err := r.db.WithContext(ctx).Select("user_id").First(&record, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return record.UserID, true, nil
}

// linkColumns are the only columns a customer link may touch on an existing
// row. Status and period fields belong to the event upsert path.
var linkColumns = []string{
	"provider",
	"provider_customer_id",
	"updated_at",
}

// UpsertCustomerLink associates a provider customer with a user without
// disturbing an existing status. A single conditional write keeps the link
// safe against a concurrent webhook upsert on the same row. This is what
// makes later webhooks for that customer resolvable before the first
// subscription snapshot lands.
func (r *Repository) UpsertCustomerLink(ctx context.Context, userID uuid.UUID, provider enums.BillingProvider, customerID string) error {
	record := &models.UserSubscription{
		UserID:             userID,
		Status:             enums.SubscriptionStatusTrialing,
		Provider:           provider,
		ProviderCustomerID: &customerID,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(linkColumns),
		}).
		Create(record).Error
}
