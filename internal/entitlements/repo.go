package entitlements

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simmerworks/simmer-backend/pkg/db/models"
)

// Repository persists the owner-controlled enterprise grant. The billing
// webhook path never writes through this repo.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an entitlements repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByUserID loads the user's entitlement row, returning nil when absent.
func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.UserEntitlement, error) {
	var record models.UserEntitlement
	err := r.db.WithContext(ctx).First(&record, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// SetEnterpriseGrant upserts the grant flag. Granting stamps the actor and
// time; revoking clears both.
func (r *Repository) SetEnterpriseGrant(ctx context.Context, userID uuid.UUID, granted bool, actorID *uuid.UUID, at time.Time) error {
	record := &models.UserEntitlement{
		UserID:            userID,
		EnterpriseGranted: granted,
	}
	if granted {
		record.GrantedBy = actorID
		grantedAt := at
		record.GrantedAt = &grantedAt
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"enterprise_granted", "granted_by", "granted_at", "updated_at"}),
		}).
		Create(record).Error
}
