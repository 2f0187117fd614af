package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/simmerworks/simmer-backend/pkg/db/models"
)

// Repository appends to and reads the immutable audit trail. There are no
// update or delete operations on this table.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an audit repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Append inserts one audit row. Callers must treat a failure here as fatal
// for the whole request so the provider redelivers and the trail stays
// lossless.
func (r *Repository) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByTargetUser returns the newest entries for a user, capped at limit.
func (r *Repository) ListByTargetUser(ctx context.Context, targetUserID uuid.UUID, limit int) ([]models.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.AuditLogEntry
	err := r.db.WithContext(ctx).
		Where("target_user_id = ?", targetUserID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
