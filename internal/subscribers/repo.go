package subscribers

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/simmerworks/simmer-backend/pkg/pagination"
)

// SubscriberRow is one row of the admin subscriber listing: the user joined
// with whatever subscription and entitlement state exists for them.
type SubscriberRow struct {
	UserID              uuid.UUID  `json:"user_id"`
	Email               string     `json:"email"`
	Role                string     `json:"role"`
	SubscriptionStatus  *string    `json:"subscription_status"`
	Provider            *string    `json:"provider"`
	TrialEndsAt         *time.Time `json:"trial_ends_at"`
	CurrentPeriodEndsAt *time.Time `json:"current_period_ends_at"`
	EnterpriseGranted   bool       `json:"enterprise_granted"`
	CreatedAt           time.Time  `json:"created_at"`
}

// Page is one page of subscriber rows plus the cursor for the next page.
type Page struct {
	Rows       []SubscriberRow `json:"rows"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// ListFilter narrows the admin listing.
type ListFilter struct {
	Status     string
	Enterprise *bool
	Search     string
	Limit      int
	Cursor     string
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns subscribers ordered newest first with keyset pagination on
// (created_at, id).
func (r *Repository) List(ctx context.Context, filter ListFilter) (*Page, error) {
	normalizedLimit := pagination.NormalizeLimit(filter.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(filter.Limit)
	decodedCursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Table("users u").
		Select(strings.Join([]string{
			"u.id AS user_id",
			"u.email",
			"u.role",
			"s.status AS subscription_status",
			"s.provider",
			"s.trial_ends_at",
			"s.current_period_ends_at",
			"COALESCE(e.enterprise_granted, false) AS enterprise_granted",
			"u.created_at",
		}, ", ")).
		Joins("LEFT JOIN user_subscriptions s ON s.user_id = u.id").
		Joins("LEFT JOIN user_entitlements e ON e.user_id = u.id")

	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("s.status = ?", status)
	}
	if filter.Enterprise != nil {
		query = query.Where("COALESCE(e.enterprise_granted, false) = ?", *filter.Enterprise)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("u.email ILIKE ?", "%"+search+"%")
	}
	if decodedCursor != nil {
		query = query.Where("(u.created_at < ?) OR (u.created_at = ? AND u.id < ?)",
			decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID)
	}

	var rows []SubscriberRow
	if err := query.
		Order("u.created_at DESC").
		Order("u.id DESC").
		Limit(limitWithBuffer).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	page := &Page{Rows: rows}
	if len(rows) > normalizedLimit {
		page.Rows = rows[:normalizedLimit]
		last := page.Rows[len(page.Rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.UserID,
		})
	}
	return page, nil
}
