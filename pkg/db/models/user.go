package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/simmerworks/simmer-backend/pkg/enums"
)

// User represents the canonical identity entity. Rows are created at sign-up
// and never deleted by the billing subsystem.
type User struct {
	ID        uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string        `gorm:"type:text;not null;uniqueIndex"`
	Role      enums.AppRole `gorm:"column:role;type:app_role;not null;default:'subscriber'"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's pluralization.
func (User) TableName() string {
	return "users"
}
