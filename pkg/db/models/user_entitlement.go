package models

import (
	"time"

	"github.com/google/uuid"
)

// UserEntitlement holds the owner-controlled enterprise grant. Billing webhooks
// never touch this table.
type UserEntitlement struct {
	UserID            uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey"`
	EnterpriseGranted bool       `gorm:"column:enterprise_granted;not null;default:false"`
	GrantedBy         *uuid.UUID `gorm:"column:granted_by;type:uuid"`
	GrantedAt         *time.Time `gorm:"column:granted_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's pluralization.
func (UserEntitlement) TableName() string {
	return "user_entitlements"
}
