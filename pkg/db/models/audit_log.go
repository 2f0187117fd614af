package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/simmerworks/simmer-backend/pkg/enums"
)

// AuditLogEntry is append-only; rows are never updated or deleted. A null
// actor means the change was webhook-driven.
type AuditLogEntry struct {
	ID           uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ActorUserID  *uuid.UUID        `gorm:"column:actor_user_id;type:uuid" json:"actor_user_id"`
	TargetUserID uuid.UUID         `gorm:"column:target_user_id;type:uuid;not null;index" json:"target_user_id"`
	Action       enums.AuditAction `gorm:"column:action;type:audit_action;not null" json:"action"`
	Reason       *string           `gorm:"column:reason" json:"reason,omitempty"`
	Metadata     json.RawMessage   `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName overrides GORM's pluralization.
func (AuditLogEntry) TableName() string {
	return "audit_log"
}
