package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	EntityType string         `gorm:"column:entity_type;not null;index" json:"entity_type"`
	EntityID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"entity_id"`
	Action     string         `gorm:"column:action;not null" json:"action"`
	ActorID    *uuid.UUID     `gorm:"type:uuid" json:"actor_id,omitempty"`
	OldValue   datatypes.JSON `gorm:"column:old_value;type:jsonb" json:"old_value,omitempty"`
	NewValue   datatypes.JSON `gorm:"column:new_value;type:jsonb" json:"new_value,omitempty"`
	Timestamp  time.Time      `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

func (AuditLog) TableName() string { return "audit_log" }
