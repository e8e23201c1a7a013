package types

import (
	"time"

	"github.com/google/uuid"
)

// ReleaseCriterion is a single named condition a release must satisfy.
// Name is unique within its release under case-insensitive,
// whitespace-trimmed comparison.
type ReleaseCriterion struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ReleaseID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"release_id"`
	Name        string     `gorm:"column:name;not null" json:"name"`
	Description string     `gorm:"column:description" json:"description"`
	IsMandatory bool       `gorm:"column:is_mandatory;not null" json:"is_mandatory"`
	OwnerID     *uuid.UUID `gorm:"type:uuid" json:"owner_id,omitempty"`
	// Status is the cached resolver projection; refreshed on every ledger
	// write and recomputed from the ledger on reads.
	Status    CriterionStatus `gorm:"column:status;not null" json:"status"`
	Order     int             `gorm:"column:order_index;not null;default:0" json:"order"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null" json:"updated_at"`
}

func (ReleaseCriterion) TableName() string { return "release_criterion" }
