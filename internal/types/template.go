package types

import (
	"time"

	"github.com/google/uuid"
)

// Template is a reusable, named set of criteria. Its criteria are copied
// into a release at creation time; later template edits never reach
// releases that were created from it.
type Template struct {
	ID        uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string              `gorm:"column:name;not null" json:"name"`
	IsActive  bool                `gorm:"column:is_active;not null" json:"is_active"`
	Criteria  []*TemplateCriterion `gorm:"foreignKey:TemplateID;references:ID" json:"criteria,omitempty"`
	CreatedAt time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time           `gorm:"not null" json:"updated_at"`
}

func (Template) TableName() string { return "template" }

type TemplateCriterion struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"template_id"`
	Name           string     `gorm:"column:name;not null" json:"name"`
	Description    string     `gorm:"column:description" json:"description"`
	IsMandatory    bool       `gorm:"column:is_mandatory;not null" json:"is_mandatory"`
	DefaultOwnerID *uuid.UUID `gorm:"type:uuid" json:"default_owner_id,omitempty"`
	// Order is a dense display rank, not an identity.
	Order     int       `gorm:"column:order_index;not null;default:0" json:"order"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (TemplateCriterion) TableName() string { return "template_criterion" }
