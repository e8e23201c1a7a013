package types

import (
	"time"

	"github.com/google/uuid"
)

type Release struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	// TemplateID records which template the criteria were copied from.
	// Provenance only; never followed after creation.
	TemplateID     *uuid.UUID    `gorm:"type:uuid" json:"template_id,omitempty"`
	Version        string        `gorm:"column:version;not null" json:"version"`
	Name           string        `gorm:"column:name;not null" json:"name"`
	Description    string        `gorm:"column:description" json:"description"`
	Status         ReleaseStatus `gorm:"column:status;not null;index" json:"status"`
	TargetDate     *time.Time    `gorm:"column:target_date" json:"target_date,omitempty"`
	CandidateBuild string        `gorm:"column:candidate_build" json:"candidate_build"`
	ReleasedAt     *time.Time    `gorm:"column:released_at" json:"released_at,omitempty"`
	CreatedByID    *uuid.UUID    `gorm:"type:uuid" json:"created_by_id,omitempty"`
	CreatedAt      time.Time     `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null" json:"updated_at"`
}

func (Release) TableName() string { return "release" }
