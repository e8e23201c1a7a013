package types

import (
	"time"

	"github.com/google/uuid"
)

// ReleaseStakeholder marks a user as allowed to sign off on a release's
// criteria. Removing one keeps their prior sign-off rows but excludes them
// from matrix and resolver computation from that point on.
type ReleaseStakeholder struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReleaseID  uuid.UUID `gorm:"type:uuid;not null;index:idx_release_stakeholder,unique,priority:1" json:"release_id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index:idx_release_stakeholder,unique,priority:2" json:"user_id"`
	AssignedAt time.Time `gorm:"column:assigned_at;not null" json:"assigned_at"`
}

func (ReleaseStakeholder) TableName() string { return "release_stakeholder" }
