package types

import (
	"time"

	"github.com/google/uuid"
)

// SignOff is one immutable ledger event. Rows are never updated or deleted;
// a revoke is recorded as a new event with status revoked.
type SignOff struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	CriterionID uuid.UUID     `gorm:"type:uuid;not null;index" json:"criterion_id"`
	SignedByID  uuid.UUID     `gorm:"type:uuid;not null;index" json:"signed_by_id"`
	Status      SignOffStatus `gorm:"column:status;not null" json:"status"`
	Comment     string        `gorm:"column:comment" json:"comment"`
	Link        string        `gorm:"column:link" json:"link"`
	SignedAt    time.Time     `gorm:"column:signed_at;not null;index" json:"signed_at"`
}

func (SignOff) TableName() string { return "sign_off" }
