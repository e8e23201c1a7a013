package types

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name              string     `gorm:"column:name;not null;uniqueIndex" json:"name"`
	DefaultTemplateID *uuid.UUID `gorm:"type:uuid;index" json:"default_template_id,omitempty"`
	CreatedAt         time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null" json:"updated_at"`
}

func (Product) TableName() string { return "product" }

// ProductOwner grants a user the product-owner capability for one product.
// The owner list is an unordered set.
type ProductOwner struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index:idx_product_owner,unique,priority:1" json:"product_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_product_owner,unique,priority:2" json:"user_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ProductOwner) TableName() string { return "product_owner" }
