package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/releasegate/releasegate-backend/internal/types"
)

// SeedProduct inserts a product row directly, bypassing services.
func SeedProduct(t *testing.T, db *gorm.DB, name string) *types.Product {
	t.Helper()
	now := time.Now().UTC()
	p := &types.Product{ID: uuid.New(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func SeedOwner(t *testing.T, db *gorm.DB, productID, userID uuid.UUID) {
	t.Helper()
	row := &types.ProductOwner{ID: uuid.New(), ProductID: productID, UserID: userID, CreatedAt: time.Now().UTC()}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("seed product owner: %v", err)
	}
}

func SeedRelease(t *testing.T, db *gorm.DB, productID uuid.UUID, status types.ReleaseStatus) *types.Release {
	t.Helper()
	now := time.Now().UTC()
	r := &types.Release{
		ID:        uuid.New(),
		ProductID: productID,
		Version:   "1.0.0",
		Name:      "test release",
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("seed release: %v", err)
	}
	return r
}

func SeedCriterion(t *testing.T, db *gorm.DB, releaseID uuid.UUID, name string, mandatory bool) *types.ReleaseCriterion {
	t.Helper()
	now := time.Now().UTC()
	c := &types.ReleaseCriterion{
		ID:          uuid.New(),
		ReleaseID:   releaseID,
		Name:        name,
		IsMandatory: mandatory,
		Status:      types.CriterionStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed criterion: %v", err)
	}
	return c
}

func SeedStakeholder(t *testing.T, db *gorm.DB, releaseID, userID uuid.UUID) *types.ReleaseStakeholder {
	t.Helper()
	sh := &types.ReleaseStakeholder{
		ID:         uuid.New(),
		ReleaseID:  releaseID,
		UserID:     userID,
		AssignedAt: time.Now().UTC(),
	}
	if err := db.Create(sh).Error; err != nil {
		t.Fatalf("seed stakeholder: %v", err)
	}
	return sh
}
