package repos

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/releasegate/releasegate-backend/internal/platform/logger"
	"github.com/releasegate/releasegate-backend/internal/types"
)

type CriterionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, criteria []*types.ReleaseCriterion) ([]*types.ReleaseCriterion, error)
	GetByID(ctx context.Context, tx *gorm.DB, criterionID uuid.UUID) (*types.ReleaseCriterion, error)
	// GetByIDForUpdate locks the criterion row for the rest of the
	// transaction so concurrent ledger writers serialize per criterion.
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, criterionID uuid.UUID) (*types.ReleaseCriterion, error)
	ListByRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) ([]*types.ReleaseCriterion, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, criterionID uuid.UUID, fields map[string]interface{}) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, criterionID uuid.UUID, status types.CriterionStatus) error
	Delete(ctx context.Context, tx *gorm.DB, criterionID uuid.UUID) error
	DeleteByRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) error
	// NameExists compares case-insensitively on the trimmed name, excluding
	// excludeID so updates don't collide with themselves.
	NameExists(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID, name string, excludeID uuid.UUID) (bool, error)
}

type criterionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCriterionRepo(db *gorm.DB, baseLog *logger.Logger) CriterionRepo {
	return &criterionRepo{db: db, log: baseLog.With("repo", "CriterionRepo")}
}

func (cr *criterionRepo) Create(ctx context.Context, tx *gorm.DB, criteria []*types.ReleaseCriterion) ([]*types.ReleaseCriterion, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	if len(criteria) == 0 {
		return []*types.ReleaseCriterion{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&criteria).Error; err != nil {
		return nil, err
	}
	return criteria, nil
}

func (cr *criterionRepo) GetByID(ctx context.Context, tx *gorm.DB, criterionID uuid.UUID) (*types.ReleaseCriterion, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var result types.ReleaseCriterion
	err := transaction.WithContext(ctx).
		Where("id = ?", criterionID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (cr *criterionRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, criterionID uuid.UUID) (*types.ReleaseCriterion, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var result types.ReleaseCriterion
	err := transaction.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", criterionID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (cr *criterionRepo) ListByRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) ([]*types.ReleaseCriterion, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var results []*types.ReleaseCriterion
	if err := transaction.WithContext(ctx).
		Where("release_id = ?", releaseID).
		Order("order_index ASC, name ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *criterionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, criterionID uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return transaction.WithContext(ctx).
		Model(&types.ReleaseCriterion{}).
		Where("id = ?", criterionID).
		Updates(fields).Error
}

func (cr *criterionRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, criterionID uuid.UUID, status types.CriterionStatus) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.ReleaseCriterion{}).
		Where("id = ?", criterionID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (cr *criterionRepo) Delete(ctx context.Context, tx *gorm.DB, criterionID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", criterionID).
		Delete(&types.ReleaseCriterion{}).Error
}

func (cr *criterionRepo) DeleteByRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).
		Where("release_id = ?", releaseID).
		Delete(&types.ReleaseCriterion{}).Error
}

func (cr *criterionRepo) NameExists(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID, name string, excludeID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	normalized := strings.ToLower(strings.TrimSpace(name))
	query := transaction.WithContext(ctx).
		Model(&types.ReleaseCriterion{}).
		Where("release_id = ? AND LOWER(TRIM(name)) = ?", releaseID, normalized)
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
