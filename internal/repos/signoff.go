package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/releasegate/releasegate-backend/internal/platform/logger"
	"github.com/releasegate/releasegate-backend/internal/types"
)

// SignOffRepo is append-only by contract: there is no update or delete of
// ledger rows. Revokes are new rows with status revoked.
type SignOffRepo interface {
	Create(ctx context.Context, tx *gorm.DB, signOff *types.SignOff) (*types.SignOff, error)
	ListByCriterion(ctx context.Context, tx *gorm.DB, criterionID uuid.UUID) ([]*types.SignOff, error)
	ListByCriteria(ctx context.Context, tx *gorm.DB, criterionIDs []uuid.UUID) ([]*types.SignOff, error)
	CountByCriterion(ctx context.Context, tx *gorm.DB, criterionID uuid.UUID) (int64, error)
	CountByCriteria(ctx context.Context, tx *gorm.DB, criterionIDs []uuid.UUID) (int64, error)
}

type signOffRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSignOffRepo(db *gorm.DB, baseLog *logger.Logger) SignOffRepo {
	return &signOffRepo{db: db, log: baseLog.With("repo", "SignOffRepo")}
}

func (sr *signOffRepo) Create(ctx context.Context, tx *gorm.DB, signOff *types.SignOff) (*types.SignOff, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if err := transaction.WithContext(ctx).Create(signOff).Error; err != nil {
		return nil, err
	}
	return signOff, nil
}

func (sr *signOffRepo) ListByCriterion(ctx context.Context, tx *gorm.DB, criterionID uuid.UUID) ([]*types.SignOff, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.SignOff
	if err := transaction.WithContext(ctx).
		Where("criterion_id = ?", criterionID).
		Order("signed_at ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *signOffRepo) ListByCriteria(ctx context.Context, tx *gorm.DB, criterionIDs []uuid.UUID) ([]*types.SignOff, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.SignOff
	if len(criterionIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("criterion_id IN ?", criterionIDs).
		Order("signed_at ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *signOffRepo) CountByCriterion(ctx context.Context, tx *gorm.DB, criterionID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.SignOff{}).
		Where("criterion_id = ?", criterionID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (sr *signOffRepo) CountByCriteria(ctx context.Context, tx *gorm.DB, criterionIDs []uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if len(criterionIDs) == 0 {
		return 0, nil
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.SignOff{}).
		Where("criterion_id IN ?", criterionIDs).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
