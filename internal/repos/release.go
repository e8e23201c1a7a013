package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/releasegate/releasegate-backend/internal/platform/logger"
	"github.com/releasegate/releasegate-backend/internal/types"
)

type ReleaseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, release *types.Release) (*types.Release, error)
	GetByID(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) (*types.Release, error)
	ListByProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]*types.Release, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID, fields map[string]interface{}) error
	// UpdateStatusCAS writes `to` only when the current status is still
	// `from`, and reports whether the swap happened. releasedAt, when
	// non-nil, is written in the same statement.
	UpdateStatusCAS(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID, from, to types.ReleaseStatus, releasedAt *time.Time) (bool, error)
	HardDelete(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) error
	CountByStatus(ctx context.Context, tx *gorm.DB) (map[types.ReleaseStatus]int64, error)
}

type releaseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReleaseRepo(db *gorm.DB, baseLog *logger.Logger) ReleaseRepo {
	return &releaseRepo{db: db, log: baseLog.With("repo", "ReleaseRepo")}
}

func (rr *releaseRepo) Create(ctx context.Context, tx *gorm.DB, release *types.Release) (*types.Release, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	if err := transaction.WithContext(ctx).Create(release).Error; err != nil {
		return nil, err
	}
	return release, nil
}

func (rr *releaseRepo) GetByID(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) (*types.Release, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	var result types.Release
	err := transaction.WithContext(ctx).
		Where("id = ?", releaseID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (rr *releaseRepo) ListByProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]*types.Release, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	var results []*types.Release
	if err := transaction.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *releaseRepo) UpdateFields(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return transaction.WithContext(ctx).
		Model(&types.Release{}).
		Where("id = ?", releaseID).
		Updates(fields).Error
}

func (rr *releaseRepo) UpdateStatusCAS(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID, from, to types.ReleaseStatus, releasedAt *time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if releasedAt != nil {
		updates["released_at"] = *releasedAt
	}
	result := transaction.WithContext(ctx).
		Model(&types.Release{}).
		Where("id = ? AND status = ?", releaseID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (rr *releaseRepo) HardDelete(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", releaseID).
		Delete(&types.Release{}).Error
}

func (rr *releaseRepo) CountByStatus(ctx context.Context, tx *gorm.DB) (map[types.ReleaseStatus]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	var rows []struct {
		Status types.ReleaseStatus
		Count  int64
	}
	if err := transaction.WithContext(ctx).
		Model(&types.Release{}).
		Select("status, COUNT(id) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[types.ReleaseStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
