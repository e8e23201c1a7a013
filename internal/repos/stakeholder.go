package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/releasegate/releasegate-backend/internal/platform/logger"
	"github.com/releasegate/releasegate-backend/internal/types"
)

type StakeholderRepo interface {
	// Assign adds the given users as stakeholders, silently skipping any
	// already assigned, and returns only the newly created rows.
	Assign(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID, userIDs []uuid.UUID) ([]*types.ReleaseStakeholder, error)
	ListByRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) ([]*types.ReleaseStakeholder, error)
	Exists(ctx context.Context, tx *gorm.DB, releaseID, userID uuid.UUID) (bool, error)
	Remove(ctx context.Context, tx *gorm.DB, releaseID, userID uuid.UUID) (bool, error)
	RemoveByRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) error
}

type stakeholderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStakeholderRepo(db *gorm.DB, baseLog *logger.Logger) StakeholderRepo {
	return &stakeholderRepo{db: db, log: baseLog.With("repo", "StakeholderRepo")}
}

func (sr *stakeholderRepo) Assign(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID, userIDs []uuid.UUID) ([]*types.ReleaseStakeholder, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	created := make([]*types.ReleaseStakeholder, 0, len(userIDs))
	now := time.Now().UTC()
	for _, userID := range userIDs {
		exists, err := sr.existsIn(ctx, transaction, releaseID, userID)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		row := &types.ReleaseStakeholder{
			ID:         uuid.New(),
			ReleaseID:  releaseID,
			UserID:     userID,
			AssignedAt: now,
		}
		if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
			return nil, err
		}
		created = append(created, row)
	}
	return created, nil
}

func (sr *stakeholderRepo) ListByRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) ([]*types.ReleaseStakeholder, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.ReleaseStakeholder
	if err := transaction.WithContext(ctx).
		Where("release_id = ?", releaseID).
		Order("assigned_at ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *stakeholderRepo) Exists(ctx context.Context, tx *gorm.DB, releaseID, userID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	return sr.existsIn(ctx, transaction, releaseID, userID)
}

func (sr *stakeholderRepo) existsIn(ctx context.Context, transaction *gorm.DB, releaseID, userID uuid.UUID) (bool, error) {
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.ReleaseStakeholder{}).
		Where("release_id = ? AND user_id = ?", releaseID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (sr *stakeholderRepo) Remove(ctx context.Context, tx *gorm.DB, releaseID, userID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	result := transaction.WithContext(ctx).
		Where("release_id = ? AND user_id = ?", releaseID, userID).
		Delete(&types.ReleaseStakeholder{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (sr *stakeholderRepo) RemoveByRelease(ctx context.Context, tx *gorm.DB, releaseID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	return transaction.WithContext(ctx).
		Where("release_id = ?", releaseID).
		Delete(&types.ReleaseStakeholder{}).Error
}
