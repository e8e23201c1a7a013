package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/releasegate/releasegate-backend/internal/platform/logger"
	"github.com/releasegate/releasegate-backend/internal/types"
)

type AuditLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entry *types.AuditLog) (*types.AuditLog, error)
	ListByEntity(ctx context.Context, tx *gorm.DB, entityType string, entityID uuid.UUID) ([]*types.AuditLog, error)
	ListByEntityIDs(ctx context.Context, tx *gorm.DB, entityIDs []uuid.UUID) ([]*types.AuditLog, error)
}

type auditLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditLogRepo(db *gorm.DB, baseLog *logger.Logger) AuditLogRepo {
	return &auditLogRepo{db: db, log: baseLog.With("repo", "AuditLogRepo")}
}

func (ar *auditLogRepo) Create(ctx context.Context, tx *gorm.DB, entry *types.AuditLog) (*types.AuditLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	if err := transaction.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (ar *auditLogRepo) ListByEntity(ctx context.Context, tx *gorm.DB, entityType string, entityID uuid.UUID) ([]*types.AuditLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var results []*types.AuditLog
	if err := transaction.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("timestamp DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ar *auditLogRepo) ListByEntityIDs(ctx context.Context, tx *gorm.DB, entityIDs []uuid.UUID) ([]*types.AuditLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var results []*types.AuditLog
	if len(entityIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("entity_id IN ?", entityIDs).
		Order("timestamp DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
