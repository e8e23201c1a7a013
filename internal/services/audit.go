package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/releasegate/releasegate-backend/internal/platform/logger"
	"github.com/releasegate/releasegate-backend/internal/repos"
	"github.com/releasegate/releasegate-backend/internal/types"
)

const (
	AuditEntityProduct     = "product"
	AuditEntityTemplate    = "template"
	AuditEntityRelease     = "release"
	AuditEntityCriterion   = "criterion"
	AuditEntitySignOff     = "sign_off"
	AuditEntityStakeholder = "stakeholder"

	AuditActionCreate     = "create"
	AuditActionUpdate     = "update"
	AuditActionDelete     = "delete"
	AuditActionRevoke     = "revoke"
	AuditActionTransition = "transition"
)

// AuditRecorder receives audit facts from the engine. Callers on the write
// path treat it as fire-and-forget: a failed audit write is logged and never
// rolls back the operation that produced the fact.
type AuditRecorder interface {
	Log(ctx context.Context, entityType string, entityID uuid.UUID, action string, oldValue, newValue map[string]interface{}, actorID *uuid.UUID) error
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*types.AuditLog, error)
	// ReleaseHistory returns every fact whose entity id belongs to the
	// release or its criteria and sign-offs.
	ReleaseHistory(ctx context.Context, releaseID uuid.UUID, relatedIDs []uuid.UUID) ([]*types.AuditLog, error)
}

type auditService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.AuditLogRepo
}

func NewAuditService(db *gorm.DB, baseLog *logger.Logger, repo repos.AuditLogRepo) AuditRecorder {
	return &auditService{
		db:   db,
		log:  baseLog.With("service", "AuditService"),
		repo: repo,
	}
}

func (s *auditService) Log(ctx context.Context, entityType string, entityID uuid.UUID, action string, oldValue, newValue map[string]interface{}, actorID *uuid.UUID) error {
	entry := &types.AuditLog{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actorID,
		OldValue:   marshalValue(oldValue),
		NewValue:   marshalValue(newValue),
		Timestamp:  time.Now().UTC(),
	}
	if _, err := s.repo.Create(ctx, nil, entry); err != nil {
		return err
	}
	return nil
}

func (s *auditService) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*types.AuditLog, error) {
	return s.repo.ListByEntity(ctx, nil, entityType, entityID)
}

func (s *auditService) ReleaseHistory(ctx context.Context, releaseID uuid.UUID, relatedIDs []uuid.UUID) ([]*types.AuditLog, error) {
	ids := append([]uuid.UUID{releaseID}, relatedIDs...)
	return s.repo.ListByEntityIDs(ctx, nil, ids)
}

func marshalValue(value map[string]interface{}) datatypes.JSON {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// emitAudit logs and swallows audit failures: the primary operation has
// already committed.
func emitAudit(log *logger.Logger, err error) {
	if err != nil {
		log.Warn("audit write failed", "error", err)
	}
}

// emitNotify logs and swallows notification failures.
func emitNotify(log *logger.Logger, err error) {
	if err != nil {
		log.Warn("notification publish failed", "error", err)
	}
}
