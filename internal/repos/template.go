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

type TemplateRepo interface {
	Create(ctx context.Context, tx *gorm.DB, template *types.Template) (*types.Template, error)
	GetByID(ctx context.Context, tx *gorm.DB, templateID uuid.UUID) (*types.Template, error)
	List(ctx context.Context, tx *gorm.DB, includeInactive bool) ([]*types.Template, error)
	UpdateName(ctx context.Context, tx *gorm.DB, templateID uuid.UUID, name string) error
	SetActive(ctx context.Context, tx *gorm.DB, templateID uuid.UUID, active bool) error
	ReplaceCriteria(ctx context.Context, tx *gorm.DB, templateID uuid.UUID, criteria []*types.TemplateCriterion) error
}

type templateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTemplateRepo(db *gorm.DB, baseLog *logger.Logger) TemplateRepo {
	return &templateRepo{db: db, log: baseLog.With("repo", "TemplateRepo")}
}

func (tr *templateRepo) Create(ctx context.Context, tx *gorm.DB, template *types.Template) (*types.Template, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	if err := transaction.WithContext(ctx).Create(template).Error; err != nil {
		return nil, err
	}
	return template, nil
}

func (tr *templateRepo) GetByID(ctx context.Context, tx *gorm.DB, templateID uuid.UUID) (*types.Template, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	var result types.Template
	err := transaction.WithContext(ctx).
		Preload("Criteria", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		Where("id = ?", templateID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (tr *templateRepo) List(ctx context.Context, tx *gorm.DB, includeInactive bool) ([]*types.Template, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	query := transaction.WithContext(ctx).
		Preload("Criteria", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		})
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	var results []*types.Template
	if err := query.Order("name ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (tr *templateRepo) UpdateName(ctx context.Context, tx *gorm.DB, templateID uuid.UUID, name string) error {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Template{}).
		Where("id = ?", templateID).
		Updates(map[string]interface{}{
			"name":       name,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (tr *templateRepo) SetActive(ctx context.Context, tx *gorm.DB, templateID uuid.UUID, active bool) error {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Template{}).
		Where("id = ?", templateID).
		Updates(map[string]interface{}{
			"is_active":  active,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (tr *templateRepo) ReplaceCriteria(ctx context.Context, tx *gorm.DB, templateID uuid.UUID, criteria []*types.TemplateCriterion) error {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	if err := transaction.WithContext(ctx).
		Where("template_id = ?", templateID).
		Delete(&types.TemplateCriterion{}).Error; err != nil {
		return err
	}
	if len(criteria) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&criteria).Error
}
