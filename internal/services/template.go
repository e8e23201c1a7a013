package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/releasegate/releasegate-backend/internal/platform/apierr"
	"github.com/releasegate/releasegate-backend/internal/platform/logger"
	"github.com/releasegate/releasegate-backend/internal/repos"
	"github.com/releasegate/releasegate-backend/internal/requestdata"
	"github.com/releasegate/releasegate-backend/internal/types"
)

type TemplateCriterionInput struct {
	Name           string
	Description    string
	IsMandatory    bool
	DefaultOwnerID *uuid.UUID
}

type CreateTemplateInput struct {
	Name     string
	Criteria []TemplateCriterionInput
}

type UpdateTemplateInput struct {
	Name     *string
	IsActive *bool
	// Criteria, when non-nil, replaces the full criterion list. Releases
	// already created from this template keep their copied criteria.
	Criteria []TemplateCriterionInput
}

type TemplateService interface {
	Create(ctx context.Context, in CreateTemplateInput) (*types.Template, error)
	Get(ctx context.Context, templateID uuid.UUID) (*types.Template, error)
	List(ctx context.Context, includeInactive bool) ([]*types.Template, error)
	Update(ctx context.Context, templateID uuid.UUID, in UpdateTemplateInput) (*types.Template, error)
}

type templateService struct {
	db        *gorm.DB
	log       *logger.Logger
	identity  IdentityService
	templates repos.TemplateRepo
	audit     AuditRecorder
}

func NewTemplateService(
	db *gorm.DB,
	baseLog *logger.Logger,
	identity IdentityService,
	templates repos.TemplateRepo,
	audit AuditRecorder,
) TemplateService {
	return &templateService{
		db:        db,
		log:       baseLog.With("service", "TemplateService"),
		identity:  identity,
		templates: templates,
		audit:     audit,
	}
}

func (s *templateService) Create(ctx context.Context, in CreateTemplateInput) (*types.Template, error) {
	rd, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apierr.Newf(apierr.KindValidation, apierr.CodeMissingField, "template name is required")
	}

	now := time.Now().UTC()
	template := &types.Template{
		ID:        uuid.New(),
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	template.Criteria = buildTemplateCriteria(template.ID, in.Criteria, now)

	if _, err := s.templates.Create(ctx, nil, template); err != nil {
		return nil, err
	}

	actorID := rd.Actor()
	emitAudit(s.log, s.audit.Log(ctx, AuditEntityTemplate, template.ID, AuditActionCreate,
		nil,
		map[string]interface{}{"name": template.Name, "criteria": len(template.Criteria)},
		&actorID,
	))
	return s.templates.GetByID(ctx, nil, template.ID)
}

func (s *templateService) Get(ctx context.Context, templateID uuid.UUID) (*types.Template, error) {
	template, err := s.templates.GetByID(ctx, nil, templateID)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, apierr.Newf(apierr.KindNotFound, "template_not_found",
			"template %s not found", templateID)
	}
	return template, nil
}

func (s *templateService) List(ctx context.Context, includeInactive bool) ([]*types.Template, error) {
	return s.templates.List(ctx, nil, includeInactive)
}

func (s *templateService) Update(ctx context.Context, templateID uuid.UUID, in UpdateTemplateInput) (*types.Template, error) {
	rd, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	template, err := s.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return apierr.Newf(apierr.KindValidation, apierr.CodeMissingField, "template name cannot be empty")
			}
			if err := s.templates.UpdateName(ctx, tx, templateID, name); err != nil {
				return err
			}
		}
		if in.IsActive != nil {
			if err := s.templates.SetActive(ctx, tx, templateID, *in.IsActive); err != nil {
				return err
			}
		}
		if in.Criteria != nil {
			fresh := buildTemplateCriteria(templateID, in.Criteria, time.Now().UTC())
			if err := s.templates.ReplaceCriteria(ctx, tx, templateID, fresh); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.templates.GetByID(ctx, nil, templateID)
	if err != nil {
		return nil, err
	}

	actorID := rd.Actor()
	emitAudit(s.log, s.audit.Log(ctx, AuditEntityTemplate, templateID, AuditActionUpdate,
		map[string]interface{}{"name": template.Name, "is_active": template.IsActive},
		map[string]interface{}{"name": updated.Name, "is_active": updated.IsActive},
		&actorID,
	))
	return updated, nil
}

func buildTemplateCriteria(templateID uuid.UUID, inputs []TemplateCriterionInput, now time.Time) []*types.TemplateCriterion {
	out := make([]*types.TemplateCriterion, 0, len(inputs))
	for _, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			continue
		}
		out = append(out, &types.TemplateCriterion{
			ID:             uuid.New(),
			TemplateID:     templateID,
			Name:           name,
			Description:    in.Description,
			IsMandatory:    in.IsMandatory,
			DefaultOwnerID: in.DefaultOwnerID,
			Order:          len(out),
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return out
}

func (s *templateService) requireAdmin(ctx context.Context) (*requestdata.RequestData, error) {
	rd, err := s.identity.Caller(ctx)
	if err != nil {
		return nil, err
	}
	if !rd.IsAdmin {
		return nil, apierr.Newf(apierr.KindPermission, "admin_required",
			"template management requires an administrator")
	}
	return rd, nil
}
