package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/releasegate/releasegate-backend/internal/notify"
	"github.com/releasegate/releasegate-backend/internal/platform/apierr"
	"github.com/releasegate/releasegate-backend/internal/platform/logger"
	"github.com/releasegate/releasegate-backend/internal/repos"
	"github.com/releasegate/releasegate-backend/internal/types"
)

type CreateReleaseInput struct {
	ProductID      uuid.UUID
	TemplateID     *uuid.UUID
	Version        string
	Name           string
	Description    string
	TargetDate     *time.Time
	CandidateBuild string
}

// UpdateReleaseInput covers the non-gating fields only. Status changes go
// through the lifecycle service; last-writer-wins is acceptable here.
type UpdateReleaseInput struct {
	Name           *string
	Version        *string
	Description    *string
	TargetDate     *time.Time
	CandidateBuild *string
}

type CriterionInput struct {
	Name        string
	Description string
	IsMandatory bool
	OwnerID     *uuid.UUID
	Order       *int
}

type UpdateCriterionInput struct {
	Name        *string
	Description *string
	IsMandatory *bool
	OwnerID     *uuid.UUID
	Order       *int
}

// ReleaseDetail is a release with its criteria resolved from the ledger,
// its stakeholder set and the aggregated progress.
type ReleaseDetail struct {
	Release      *types.Release
	Criteria     []*types.ReleaseCriterion
	Stakeholders []*types.ReleaseStakeholder
	Progress     Progress
}

type ReleaseService interface {
	Create(ctx context.Context, in CreateReleaseInput) (*ReleaseDetail, error)
	Get(ctx context.Context, releaseID uuid.UUID) (*ReleaseDetail, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*types.Release, error)
	Update(ctx context.Context, releaseID uuid.UUID, in UpdateReleaseInput) (*types.Release, error)

	AddCriterion(ctx context.Context, releaseID uuid.UUID, in CriterionInput) (*types.ReleaseCriterion, error)
	UpdateCriterion(ctx context.Context, releaseID, criterionID uuid.UUID, in UpdateCriterionInput) (*types.ReleaseCriterion, error)
	DeleteCriterion(ctx context.Context, releaseID, criterionID uuid.UUID) error

	AssignStakeholders(ctx context.Context, releaseID uuid.UUID, userIDs []uuid.UUID) ([]*types.ReleaseStakeholder, error)
	ListStakeholders(ctx context.Context, releaseID uuid.UUID) ([]*types.ReleaseStakeholder, error)
	RemoveStakeholder(ctx context.Context, releaseID, userID uuid.UUID) error

	// Summary counts releases per lifecycle status.
	Summary(ctx context.Context) (map[types.ReleaseStatus]int64, error)
}

type releaseService struct {
	db           *gorm.DB
	log          *logger.Logger
	identity     IdentityService
	products     repos.ProductRepo
	templates    repos.TemplateRepo
	releases     repos.ReleaseRepo
	criteria     repos.CriterionRepo
	signOffs     repos.SignOffRepo
	stakeholders repos.StakeholderRepo
	audit        AuditRecorder
	notifier     notify.Notifier
}

func NewReleaseService(
	db *gorm.DB,
	baseLog *logger.Logger,
	identity IdentityService,
	products repos.ProductRepo,
	templates repos.TemplateRepo,
	releases repos.ReleaseRepo,
	criteria repos.CriterionRepo,
	signOffs repos.SignOffRepo,
	stakeholders repos.StakeholderRepo,
	audit AuditRecorder,
	notifier notify.Notifier,
) ReleaseService {
	return &releaseService{
		db:           db,
		log:          baseLog.With("service", "ReleaseService"),
		identity:     identity,
		products:     products,
		templates:    templates,
		releases:     releases,
		criteria:     criteria,
		signOffs:     signOffs,
		stakeholders: stakeholders,
		audit:        audit,
		notifier:     notifier,
	}
}

func (s *releaseService) Create(ctx context.Context, in CreateReleaseInput) (*ReleaseDetail, error) {
	rd, err := s.identity.Caller(ctx)
	if err != nil {
		return nil, err
	}
	if in.ProductID == uuid.Nil {
		return nil, apierr.Newf(apierr.KindValidation, apierr.CodeMissingField, "product_id is required")
	}
	if strings.TrimSpace(in.Version) == "" {
		return nil, apierr.Newf(apierr.KindValidation, apierr.CodeMissingField, "version is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apierr.Newf(apierr.KindValidation, apierr.CodeMissingField, "name is required")
	}

	product, err := s.products.GetByID(ctx, nil, in.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apierr.Newf(apierr.KindNotFound, "product_not_found",
			"product %s not found", in.ProductID)
	}
	if err := s.identity.RequireEditProduct(ctx, nil, in.ProductID); err != nil {
		return nil, err
	}

	// Fall back to the product's default template when none was given.
	templateID := in.TemplateID
	if templateID == nil && product.DefaultTemplateID != nil {
		templateID = product.DefaultTemplateID
	}

	var template *types.Template
	if templateID != nil {
		template, err = s.templates.GetByID(ctx, nil, *templateID)
		if err != nil {
			return nil, err
		}
	}

	creator := rd.Actor()
	now := time.Now().UTC()
	release := &types.Release{
		ID:             uuid.New(),
		ProductID:      in.ProductID,
		TemplateID:     templateID,
		Version:        strings.TrimSpace(in.Version),
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		Status:         types.ReleaseStatusDraft,
		TargetDate:     in.TargetDate,
		CandidateBuild: in.CandidateBuild,
		CreatedByID:    &creator,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.releases.Create(ctx, tx, release); err != nil {
			return err
		}
		// Template criteria are copied, never referenced: later template
		// edits must not reach this release.
		if template != nil {
			copied := make([]*types.ReleaseCriterion, 0, len(template.Criteria))
			for _, tc := range template.Criteria {
				copied = append(copied, &types.ReleaseCriterion{
					ID:          uuid.New(),
					ReleaseID:   release.ID,
					Name:        tc.Name,
					Description: tc.Description,
					IsMandatory: tc.IsMandatory,
					OwnerID:     tc.DefaultOwnerID,
					Status:      types.CriterionStatusPending,
					Order:       tc.Order,
					CreatedAt:   now,
					UpdatedAt:   now,
				})
			}
			if _, err := s.criteria.Create(ctx, tx, copied); err != nil {
				return err
			}
		}
		_, err := s.stakeholders.Assign(ctx, tx, release.ID, []uuid.UUID{creator})
		return err
	})
	if err != nil {
		return nil, err
	}

	emitAudit(s.log, s.audit.Log(ctx, AuditEntityRelease, release.ID, AuditActionCreate,
		nil,
		map[string]interface{}{
			"product_id": release.ProductID,
			"version":    release.Version,
			"name":       release.Name,
			"status":     release.Status,
		},
		&creator,
	))
	return s.Get(ctx, release.ID)
}

func (s *releaseService) Get(ctx context.Context, releaseID uuid.UUID) (*ReleaseDetail, error) {
	release, err := s.releases.GetByID(ctx, nil, releaseID)
	if err != nil {
		return nil, err
	}
	if release == nil {
		return nil, apierr.Newf(apierr.KindNotFound, "release_not_found",
			"release %s not found", releaseID)
	}

	criteria, err := s.criteria.ListByRelease(ctx, nil, releaseID)
	if err != nil {
		return nil, err
	}
	stakeholders, err := s.stakeholders.ListByRelease(ctx, nil, releaseID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(criteria))
	for _, c := range criteria {
		ids = append(ids, c.ID)
	}
	events, err := s.signOffs.ListByCriteria(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	byCriterion := make(map[uuid.UUID][]*types.SignOff, len(criteria))
	for _, ev := range events {
		byCriterion[ev.CriterionID] = append(byCriterion[ev.CriterionID], ev)
	}

	// Status is recomputed from the ledger on every read so a stale cache
	// can never leak out.
	shIDs := stakeholderIDs(stakeholders)
	for _, criterion := range criteria {
		latest := LatestByActor(byCriterion[criterion.ID])
		criterion.Status = ResolveCriterionStatus(criterion, latest, shIDs)
	}

	return &ReleaseDetail{
		Release:      release,
		Criteria:     criteria,
		Stakeholders: stakeholders,
		Progress:     ComputeProgress(criteria),
	}, nil
}

func (s *releaseService) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*types.Release, error) {
	return s.releases.ListByProduct(ctx, nil, productID)
}

func (s *releaseService) Update(ctx context.Context, releaseID uuid.UUID, in UpdateReleaseInput) (*types.Release, error) {
	rd, err := s.identity.Caller(ctx)
	if err != nil {
		return nil, err
	}
	release, err := s.requireEditableRelease(ctx, releaseID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, apierr.Newf(apierr.KindValidation, apierr.CodeMissingField, "name cannot be empty")
		}
		fields["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Version != nil {
		if strings.TrimSpace(*in.Version) == "" {
			return nil, apierr.Newf(apierr.KindValidation, apierr.CodeMissingField, "version cannot be empty")
		}
		fields["version"] = strings.TrimSpace(*in.Version)
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.TargetDate != nil {
		fields["target_date"] = *in.TargetDate
	}
	if in.CandidateBuild != nil {
		fields["candidate_build"] = *in.CandidateBuild
	}
	if len(fields) == 0 {
		return release, nil
	}

	if err := s.releases.UpdateFields(ctx, nil, releaseID, fields); err != nil {
		return nil, err
	}
	updated, err := s.releases.GetByID(ctx, nil, releaseID)
	if err != nil {
		return nil, err
	}

	actorID := rd.Actor()
	emitAudit(s.log, s.audit.Log(ctx, AuditEntityRelease, releaseID, AuditActionUpdate,
		map[string]interface{}{"name": release.Name, "version": release.Version},
		map[string]interface{}{"name": updated.Name, "version": updated.Version},
		&actorID,
	))
	return updated, nil
}

func (s *releaseService) AddCriterion(ctx context.Context, releaseID uuid.UUID, in CriterionInput) (*types.ReleaseCriterion, error) {
	rd, err := s.identity.Caller(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireEditableRelease(ctx, releaseID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apierr.Newf(apierr.KindValidation, apierr.CodeMissingField, "criterion name is required")
	}

	now := time.Now().UTC()
	criterion := &types.ReleaseCriterion{
		ID:          uuid.New(),
		ReleaseID:   releaseID,
		Name:        name,
		Description: in.Description,
		IsMandatory: in.IsMandatory,
		OwnerID:     in.OwnerID,
		Status:      types.CriterionStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.criteria.NameExists(ctx, tx, releaseID, name, uuid.Nil)
		if err != nil {
			return err
		}
		if exists {
			return apierr.Newf(apierr.KindValidation, apierr.CodeDuplicateCriterionName,
				"a criterion named %q already exists on this release", name)
		}
		if in.Order != nil {
			criterion.Order = *in.Order
		} else {
			existing, err := s.criteria.ListByRelease(ctx, tx, releaseID)
			if err != nil {
				return err
			}
			criterion.Order = len(existing)
		}
		_, err = s.criteria.Create(ctx, tx, []*types.ReleaseCriterion{criterion})
		return err
	})
	if err != nil {
		return nil, err
	}

	actorID := rd.Actor()
	emitAudit(s.log, s.audit.Log(ctx, AuditEntityCriterion, criterion.ID, AuditActionCreate,
		nil,
		map[string]interface{}{
			"release_id":   releaseID,
			"name":         criterion.Name,
			"is_mandatory": criterion.IsMandatory,
		},
		&actorID,
	))
	return criterion, nil
}

func (s *releaseService) UpdateCriterion(ctx context.Context, releaseID, criterionID uuid.UUID, in UpdateCriterionInput) (*types.ReleaseCriterion, error) {
	rd, err := s.identity.Caller(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireEditableRelease(ctx, releaseID); err != nil {
		return nil, err
	}
	criterion, err := s.requireCriterion(ctx, releaseID, criterionID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apierr.Newf(apierr.KindValidation, apierr.CodeMissingField, "criterion name cannot be empty")
		}
		exists, err := s.criteria.NameExists(ctx, nil, releaseID, name, criterionID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apierr.Newf(apierr.KindValidation, apierr.CodeDuplicateCriterionName,
				"a criterion named %q already exists on this release", name)
		}
		fields["name"] = name
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.IsMandatory != nil {
		fields["is_mandatory"] = *in.IsMandatory
	}
	if in.OwnerID != nil {
		fields["owner_id"] = *in.OwnerID
	}
	if in.Order != nil {
		fields["order_index"] = *in.Order
	}
	if len(fields) == 0 {
		return criterion, nil
	}

	if err := s.criteria.UpdateFields(ctx, nil, criterionID, fields); err != nil {
		return nil, err
	}
	updated, err := s.criteria.GetByID(ctx, nil, criterionID)
	if err != nil {
		return nil, err
	}

	actorID := rd.Actor()
	emitAudit(s.log, s.audit.Log(ctx, AuditEntityCriterion, criterionID, AuditActionUpdate,
		map[string]interface{}{"name": criterion.Name, "is_mandatory": criterion.IsMandatory},
		map[string]interface{}{"name": updated.Name, "is_mandatory": updated.IsMandatory},
		&actorID,
	))
	return updated, nil
}

func (s *releaseService) DeleteCriterion(ctx context.Context, releaseID, criterionID uuid.UUID) error {
	rd, err := s.identity.Caller(ctx)
	if err != nil {
		return err
	}
	if _, err := s.requireEditableRelease(ctx, releaseID); err != nil {
		return err
	}
	criterion, err := s.requireCriterion(ctx, releaseID, criterionID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Revoked events count too: the audit trail outlives the decision.
		count, err := s.signOffs.CountByCriterion(ctx, tx, criterionID)
		if err != nil {
			return err
		}
		if count > 0 {
			return apierr.Newf(apierr.KindInvariant, apierr.CodeCriterionHasSignOffs,
				"criterion has %d sign-off events and cannot be deleted", count)
		}
		return s.criteria.Delete(ctx, tx, criterionID)
	})
	if err != nil {
		return err
	}

	actorID := rd.Actor()
	emitAudit(s.log, s.audit.Log(ctx, AuditEntityCriterion, criterionID, AuditActionDelete,
		map[string]interface{}{"release_id": releaseID, "name": criterion.Name},
		nil,
		&actorID,
	))
	return nil
}

func (s *releaseService) AssignStakeholders(ctx context.Context, releaseID uuid.UUID, userIDs []uuid.UUID) ([]*types.ReleaseStakeholder, error) {
	rd, err := s.identity.Caller(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireEditableRelease(ctx, releaseID); err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, apierr.Newf(apierr.KindValidation, apierr.CodeMissingField, "user_ids is required")
	}

	created, err := s.stakeholders.Assign(ctx, nil, releaseID, userIDs)
	if err != nil {
		return nil, err
	}

	actorID := rd.Actor()
	for _, sh := range created {
		emitAudit(s.log, s.audit.Log(ctx, AuditEntityStakeholder, sh.ID, AuditActionCreate,
			nil,
			map[string]interface{}{"release_id": releaseID, "user_id": sh.UserID},
			&actorID,
		))
	}
	return created, nil
}

func (s *releaseService) ListStakeholders(ctx context.Context, releaseID uuid.UUID) ([]*types.ReleaseStakeholder, error) {
	return s.stakeholders.ListByRelease(ctx, nil, releaseID)
}

func (s *releaseService) RemoveStakeholder(ctx context.Context, releaseID, userID uuid.UUID) error {
	rd, err := s.identity.Caller(ctx)
	if err != nil {
		return err
	}
	if _, err := s.requireEditableRelease(ctx, releaseID); err != nil {
		return err
	}

	// Prior sign-offs stay in the ledger; the user just stops counting
	// toward resolution and disappears from the matrix.
	removed, err := s.stakeholders.Remove(ctx, nil, releaseID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return apierr.Newf(apierr.KindNotFound, "stakeholder_not_found",
			"user %s is not a stakeholder of release %s", userID, releaseID)
	}

	actorID := rd.Actor()
	emitAudit(s.log, s.audit.Log(ctx, AuditEntityStakeholder, releaseID, AuditActionDelete,
		map[string]interface{}{"release_id": releaseID, "user_id": userID},
		nil,
		&actorID,
	))
	return nil
}

func (s *releaseService) Summary(ctx context.Context) (map[types.ReleaseStatus]int64, error) {
	return s.releases.CountByStatus(ctx, nil)
}

// requireEditableRelease loads the release and enforces both the caller's
// edit rights and the freeze rule: criteria and stakeholder sets only change
// while the release is draft or in_review.
func (s *releaseService) requireEditableRelease(ctx context.Context, releaseID uuid.UUID) (*types.Release, error) {
	release, err := s.releases.GetByID(ctx, nil, releaseID)
	if err != nil {
		return nil, err
	}
	if release == nil {
		return nil, apierr.Newf(apierr.KindNotFound, "release_not_found",
			"release %s not found", releaseID)
	}
	if err := s.identity.RequireEditProduct(ctx, nil, release.ProductID); err != nil {
		return nil, err
	}
	if !release.Status.Editable() {
		return nil, apierr.Newf(apierr.KindInvariant, apierr.CodeReleaseFrozen,
			"release is %s and can no longer be edited", release.Status)
	}
	return release, nil
}

func (s *releaseService) requireCriterion(ctx context.Context, releaseID, criterionID uuid.UUID) (*types.ReleaseCriterion, error) {
	criterion, err := s.criteria.GetByID(ctx, nil, criterionID)
	if err != nil {
		return nil, err
	}
	if criterion == nil || criterion.ReleaseID != releaseID {
		return nil, apierr.Newf(apierr.KindNotFound, "criterion_not_found",
			"criterion %s not found on release %s", criterionID, releaseID)
	}
	return criterion, nil
}
