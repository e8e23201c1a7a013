package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/releasegate/releasegate-backend/internal/notify"
	"github.com/releasegate/releasegate-backend/internal/platform/apierr"
	"github.com/releasegate/releasegate-backend/internal/platform/logger"
	"github.com/releasegate/releasegate-backend/internal/repos"
	"github.com/releasegate/releasegate-backend/internal/types"
)

// LifecycleService drives release status transitions:
//
//	draft → in_review → approved → released
//	in_review | approved → cancelled
//
// Every transition requires edit rights; in_review → approved additionally
// requires every mandatory criterion approved. The status write is a
// compare-and-set so two concurrent transitions from the same state cannot
// both win.
type LifecycleService interface {
	Transition(ctx context.Context, releaseID uuid.UUID, to types.ReleaseStatus) (*types.Release, error)
	// DeleteDraft hard-deletes a draft release with its criteria and
	// stakeholders. Refused when any sign-off exists, revoked included.
	DeleteDraft(ctx context.Context, releaseID uuid.UUID) error
}

type lifecycleService struct {
	db           *gorm.DB
	log          *logger.Logger
	identity     IdentityService
	releases     repos.ReleaseRepo
	criteria     repos.CriterionRepo
	signOffs     repos.SignOffRepo
	stakeholders repos.StakeholderRepo
	audit        AuditRecorder
	notifier     notify.Notifier
}

func NewLifecycleService(
	db *gorm.DB,
	baseLog *logger.Logger,
	identity IdentityService,
	releases repos.ReleaseRepo,
	criteria repos.CriterionRepo,
	signOffs repos.SignOffRepo,
	stakeholders repos.StakeholderRepo,
	audit AuditRecorder,
	notifier notify.Notifier,
) LifecycleService {
	return &lifecycleService{
		db:           db,
		log:          baseLog.With("service", "LifecycleService"),
		identity:     identity,
		releases:     releases,
		criteria:     criteria,
		signOffs:     signOffs,
		stakeholders: stakeholders,
		audit:        audit,
		notifier:     notifier,
	}
}

// canTransition is the transition table. Anything not listed is invalid;
// released and cancelled have no outbound edges.
func canTransition(from, to types.ReleaseStatus) bool {
	switch from {
	case types.ReleaseStatusDraft:
		return to == types.ReleaseStatusInReview
	case types.ReleaseStatusInReview:
		return to == types.ReleaseStatusApproved || to == types.ReleaseStatusCancelled
	case types.ReleaseStatusApproved:
		return to == types.ReleaseStatusReleased || to == types.ReleaseStatusCancelled
	case types.ReleaseStatusReleased, types.ReleaseStatusCancelled:
		return false
	}
	return false
}

func (s *lifecycleService) Transition(ctx context.Context, releaseID uuid.UUID, to types.ReleaseStatus) (*types.Release, error) {
	rd, err := s.identity.Caller(ctx)
	if err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, apierr.Newf(apierr.KindValidation, "invalid_release_status",
			"unknown release status %q", to)
	}

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

	from := release.Status
	if !canTransition(from, to) {
		return nil, apierr.Newf(apierr.KindConflict, apierr.CodeInvalidTransition,
			"cannot transition release from %s to %s", from, to)
	}

	if to == types.ReleaseStatusApproved {
		progress, err := s.currentProgress(ctx, releaseID)
		if err != nil {
			return nil, err
		}
		if !progress.AllMandatoryApproved {
			return nil, apierr.Newf(apierr.KindConflict, apierr.CodeInvalidTransition,
				"release has %d of %d mandatory criteria approved",
				progress.MandatoryApproved, progress.MandatoryTotal)
		}
	}

	var releasedAt *time.Time
	if to == types.ReleaseStatusReleased {
		now := time.Now().UTC()
		releasedAt = &now
	}

	swapped, err := s.releases.UpdateStatusCAS(ctx, nil, releaseID, from, to, releasedAt)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, apierr.Newf(apierr.KindConflict, apierr.CodeStaleReleaseState,
			"release status changed concurrently; re-fetch and retry")
	}

	updated, err := s.releases.GetByID(ctx, nil, releaseID)
	if err != nil {
		return nil, err
	}

	actorID := rd.Actor()
	emitAudit(s.log, s.audit.Log(ctx, AuditEntityRelease, releaseID, AuditActionTransition,
		map[string]interface{}{"status": from},
		map[string]interface{}{"status": to},
		&actorID,
	))
	emitNotify(s.log, s.notifier.Publish(ctx, notify.Event{
		Type:      notify.EventReleaseTransition,
		ReleaseID: releaseID,
		ActorID:   &actorID,
		Status:    string(to),
		At:        time.Now().UTC(),
	}))
	s.log.Info("release transitioned", "release_id", releaseID, "from", from, "to", to)
	return updated, nil
}

func (s *lifecycleService) DeleteDraft(ctx context.Context, releaseID uuid.UUID) error {
	rd, err := s.identity.Caller(ctx)
	if err != nil {
		return err
	}

	release, err := s.releases.GetByID(ctx, nil, releaseID)
	if err != nil {
		return err
	}
	if release == nil {
		return apierr.Newf(apierr.KindNotFound, "release_not_found",
			"release %s not found", releaseID)
	}
	if err := s.identity.RequireEditProduct(ctx, nil, release.ProductID); err != nil {
		return err
	}
	if release.Status != types.ReleaseStatusDraft {
		return apierr.Newf(apierr.KindInvariant, apierr.CodeReleaseNotDraft,
			"only draft releases may be deleted; release is %s (cancel instead)", release.Status)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		criteria, err := s.criteria.ListByRelease(ctx, tx, releaseID)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(criteria))
		for _, c := range criteria {
			ids = append(ids, c.ID)
		}
		count, err := s.signOffs.CountByCriteria(ctx, tx, ids)
		if err != nil {
			return err
		}
		if count > 0 {
			return apierr.Newf(apierr.KindInvariant, apierr.CodeDraftHasSignOffs,
				"draft release has %d sign-off events; deletion would destroy the audit trail", count)
		}
		if err := s.criteria.DeleteByRelease(ctx, tx, releaseID); err != nil {
			return err
		}
		if err := s.stakeholders.RemoveByRelease(ctx, tx, releaseID); err != nil {
			return err
		}
		return s.releases.HardDelete(ctx, tx, releaseID)
	})
	if err != nil {
		return err
	}

	actorID := rd.Actor()
	emitAudit(s.log, s.audit.Log(ctx, AuditEntityRelease, releaseID, AuditActionDelete,
		map[string]interface{}{
			"product_id": release.ProductID,
			"version":    release.Version,
			"name":       release.Name,
			"status":     release.Status,
		},
		nil,
		&actorID,
	))
	emitNotify(s.log, s.notifier.Publish(ctx, notify.Event{
		Type:      notify.EventReleaseDeleted,
		ReleaseID: releaseID,
		ActorID:   &actorID,
		At:        time.Now().UTC(),
	}))
	return nil
}

// currentProgress resolves every criterion from the ledger and aggregates.
// The cached status column is not trusted for gating decisions.
func (s *lifecycleService) currentProgress(ctx context.Context, releaseID uuid.UUID) (Progress, error) {
	criteria, err := s.criteria.ListByRelease(ctx, nil, releaseID)
	if err != nil {
		return Progress{}, err
	}
	stakeholders, err := s.stakeholders.ListByRelease(ctx, nil, releaseID)
	if err != nil {
		return Progress{}, err
	}
	ids := make([]uuid.UUID, 0, len(criteria))
	for _, c := range criteria {
		ids = append(ids, c.ID)
	}
	events, err := s.signOffs.ListByCriteria(ctx, nil, ids)
	if err != nil {
		return Progress{}, err
	}
	byCriterion := make(map[uuid.UUID][]*types.SignOff, len(criteria))
	for _, ev := range events {
		byCriterion[ev.CriterionID] = append(byCriterion[ev.CriterionID], ev)
	}
	shIDs := stakeholderIDs(stakeholders)
	for _, criterion := range criteria {
		latest := LatestByActor(byCriterion[criterion.ID])
		criterion.Status = ResolveCriterionStatus(criterion, latest, shIDs)
	}
	return ComputeProgress(criteria), nil
}
