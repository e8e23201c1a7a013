package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/releasegate/releasegate-backend/internal/notify"
	"github.com/releasegate/releasegate-backend/internal/platform/apierr"
	"github.com/releasegate/releasegate-backend/internal/platform/logger"
	"github.com/releasegate/releasegate-backend/internal/repos"
	"github.com/releasegate/releasegate-backend/internal/types"
)

// LedgerService owns the append-only sign-off history. Rows are never
// mutated: approvals, rejections and revokes are all new events, and the
// criterion's cached status is refreshed inside the same transaction.
type LedgerService interface {
	// Record appends an approved or rejected event for the calling actor.
	// Fails with duplicate_active_sign_off while the actor already has an
	// active entry on this criterion.
	Record(ctx context.Context, criterionID uuid.UUID, status types.SignOffStatus, comment, link string) (*types.SignOff, error)
	// Revoke appends a revoked event for the calling actor. Fails with
	// nothing_to_revoke when the actor has no active entry.
	Revoke(ctx context.Context, criterionID uuid.UUID) (*types.SignOff, error)
	// LatestByActor maps each actor to their most recent event for the
	// criterion, revoked entries included.
	LatestByActor(ctx context.Context, criterionID uuid.UUID) (map[uuid.UUID]*types.SignOff, error)
	// ListByRelease returns the full ledger across a release's criteria,
	// newest first.
	ListByRelease(ctx context.Context, releaseID uuid.UUID) ([]*types.SignOff, error)
}

type ledgerService struct {
	db           *gorm.DB
	log          *logger.Logger
	identity     IdentityService
	signOffs     repos.SignOffRepo
	criteria     repos.CriterionRepo
	releases     repos.ReleaseRepo
	stakeholders repos.StakeholderRepo
	audit        AuditRecorder
	notifier     notify.Notifier
}

func NewLedgerService(
	db *gorm.DB,
	baseLog *logger.Logger,
	identity IdentityService,
	signOffs repos.SignOffRepo,
	criteria repos.CriterionRepo,
	releases repos.ReleaseRepo,
	stakeholders repos.StakeholderRepo,
	audit AuditRecorder,
	notifier notify.Notifier,
) LedgerService {
	return &ledgerService{
		db:           db,
		log:          baseLog.With("service", "LedgerService"),
		identity:     identity,
		signOffs:     signOffs,
		criteria:     criteria,
		releases:     releases,
		stakeholders: stakeholders,
		audit:        audit,
		notifier:     notifier,
	}
}

func (s *ledgerService) Record(ctx context.Context, criterionID uuid.UUID, status types.SignOffStatus, comment, link string) (*types.SignOff, error) {
	rd, err := s.identity.Caller(ctx)
	if err != nil {
		return nil, err
	}
	if !status.Active() {
		return nil, apierr.Newf(apierr.KindValidation, "invalid_sign_off_status",
			"sign-off status must be approved or rejected, got %q", status)
	}
	if err := validateLink(link); err != nil {
		return nil, err
	}

	actor := rd.Actor()
	var created *types.SignOff
	var releaseID uuid.UUID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		criterion, release, err := s.loadCriterionRelease(ctx, tx, criterionID)
		if err != nil {
			return err
		}
		releaseID = release.ID
		if !release.Status.Editable() {
			return apierr.Newf(apierr.KindInvariant, apierr.CodeReleaseFrozen,
				"release %s is %s; sign-offs are closed", release.ID, release.Status)
		}

		stakeholders, err := s.stakeholders.ListByRelease(ctx, tx, release.ID)
		if err != nil {
			return err
		}
		if len(stakeholders) > 0 && !containsStakeholder(stakeholders, actor) {
			return apierr.Newf(apierr.KindPermission, apierr.CodeNotStakeholder,
				"actor is not assigned as a stakeholder of release %s", release.ID)
		}

		events, err := s.signOffs.ListByCriterion(ctx, tx, criterionID)
		if err != nil {
			return err
		}
		latest := LatestByActor(events)
		if prior, ok := latest[actor]; ok && prior.Status.Active() {
			return apierr.Newf(apierr.KindConflict, apierr.CodeDuplicateActiveSignOff,
				"actor already has an active %s sign-off on this criterion; revoke it first", prior.Status)
		}

		row := &types.SignOff{
			ID:          uuid.New(),
			CriterionID: criterionID,
			SignedByID:  actor,
			Status:      status,
			Comment:     comment,
			Link:        link,
			SignedAt:    time.Now().UTC(),
		}
		if _, err := s.signOffs.Create(ctx, tx, row); err != nil {
			return err
		}
		created = row

		latest[actor] = row
		return s.refreshStatus(ctx, tx, criterion, latest, stakeholders)
	})
	if err != nil {
		return nil, err
	}

	actorID := actor
	emitAudit(s.log, s.audit.Log(ctx, AuditEntitySignOff, created.ID, AuditActionCreate,
		nil,
		map[string]interface{}{
			"criterion_id": criterionID,
			"status":       created.Status,
			"comment":      created.Comment,
			"link":         created.Link,
		},
		&actorID,
	))
	emitNotify(s.log, s.notifier.Publish(ctx, notify.Event{
		Type:        notify.EventSignOffRecorded,
		ReleaseID:   releaseID,
		CriterionID: &criterionID,
		ActorID:     &actorID,
		Status:      string(created.Status),
		At:          created.SignedAt,
	}))
	return created, nil
}

func (s *ledgerService) Revoke(ctx context.Context, criterionID uuid.UUID) (*types.SignOff, error) {
	rd, err := s.identity.Caller(ctx)
	if err != nil {
		return nil, err
	}

	actor := rd.Actor()
	var created *types.SignOff
	var releaseID uuid.UUID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		criterion, release, err := s.loadCriterionRelease(ctx, tx, criterionID)
		if err != nil {
			return err
		}
		releaseID = release.ID
		if !release.Status.Editable() {
			return apierr.Newf(apierr.KindInvariant, apierr.CodeReleaseFrozen,
				"release %s is %s; sign-offs are closed", release.ID, release.Status)
		}

		events, err := s.signOffs.ListByCriterion(ctx, tx, criterionID)
		if err != nil {
			return err
		}
		latest := LatestByActor(events)
		prior, ok := latest[actor]
		if !ok || !prior.Status.Active() {
			return apierr.Newf(apierr.KindConflict, apierr.CodeNothingToRevoke,
				"actor has no active sign-off on this criterion")
		}

		row := &types.SignOff{
			ID:          uuid.New(),
			CriterionID: criterionID,
			SignedByID:  actor,
			Status:      types.SignOffStatusRevoked,
			SignedAt:    time.Now().UTC(),
		}
		if _, err := s.signOffs.Create(ctx, tx, row); err != nil {
			return err
		}
		created = row

		stakeholders, err := s.stakeholders.ListByRelease(ctx, tx, release.ID)
		if err != nil {
			return err
		}
		latest[actor] = row
		return s.refreshStatus(ctx, tx, criterion, latest, stakeholders)
	})
	if err != nil {
		return nil, err
	}

	actorID := actor
	emitAudit(s.log, s.audit.Log(ctx, AuditEntitySignOff, created.ID, AuditActionRevoke,
		map[string]interface{}{"criterion_id": criterionID},
		map[string]interface{}{"criterion_id": criterionID, "status": created.Status},
		&actorID,
	))
	emitNotify(s.log, s.notifier.Publish(ctx, notify.Event{
		Type:        notify.EventSignOffRevoked,
		ReleaseID:   releaseID,
		CriterionID: &criterionID,
		ActorID:     &actorID,
		Status:      string(created.Status),
		At:          created.SignedAt,
	}))
	return created, nil
}

func (s *ledgerService) LatestByActor(ctx context.Context, criterionID uuid.UUID) (map[uuid.UUID]*types.SignOff, error) {
	events, err := s.signOffs.ListByCriterion(ctx, nil, criterionID)
	if err != nil {
		return nil, err
	}
	return LatestByActor(events), nil
}

func (s *ledgerService) ListByRelease(ctx context.Context, releaseID uuid.UUID) ([]*types.SignOff, error) {
	criteria, err := s.criteria.ListByRelease(ctx, nil, releaseID)
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
	// Newest first for callers displaying history.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// loadCriterionRelease locks the criterion row so two concurrent writes
// for the same criterion cannot both pass the duplicate-active check.
func (s *ledgerService) loadCriterionRelease(ctx context.Context, tx *gorm.DB, criterionID uuid.UUID) (*types.ReleaseCriterion, *types.Release, error) {
	criterion, err := s.criteria.GetByIDForUpdate(ctx, tx, criterionID)
	if err != nil {
		return nil, nil, err
	}
	if criterion == nil {
		return nil, nil, apierr.Newf(apierr.KindNotFound, "criterion_not_found",
			"criterion %s not found", criterionID)
	}
	release, err := s.releases.GetByID(ctx, tx, criterion.ReleaseID)
	if err != nil {
		return nil, nil, err
	}
	if release == nil {
		return nil, nil, apierr.Newf(apierr.KindInternal, "release_missing",
			"criterion %s has no parent release", criterionID)
	}
	return criterion, release, nil
}

func (s *ledgerService) refreshStatus(ctx context.Context, tx *gorm.DB, criterion *types.ReleaseCriterion, latest map[uuid.UUID]*types.SignOff, stakeholders []*types.ReleaseStakeholder) error {
	ids := stakeholderIDs(stakeholders)
	status := ResolveCriterionStatus(criterion, latest, ids)
	return s.criteria.UpdateStatus(ctx, tx, criterion.ID, status)
}

func stakeholderIDs(stakeholders []*types.ReleaseStakeholder) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(stakeholders))
	for _, sh := range stakeholders {
		ids = append(ids, sh.UserID)
	}
	return ids
}

func containsStakeholder(stakeholders []*types.ReleaseStakeholder, userID uuid.UUID) bool {
	for _, sh := range stakeholders {
		if sh.UserID == userID {
			return true
		}
	}
	return false
}

func validateLink(link string) error {
	if link == "" {
		return nil
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apierr.New(apierr.KindValidation, apierr.CodeMalformedLink,
			fmt.Errorf("link must be an absolute http(s) URL"))
	}
	return nil
}
