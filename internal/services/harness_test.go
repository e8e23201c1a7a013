package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/releasegate/releasegate-backend/internal/notify"
	"github.com/releasegate/releasegate-backend/internal/repos"
	"github.com/releasegate/releasegate-backend/internal/repos/testutil"
	"github.com/releasegate/releasegate-backend/internal/requestdata"
)

// harness wires every service against a fresh in-memory database.
type harness struct {
	db        *gorm.DB
	products  repos.ProductRepo
	owners    repos.ProductOwnerRepo
	templates repos.TemplateRepo
	releases  repos.ReleaseRepo
	criteria  repos.CriterionRepo
	signOffs  repos.SignOffRepo
	members   repos.StakeholderRepo
	auditLogs repos.AuditLogRepo

	identity  IdentityService
	audit     AuditRecorder
	template  TemplateService
	release   ReleaseService
	ledger    LedgerService
	matrix    MatrixService
	lifecycle LifecycleService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	notifier := notify.NewNoopNotifier()

	h := &harness{
		db:        db,
		products:  repos.NewProductRepo(db, log),
		owners:    repos.NewProductOwnerRepo(db, log),
		templates: repos.NewTemplateRepo(db, log),
		releases:  repos.NewReleaseRepo(db, log),
		criteria:  repos.NewCriterionRepo(db, log),
		signOffs:  repos.NewSignOffRepo(db, log),
		members:   repos.NewStakeholderRepo(db, log),
		auditLogs: repos.NewAuditLogRepo(db, log),
	}
	h.identity = NewIdentityService(log, h.owners)
	h.audit = NewAuditService(db, log, h.auditLogs)
	h.template = NewTemplateService(db, log, h.identity, h.templates, h.audit)
	h.release = NewReleaseService(db, log, h.identity,
		h.products, h.templates, h.releases, h.criteria, h.signOffs, h.members,
		h.audit, notifier)
	h.ledger = NewLedgerService(db, log, h.identity,
		h.signOffs, h.criteria, h.releases, h.members,
		h.audit, notifier)
	h.matrix = NewMatrixService(db, log,
		h.releases, h.criteria, h.signOffs, h.members)
	h.lifecycle = NewLifecycleService(db, log, h.identity,
		h.releases, h.criteria, h.signOffs, h.members,
		h.audit, notifier)
	return h
}

func asUser(userID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{UserID: userID})
}

func asAdmin(userID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{UserID: userID, IsAdmin: true})
}
