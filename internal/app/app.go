// Package app wires the engine together: database, repositories, services,
// audit recorder and the notification bus. Entrypoints and embedding
// programs build one App and pull what they need off it.
package app

import (
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/releasegate/releasegate-backend/internal/db"
	"github.com/releasegate/releasegate-backend/internal/notify"
	"github.com/releasegate/releasegate-backend/internal/platform/logger"
	"github.com/releasegate/releasegate-backend/internal/repos"
	"github.com/releasegate/releasegate-backend/internal/services"
)

type Repos struct {
	Products     repos.ProductRepo
	Owners       repos.ProductOwnerRepo
	Templates    repos.TemplateRepo
	Releases     repos.ReleaseRepo
	Criteria     repos.CriterionRepo
	SignOffs     repos.SignOffRepo
	Stakeholders repos.StakeholderRepo
	AuditLogs    repos.AuditLogRepo
}

type Services struct {
	Identity  services.IdentityService
	Audit     services.AuditRecorder
	Templates services.TemplateService
	Releases  services.ReleaseService
	Ledger    services.LedgerService
	Matrix    services.MatrixService
	Lifecycle services.LifecycleService
}

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Repos    Repos
	Services Services
	Notifier notify.Notifier
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	// The bus is optional: without REDIS_ADDR events are dropped.
	var notifier notify.Notifier
	if os.Getenv("REDIS_ADDR") != "" {
		notifier, err = notify.NewRedisNotifier(log)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init notifier: %w", err)
		}
	} else {
		log.Warn("REDIS_ADDR not set, release events will not be published")
		notifier = notify.NewNoopNotifier()
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, reposet, notifier)

	return &App{
		Log:      log,
		DB:       theDB,
		Repos:    reposet,
		Services: serviceset,
		Notifier: notifier,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Notifier != nil {
		if err := a.Notifier.Close(); err != nil {
			a.Log.Warn("closing notifier", "error", err)
		}
	}
	a.Log.Sync()
}

func wireRepos(theDB *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Products:     repos.NewProductRepo(theDB, log),
		Owners:       repos.NewProductOwnerRepo(theDB, log),
		Templates:    repos.NewTemplateRepo(theDB, log),
		Releases:     repos.NewReleaseRepo(theDB, log),
		Criteria:     repos.NewCriterionRepo(theDB, log),
		SignOffs:     repos.NewSignOffRepo(theDB, log),
		Stakeholders: repos.NewStakeholderRepo(theDB, log),
		AuditLogs:    repos.NewAuditLogRepo(theDB, log),
	}
}

func wireServices(theDB *gorm.DB, log *logger.Logger, r Repos, notifier notify.Notifier) Services {
	identity := services.NewIdentityService(log, r.Owners)
	audit := services.NewAuditService(theDB, log, r.AuditLogs)

	return Services{
		Identity:  identity,
		Audit:     audit,
		Templates: services.NewTemplateService(theDB, log, identity, r.Templates, audit),
		Releases: services.NewReleaseService(theDB, log, identity,
			r.Products, r.Templates, r.Releases, r.Criteria, r.SignOffs, r.Stakeholders,
			audit, notifier),
		Ledger: services.NewLedgerService(theDB, log, identity,
			r.SignOffs, r.Criteria, r.Releases, r.Stakeholders,
			audit, notifier),
		Matrix: services.NewMatrixService(theDB, log,
			r.Releases, r.Criteria, r.SignOffs, r.Stakeholders),
		Lifecycle: services.NewLifecycleService(theDB, log, identity,
			r.Releases, r.Criteria, r.SignOffs, r.Stakeholders,
			audit, notifier),
	}
}
