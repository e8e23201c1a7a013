package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/releasegate/releasegate-backend/internal/platform/apierr"
	"github.com/releasegate/releasegate-backend/internal/platform/logger"
	"github.com/releasegate/releasegate-backend/internal/repos"
	"github.com/releasegate/releasegate-backend/internal/types"
)

// MatrixCell is one stakeholder's latest active sign-off on one criterion.
// Status is nil when the stakeholder has not signed off (or revoked).
type MatrixCell struct {
	UserID   uuid.UUID            `json:"user_id"`
	Status   *types.SignOffStatus `json:"status"`
	Comment  string               `json:"comment,omitempty"`
	Link     string               `json:"link,omitempty"`
	SignedAt *time.Time           `json:"signed_at,omitempty"`
}

type MatrixRow struct {
	CriterionID    uuid.UUID             `json:"criterion_id"`
	CriterionName  string                `json:"criterion_name"`
	IsMandatory    bool                  `json:"is_mandatory"`
	ComputedStatus types.CriterionStatus `json:"computed_status"`
	Cells          []MatrixCell          `json:"cells"`
}

// Matrix is the criteria × stakeholders grid for one release. Row order is
// the criteria display order; cell order is stakeholder assignment order,
// identical on every row.
type Matrix struct {
	ReleaseID    uuid.UUID   `json:"release_id"`
	Stakeholders []uuid.UUID `json:"stakeholders"`
	Rows         []MatrixRow `json:"rows"`
}

type MatrixService interface {
	Build(ctx context.Context, releaseID uuid.UUID) (*Matrix, error)
}

type matrixService struct {
	db           *gorm.DB
	log          *logger.Logger
	releases     repos.ReleaseRepo
	criteria     repos.CriterionRepo
	signOffs     repos.SignOffRepo
	stakeholders repos.StakeholderRepo
}

func NewMatrixService(
	db *gorm.DB,
	baseLog *logger.Logger,
	releases repos.ReleaseRepo,
	criteria repos.CriterionRepo,
	signOffs repos.SignOffRepo,
	stakeholders repos.StakeholderRepo,
) MatrixService {
	return &matrixService{
		db:           db,
		log:          baseLog.With("service", "MatrixService"),
		releases:     releases,
		criteria:     criteria,
		signOffs:     signOffs,
		stakeholders: stakeholders,
	}
}

func (s *matrixService) Build(ctx context.Context, releaseID uuid.UUID) (*Matrix, error) {
	release, err := s.releases.GetByID(ctx, nil, releaseID)
	if err != nil {
		return nil, err
	}
	if release == nil {
		return nil, apierr.Newf(apierr.KindNotFound, "release_not_found",
			"release %s not found", releaseID)
	}

	stakeholders, err := s.stakeholders.ListByRelease(ctx, nil, releaseID)
	if err != nil {
		return nil, err
	}
	criteria, err := s.criteria.ListByRelease(ctx, nil, releaseID)
	if err != nil {
		return nil, err
	}
	criterionIDs := make([]uuid.UUID, 0, len(criteria))
	for _, c := range criteria {
		criterionIDs = append(criterionIDs, c.ID)
	}
	events, err := s.signOffs.ListByCriteria(ctx, nil, criterionIDs)
	if err != nil {
		return nil, err
	}

	byCriterion := make(map[uuid.UUID][]*types.SignOff, len(criteria))
	for _, ev := range events {
		byCriterion[ev.CriterionID] = append(byCriterion[ev.CriterionID], ev)
	}

	shIDs := stakeholderIDs(stakeholders)
	matrix := &Matrix{
		ReleaseID:    releaseID,
		Stakeholders: shIDs,
		Rows:         make([]MatrixRow, 0, len(criteria)),
	}
	for _, criterion := range criteria {
		latest := LatestByActor(byCriterion[criterion.ID])
		row := MatrixRow{
			CriterionID:    criterion.ID,
			CriterionName:  criterion.Name,
			IsMandatory:    criterion.IsMandatory,
			ComputedStatus: ResolveCriterionStatus(criterion, latest, shIDs),
			Cells:          make([]MatrixCell, 0, len(stakeholders)),
		}
		for _, sh := range stakeholders {
			cell := MatrixCell{UserID: sh.UserID}
			if ev, ok := latest[sh.UserID]; ok && ev.Status.Active() {
				status := ev.Status
				signedAt := ev.SignedAt
				cell.Status = &status
				cell.Comment = ev.Comment
				cell.Link = ev.Link
				cell.SignedAt = &signedAt
			}
			row.Cells = append(row.Cells, cell)
		}
		matrix.Rows = append(matrix.Rows, row)
	}
	return matrix, nil
}
