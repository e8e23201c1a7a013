package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/releasegate/releasegate-backend/internal/platform/apierr"
	"github.com/releasegate/releasegate-backend/internal/platform/logger"
	"github.com/releasegate/releasegate-backend/internal/repos"
	"github.com/releasegate/releasegate-backend/internal/requestdata"
)

// IdentityService evaluates edit-rights guards against the resolved caller
// identity carried in the request context. It never authenticates anyone.
type IdentityService interface {
	// CanEditProduct reports whether the caller is an admin or a product
	// owner of the given product.
	CanEditProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (bool, error)
	// RequireEditProduct is CanEditProduct that fails with a typed
	// permission error.
	RequireEditProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error
	// Caller returns the request identity, failing when none is attached.
	Caller(ctx context.Context) (*requestdata.RequestData, error)
}

type identityService struct {
	log    *logger.Logger
	owners repos.ProductOwnerRepo
}

func NewIdentityService(baseLog *logger.Logger, owners repos.ProductOwnerRepo) IdentityService {
	return &identityService{
		log:    baseLog.With("service", "IdentityService"),
		owners: owners,
	}
}

func (s *identityService) Caller(ctx context.Context) (*requestdata.RequestData, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.New(apierr.KindPermission, "missing_identity",
			fmt.Errorf("no resolved identity on request context"))
	}
	return rd, nil
}

func (s *identityService) CanEditProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (bool, error) {
	rd, err := s.Caller(ctx)
	if err != nil {
		return false, err
	}
	if rd.IsAdmin {
		return true, nil
	}
	return s.owners.IsOwner(ctx, tx, productID, rd.UserID)
}

func (s *identityService) RequireEditProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	ok, err := s.CanEditProduct(ctx, tx, productID)
	if err != nil {
		return err
	}
	if !ok {
		return apierr.New(apierr.KindPermission, "not_product_owner",
			fmt.Errorf("caller is neither admin nor an owner of product %s", productID))
	}
	return nil
}
