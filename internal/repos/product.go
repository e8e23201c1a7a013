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

type ProductRepo interface {
	Create(ctx context.Context, tx *gorm.DB, products []*types.Product) ([]*types.Product, error)
	GetByID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*types.Product, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Product, error)
	SetDefaultTemplate(ctx context.Context, tx *gorm.DB, productID uuid.UUID, templateID *uuid.UUID) error
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return &productRepo{db: db, log: baseLog.With("repo", "ProductRepo")}
}

func (pr *productRepo) Create(ctx context.Context, tx *gorm.DB, products []*types.Product) ([]*types.Product, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	if len(products) == 0 {
		return []*types.Product{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (pr *productRepo) GetByID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*types.Product, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var result types.Product
	err := transaction.WithContext(ctx).
		Where("id = ?", productID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (pr *productRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Product, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var results []*types.Product
	if err := transaction.WithContext(ctx).
		Order("name ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *productRepo) SetDefaultTemplate(ctx context.Context, tx *gorm.DB, productID uuid.UUID, templateID *uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"default_template_id": templateID,
			"updated_at":          time.Now().UTC(),
		}).Error
}

type ProductOwnerRepo interface {
	Grant(ctx context.Context, tx *gorm.DB, productID uuid.UUID, userIDs []uuid.UUID) error
	Revoke(ctx context.Context, tx *gorm.DB, productID, userID uuid.UUID) error
	IsOwner(ctx context.Context, tx *gorm.DB, productID, userID uuid.UUID) (bool, error)
	ListOwners(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]uuid.UUID, error)
}

type productOwnerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductOwnerRepo(db *gorm.DB, baseLog *logger.Logger) ProductOwnerRepo {
	return &productOwnerRepo{db: db, log: baseLog.With("repo", "ProductOwnerRepo")}
}

func (por *productOwnerRepo) Grant(ctx context.Context, tx *gorm.DB, productID uuid.UUID, userIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = por.db
	}
	now := time.Now().UTC()
	for _, userID := range userIDs {
		var count int64
		if err := transaction.WithContext(ctx).
			Model(&types.ProductOwner{}).
			Where("product_id = ? AND user_id = ?", productID, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		row := &types.ProductOwner{
			ID:        uuid.New(),
			ProductID: productID,
			UserID:    userID,
			CreatedAt: now,
		}
		if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
			return err
		}
	}
	return nil
}

func (por *productOwnerRepo) Revoke(ctx context.Context, tx *gorm.DB, productID, userID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = por.db
	}
	return transaction.WithContext(ctx).
		Where("product_id = ? AND user_id = ?", productID, userID).
		Delete(&types.ProductOwner{}).Error
}

func (por *productOwnerRepo) IsOwner(ctx context.Context, tx *gorm.DB, productID, userID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = por.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.ProductOwner{}).
		Where("product_id = ? AND user_id = ?", productID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (por *productOwnerRepo) ListOwners(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = por.db
	}
	var rows []*types.ProductOwner
	if err := transaction.WithContext(ctx).
		Where("product_id = ?", productID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.UserID)
	}
	return out, nil
}
