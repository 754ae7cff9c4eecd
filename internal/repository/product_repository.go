package repository

import (
	"context"
	"errors"
	"fmt"

	"quote_manager/internal/apperrors"
	"quote_manager/internal/models"

	"gorm.io/gorm"
)

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetActive(tx Tx, id string) (*models.Product, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	return findProduct(r.db.WithContext(ctx), id, false)
}

// GetActive reads the catalog entry inside tx; inactive products are not found.
func (r *productRepository) GetActive(tx Tx, id string) (*models.Product, error) {
	db, err := tx.conn()
	if err != nil {
		return nil, err
	}
	return findProduct(db, id, true)
}

func findProduct(db *gorm.DB, id string, activeOnly bool) (*models.Product, error) {
	query := db.Where("id = ?", id)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var product models.Product
	if err := query.First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return &product, nil
}
