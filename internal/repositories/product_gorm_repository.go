package repositories

import (
	"context"
	"errors"
	"fmt"

	"bookstore/internal/models"

	"gorm.io/gorm"
)

// errNothingToDecrement aborts the decrement transaction when no row qualified.
var errNothingToDecrement = errors.New("no row with available stock")

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// ListAll retrieves all products ordered by id.
func (r *GORMProductRepository) ListAll(ctx context.Context) ([]models.Product, error) {
	products := make([]models.Product, 0)
	if err := r.db.WithContext(ctx).Order("id asc").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to list products: %w", models.ErrStorage, err)
	}
	return products, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product with ID %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to get product by ID %d: %w", models.ErrStorage, id, err)
	}
	return &product, nil
}

// Insert stores a new product and returns the id assigned by the database.
func (r *GORMProductRepository) Insert(ctx context.Context, name string, price float64, stock int) (int64, error) {
	if err := checkProductFields(name, price, stock); err != nil {
		return 0, err
	}
	product := models.Product{Name: name, Price: price, Stock: stock}
	if err := r.db.WithContext(ctx).Create(&product).Error; err != nil {
		return 0, fmt.Errorf("%w: failed to create product: %w", models.ErrStorage, err)
	}
	return product.ID, nil
}

// Delete removes a product by its ID. Deleting a missing product is not an error.
func (r *GORMProductRepository) Delete(ctx context.Context, id int64) error {
	if err := r.db.WithContext(ctx).Delete(&models.Product{}, id).Error; err != nil {
		return fmt.Errorf("%w: failed to delete product %d: %w", models.ErrStorage, id, err)
	}
	return nil
}

// DecrementIfAvailable runs the conditional update inside a transaction. The
// WHERE clause carries the stock check, so the database serializes concurrent
// orders on the same row and stock can never drop below zero.
func (r *GORMProductRepository) DecrementIfAvailable(ctx context.Context, id int64) (DecrementResult, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Product{}).
			Where("id = ? AND stock > 0", id).
			UpdateColumn("stock", gorm.Expr("stock - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNothingToDecrement
		}
		return nil
	})
	switch {
	case err == nil:
		return Decremented, nil
	case errors.Is(err, errNothingToDecrement):
		return NotAvailable, nil
	default:
		return NotAvailable, fmt.Errorf("%w: failed to decrement stock for product %d: %w", models.ErrStorage, id, err)
	}
}
