package repositories

import (
	"context"
	"fmt"
	"math"
	"strings"

	"bookstore/internal/models"
)

// DecrementResult reports the outcome of DecrementIfAvailable.
type DecrementResult int

const (
	// NotAvailable means the product is missing or out of stock; nothing changed.
	NotAvailable DecrementResult = iota
	// Decremented means exactly one unit of stock was taken.
	Decremented
)

func (r DecrementResult) String() string {
	if r == Decremented {
		return "decremented"
	}
	return "not_available"
}

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	ListAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	Insert(ctx context.Context, name string, price float64, stock int) (int64, error)
	Delete(ctx context.Context, id int64) error
	// DecrementIfAvailable takes one unit of stock if and only if stock > 0,
	// as a single atomic step.
	DecrementIfAvailable(ctx context.Context, id int64) (DecrementResult, error)
}

// checkProductFields rejects values that would break the products table rules.
func checkProductFields(name string, price float64, stock int) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name must not be empty", models.ErrValidation)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return fmt.Errorf("%w: price must be a non-negative number", models.ErrValidation)
	}
	if stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", models.ErrValidation)
	}
	return nil
}
