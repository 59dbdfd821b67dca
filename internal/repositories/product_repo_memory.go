package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bookstore/internal/models"
)

// MemoryProductRepository is an in-memory implementation of ProductRepository.
type MemoryProductRepository struct {
	products map[int64]models.Product
	nextID   int64
	mu       sync.RWMutex
}

// NewMemoryProductRepository creates a new instance of MemoryProductRepository.
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		products: make(map[int64]models.Product),
	}
}

// ListAll returns all products ordered by id.
func (r *MemoryProductRepository) ListAll(ctx context.Context) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		productList = append(productList, p)
	}
	sort.Slice(productList, func(i, j int) bool { return productList[i].ID < productList[j].ID })
	return productList, nil
}

// GetByID returns a product by its ID.
func (r *MemoryProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %d: %w", id, models.ErrNotFound)
	}
	return &product, nil
}

// Insert adds a new product with the next sequential id.
func (r *MemoryProductRepository) Insert(ctx context.Context, name string, price float64, stock int) (int64, error) {
	if err := checkProductFields(name, price, stock); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.products[r.nextID] = models.Product{ID: r.nextID, Name: name, Price: price, Stock: stock}
	return r.nextID, nil
}

// Delete removes a product by its ID. Missing ids are ignored.
func (r *MemoryProductRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.products, id)
	return nil
}

// DecrementIfAvailable checks and decrements under the write lock.
func (r *MemoryProductRepository) DecrementIfAvailable(ctx context.Context, id int64) (DecrementResult, error) {
	if err := ctx.Err(); err != nil {
		return NotAvailable, fmt.Errorf("%w: %w", models.ErrStorage, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok || product.Stock <= 0 {
		return NotAvailable, nil
	}
	product.Stock--
	r.products[id] = product
	return Decremented, nil
}
