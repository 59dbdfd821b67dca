package services

import (
	"context"
	"strings"

	"bookstore/internal/models"
	"bookstore/internal/repositories"

	"github.com/rs/zerolog"
)

// ProductService handles the catalogue operations: listing, adding and
// deleting products.
type ProductService struct {
	repo repositories.ProductRepository
	log  zerolog.Logger
}

// AddProductInput carries the fields of a new product.
type AddProductInput struct {
	Name  string
	Price float64
	Stock int
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, log zerolog.Logger) *ProductService {
	return &ProductService{
		repo: repo,
		log:  log,
	}
}

// ListProducts retrieves all products ordered by id.
func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.ListAll(ctx)
}

// GetProduct retrieves a single product by its raw id.
func (s *ProductService) GetProduct(ctx context.Context, rawID string) (*models.Product, error) {
	id, err := ParseProductID(rawID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// AddProduct stores a new product and returns it with its assigned id.
func (s *ProductService) AddProduct(ctx context.Context, in AddProductInput) (*models.Product, error) {
	name := strings.TrimSpace(in.Name)
	id, err := s.repo.Insert(ctx, name, in.Price, in.Stock)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("product_id", id).Str("name", name).Int("stock", in.Stock).Msg("product added")
	return &models.Product{ID: id, Name: name, Price: in.Price, Stock: in.Stock}, nil
}

// DeleteProduct deletes a product by its raw id. Unknown ids succeed.
func (s *ProductService) DeleteProduct(ctx context.Context, rawID string) error {
	id, err := ParseProductID(rawID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("product_id", id).Msg("product deleted")
	return nil
}
