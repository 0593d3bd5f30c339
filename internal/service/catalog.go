package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/selimekin/storefront/internal/domain"
	"github.com/selimekin/storefront/internal/repository"
	apperrors "github.com/selimekin/storefront/pkg/errors"
	"github.com/selimekin/storefront/pkg/slug"
)

// CatalogService implements the business logic for products and reviews.
type CatalogService struct {
	products repository.ProductRepository
	reviews  repository.ReviewRepository
	logger   *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(products repository.ProductRepository, reviews repository.ReviewRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		products: products,
		reviews:  reviews,
		logger:   logger,
	}
}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	Name              string `json:"name" validate:"required,max=200"`
	Description       string `json:"description" validate:"max=2000"`
	SKU               string `json:"sku" validate:"required,max=64"`
	Category          string `json:"category" validate:"required"`
	Brand             string `json:"brand" validate:"max=100"`
	Price             int64  `json:"price" validate:"gt=0"`
	ComparePrice      *int64 `json:"compare_price,omitempty"`
	Stock             int    `json:"stock" validate:"min=0"`
	LowStockThreshold int    `json:"low_stock_threshold" validate:"min=0"`
	ImageURL          string `json:"image_url" validate:"omitempty,url"`
	IsFeatured        bool   `json:"is_featured"`
}

// UpdateProductInput holds the parameters for a partial product update.
// Nil fields are left unchanged.
type UpdateProductInput struct {
	Name              *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Description       *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Category          *string `json:"category,omitempty"`
	Brand             *string `json:"brand,omitempty" validate:"omitempty,max=100"`
	Price             *int64  `json:"price,omitempty" validate:"omitempty,gt=0"`
	ComparePrice      *int64  `json:"compare_price,omitempty"`
	Stock             *int    `json:"stock,omitempty" validate:"omitempty,min=0"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty" validate:"omitempty,min=0"`
	ImageURL          *string `json:"image_url,omitempty" validate:"omitempty,url"`
	IsActive          *bool   `json:"is_active,omitempty"`
	IsFeatured        *bool   `json:"is_featured,omitempty"`
}

// CreateProduct creates a new product with the given input.
func (s *CatalogService) CreateProduct(ctx context.Context, input *CreateProductInput) (*domain.Product, error) {
	if !domain.IsValidCategory(input.Category) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown category %q", input.Category))
	}
	if input.ComparePrice != nil && *input.ComparePrice <= input.Price {
		return nil, apperrors.InvalidInput("compare price must be greater than price")
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:                uuid.New().String(),
		Name:              input.Name,
		Slug:              slug.Generate(input.Name),
		Description:       input.Description,
		SKU:               strings.ToUpper(input.SKU),
		Category:          input.Category,
		Brand:             input.Brand,
		Price:             input.Price,
		ComparePrice:      input.ComparePrice,
		Stock:             input.Stock,
		LowStockThreshold: input.LowStockThreshold,
		ImageURL:          input.ImageURL,
		IsActive:          true,
		IsFeatured:        input.IsFeatured,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("sku", product.SKU),
	)

	return product, nil
}

// GetProduct retrieves a product by its ID. Inactive products are hidden
// unless includeInactive is set (admin paths).
func (s *CatalogService) GetProduct(ctx context.Context, id string, includeInactive bool) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	if !product.IsActive && !includeInactive {
		return nil, apperrors.NotFound("product", id)
	}

	return product, nil
}

// ListProducts returns products matching the filter with the total count.
func (s *CatalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int64, error) {
	if filter.Category != nil && !domain.IsValidCategory(*filter.Category) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("unknown category %q", *filter.Category))
	}

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	return products, total, nil
}

// UpdateProduct applies a partial update to a product.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, input *UpdateProductInput) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	if input.Name != nil {
		product.Name = *input.Name
		product.Slug = slug.Generate(*input.Name)
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Category != nil {
		if !domain.IsValidCategory(*input.Category) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("unknown category %q", *input.Category))
		}
		product.Category = *input.Category
	}
	if input.Brand != nil {
		product.Brand = *input.Brand
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.ComparePrice != nil {
		product.ComparePrice = input.ComparePrice
	}
	if input.Stock != nil {
		product.Stock = *input.Stock
	}
	if input.LowStockThreshold != nil {
		product.LowStockThreshold = *input.LowStockThreshold
	}
	if input.ImageURL != nil {
		product.ImageURL = *input.ImageURL
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	if input.IsFeatured != nil {
		product.IsFeatured = *input.IsFeatured
	}

	if product.ComparePrice != nil && *product.ComparePrice <= product.Price {
		return nil, apperrors.InvalidInput("compare price must be greater than price")
	}

	if err := s.products.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.logger.InfoContext(ctx, "product updated", slog.String("product_id", product.ID))

	return product, nil
}

// DeactivateProduct soft-deletes a product.
func (s *CatalogService) DeactivateProduct(ctx context.Context, id string) error {
	if err := s.products.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}

	s.logger.InfoContext(ctx, "product deactivated", slog.String("product_id", id))

	return nil
}

// AddReviewInput holds the parameters for adding a review.
type AddReviewInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// AddReview adds a review to an active product. One review per user per
// product; the unique constraint surfaces as AlreadyExists.
func (s *CatalogService) AddReview(ctx context.Context, productID, userID string, input *AddReviewInput) (*domain.Review, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	if !product.IsActive {
		return nil, apperrors.NotFound("product", productID)
	}

	now := time.Now().UTC()
	review := &domain.Review{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    userID,
		Rating:    input.Rating,
		Comment:   input.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	s.logger.InfoContext(ctx, "review added",
		slog.String("product_id", productID),
		slog.String("user_id", userID),
		slog.Int("rating", input.Rating),
	)

	return review, nil
}

// ListReviews returns reviews for a product, newest first.
func (s *CatalogService) ListReviews(ctx context.Context, productID string, page, limit int) ([]domain.Review, int64, error) {
	reviews, total, err := s.reviews.ListByProduct(ctx, productID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, total, nil
}
