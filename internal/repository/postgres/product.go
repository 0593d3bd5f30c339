package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/selimekin/storefront/internal/domain"
	"github.com/selimekin/storefront/internal/repository"
	"github.com/selimekin/storefront/pkg/database"
	apperrors "github.com/selimekin/storefront/pkg/errors"
)

const productColumns = `id, name, slug, description, sku, category, brand, price, compare_price,
	stock, low_stock_threshold, image_url, is_active, is_featured,
	average_rating, total_reviews, total_sales, created_at, updated_at`

// sortColumns whitelists the columns accepted for ORDER BY. Anything else
// falls back to created_at.
var sortColumns = map[string]string{
	"created_at":     "created_at",
	"price":          "price",
	"name":           "name",
	"average_rating": "average_rating",
	"total_sales":    "total_sales",
}

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts a new product into the database.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (id, name, slug, description, sku, category, brand, price, compare_price,
			stock, low_stock_threshold, image_url, is_active, is_featured, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Slug,
		p.Description,
		p.SKU,
		p.Category,
		p.Brand,
		p.Price,
		p.ComparePrice,
		p.Stock,
		p.LowStockThreshold,
		p.ImageURL,
		p.IsActive,
		p.IsFeatured,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "sku", p.SKU)
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)
	return r.scanProduct(ctx, query, id)
}

// GetByIDs retrieves multiple products in a single query, keyed by ID.
// Missing IDs are simply absent from the result map.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	if len(ids) == 0 {
		return map[string]*domain.Product{}, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = ANY($1)`, productColumns)

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query products by ids: %w", err)
	}
	defer rows.Close()

	products := make(map[string]*domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := scanProductRow(rows, &p); err != nil {
			return nil, err
		}
		products[p.ID] = &p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

// List returns products matching the given filter with the total count.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int64, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}

	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, *filter.Category)
		argIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d OR brand ILIKE $%d)", argIndex, argIndex, argIndex))
		args = append(args, "%"+*filter.Search+"%")
		argIndex++
	}

	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price >= $%d", argIndex))
		args = append(args, *filter.MinPrice)
		argIndex++
	}

	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price <= $%d", argIndex))
		args = append(args, *filter.MaxPrice)
		argIndex++
	}

	if filter.MinRating != nil {
		conditions = append(conditions, fmt.Sprintf("average_rating >= $%d", argIndex))
		args = append(args, *filter.MinRating)
		argIndex++
	}

	if filter.InStock {
		conditions = append(conditions, "stock > 0")
	}

	if filter.Featured {
		conditions = append(conditions, "is_featured = TRUE")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	sortBy, ok := sortColumns[filter.SortBy]
	if !ok {
		sortBy = "created_at"
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	// Use count(*) OVER() for total count in a single query.
	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, sortBy, sortOrder, argIndex, argIndex+1,
	)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var (
		products   []domain.Product
		totalCount int64
	)

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Slug,
			&p.Description,
			&p.SKU,
			&p.Category,
			&p.Brand,
			&p.Price,
			&p.ComparePrice,
			&p.Stock,
			&p.LowStockThreshold,
			&p.ImageURL,
			&p.IsActive,
			&p.IsFeatured,
			&p.AverageRating,
			&p.TotalReviews,
			&p.TotalSales,
			&p.CreatedAt,
			&p.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	if products == nil {
		products = []domain.Product{}
	}

	return products, totalCount, nil
}

// Update modifies an existing product in the database.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE products
		SET name = $1, slug = $2, description = $3, sku = $4, category = $5, brand = $6,
		    price = $7, compare_price = $8, stock = $9, low_stock_threshold = $10,
		    image_url = $11, is_active = $12, is_featured = $13, updated_at = $14
		WHERE id = $15`

	ct, err := r.pool.Exec(ctx, query,
		p.Name,
		p.Slug,
		p.Description,
		p.SKU,
		p.Category,
		p.Brand,
		p.Price,
		p.ComparePrice,
		p.Stock,
		p.LowStockThreshold,
		p.ImageURL,
		p.IsActive,
		p.IsFeatured,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "sku", p.SKU)
		}
		return fmt.Errorf("update product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID)
	}

	return nil
}

// Deactivate clears the product's active flag instead of deleting the row so
// existing order snapshots keep a valid reference.
func (r *ProductRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE products SET is_active = FALSE, updated_at = $1 WHERE id = $2`

	ct, err := r.pool.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

// scanProduct is a helper that executes a query expected to return a single product row.
func (r *ProductRepository) scanProduct(ctx context.Context, query string, args ...any) (*domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.SKU,
		&p.Category,
		&p.Brand,
		&p.Price,
		&p.ComparePrice,
		&p.Stock,
		&p.LowStockThreshold,
		&p.ImageURL,
		&p.IsActive,
		&p.IsFeatured,
		&p.AverageRating,
		&p.TotalReviews,
		&p.TotalSales,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	return &p, nil
}

// scanProductRow scans a product from a multi-row result set.
func scanProductRow(rows pgx.Rows, p *domain.Product) error {
	if err := rows.Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.SKU,
		&p.Category,
		&p.Brand,
		&p.Price,
		&p.ComparePrice,
		&p.Stock,
		&p.LowStockThreshold,
		&p.ImageURL,
		&p.IsActive,
		&p.IsFeatured,
		&p.AverageRating,
		&p.TotalReviews,
		&p.TotalSales,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return fmt.Errorf("scan product row: %w", err)
	}
	return nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
