package postgres

import (
	"context"
	"fmt"

	"github.com/selimekin/storefront/internal/domain"
	"github.com/selimekin/storefront/pkg/database"
	apperrors "github.com/selimekin/storefront/pkg/errors"
)

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts the review and recomputes the product's rating aggregates in
// the same transaction, so average_rating and total_reviews never drift from
// the review rows.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO reviews (id, product_id, user_id, rating, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = tx.Exec(ctx, insertQuery,
		review.ID,
		review.ProductID,
		review.UserID,
		review.Rating,
		review.Comment,
		review.CreatedAt,
		review.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("review", "product", review.ProductID)
		}
		return fmt.Errorf("insert review: %w", err)
	}

	aggregateQuery := `
		UPDATE products p
		SET average_rating = agg.avg_rating,
		    total_reviews = agg.review_count,
		    updated_at = NOW()
		FROM (
			SELECT COALESCE(AVG(rating), 0) AS avg_rating, COUNT(*) AS review_count
			FROM reviews
			WHERE product_id = $1
		) agg
		WHERE p.id = $1`

	if _, err := tx.Exec(ctx, aggregateQuery, review.ProductID); err != nil {
		return fmt.Errorf("update rating aggregates: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// ListByProduct returns reviews for a product, newest first, with the total count.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string, page, limit int) ([]domain.Review, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	query := `
		SELECT id, product_id, user_id, rating, comment, created_at, updated_at,
			   count(*) OVER() AS total_count
		FROM reviews
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, productID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    []domain.Review
		totalCount int64
	)

	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.ProductID,
			&rv.UserID,
			&rv.Rating,
			&rv.Comment,
			&rv.CreatedAt,
			&rv.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}

	return reviews, totalCount, nil
}
