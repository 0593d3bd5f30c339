package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/selimekin/storefront/internal/domain"
	"github.com/selimekin/storefront/internal/event"
	"github.com/selimekin/storefront/internal/repository"
	apperrors "github.com/selimekin/storefront/pkg/errors"
)

// CartService implements the business logic for cart operations.
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(carts repository.CartRepository, products repository.ProductRepository, producer *event.Producer, logger *slog.Logger) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		producer: producer,
		logger:   logger,
	}
}

// GetCart returns the user's cart, creating an empty one lazily. The cart is
// reconciled against the live catalog before it is returned: lines for
// missing or inactive products are dropped, quantities are clamped to the
// available stock, and unit prices are refreshed. Reconciled changes are
// persisted so the stored cart self-heals.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.NewCart(userID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	changed, err := s.reconcile(ctx, cart)
	if err != nil {
		return nil, err
	}

	if changed {
		cart.RecalculateTotals()
		if err := s.carts.Save(ctx, cart); err != nil {
			return nil, fmt.Errorf("save reconciled cart: %w", err)
		}
		s.logger.InfoContext(ctx, "cart reconciled against catalog",
			slog.String("user_id", userID),
			slog.Int("lines", len(cart.Items)),
		)
	}

	return cart, nil
}

// reconcile aligns cart lines with the live catalog. Reports whether any
// line was dropped, clamped, or repriced.
func (s *CartService) reconcile(ctx context.Context, cart *domain.Cart) (bool, error) {
	if len(cart.Items) == 0 {
		return false, nil
	}

	ids := make([]string, len(cart.Items))
	for i, item := range cart.Items {
		ids[i] = item.ProductID
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return false, fmt.Errorf("load cart products: %w", err)
	}

	changed := false
	kept := cart.Items[:0]

	for _, item := range cart.Items {
		product, ok := products[item.ProductID]
		if !ok || !product.IsActive || product.Stock <= 0 {
			changed = true
			continue
		}

		if item.Quantity > product.Stock {
			item.Quantity = product.Stock
			changed = true
		}
		if item.UnitPrice != product.Price {
			item.UnitPrice = product.Price
			changed = true
		}
		item.Name = product.Name
		item.SKU = product.SKU
		item.ImageURL = product.ImageURL

		kept = append(kept, item)
	}

	cart.Items = kept
	return changed, nil
}

// AddItem adds a product to the cart, merging quantities for an existing line.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 || quantity > domain.MaxQuantityPerLine {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must be between 1 and %d", domain.MaxQuantityPerLine))
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	if !product.IsActive {
		return nil, apperrors.NotFound("product", productID)
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := cart.FindItemIndex(productID)
	newQuantity := quantity
	if idx >= 0 {
		newQuantity += cart.Items[idx].Quantity
	}

	if newQuantity > domain.MaxQuantityPerLine {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity per line is capped at %d", domain.MaxQuantityPerLine))
	}
	if !product.HasStock(newQuantity) {
		return nil, apperrors.OutOfStock(product.Name, product.Stock)
	}

	if idx >= 0 {
		cart.Items[idx].Quantity = newQuantity
		cart.Items[idx].UnitPrice = product.Price
	} else {
		if len(cart.Items) >= domain.MaxCartLines {
			return nil, apperrors.InvalidInput(fmt.Sprintf("cart is limited to %d lines", domain.MaxCartLines))
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			SKU:       product.SKU,
			ImageURL:  product.ImageURL,
			UnitPrice: product.Price,
			Quantity:  quantity,
		})
	}

	cart.RecalculateTotals()
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.producer.CartUpdated(ctx, cart)

	return cart, nil
}

// SetQuantity sets the quantity of an existing cart line. A quantity of zero
// or less removes the line.
func (s *CartService) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity > domain.MaxQuantityPerLine {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity per line is capped at %d", domain.MaxQuantityPerLine))
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := cart.FindItemIndex(productID)
	if idx < 0 {
		return nil, apperrors.NotFound("cart item", productID)
	}

	if quantity <= 0 {
		cart.RemoveItemAt(idx)
	} else {
		product, err := s.products.GetByID(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("get product by id: %w", err)
		}
		if !product.IsActive {
			return nil, apperrors.NotFound("product", productID)
		}
		if !product.HasStock(quantity) {
			return nil, apperrors.OutOfStock(product.Name, product.Stock)
		}
		cart.Items[idx].Quantity = quantity
		cart.Items[idx].UnitPrice = product.Price
	}

	cart.RecalculateTotals()
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.producer.CartUpdated(ctx, cart)

	return cart, nil
}

// RemoveItem removes a line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := cart.FindItemIndex(productID)
	if idx < 0 {
		return nil, apperrors.NotFound("cart item", productID)
	}

	cart.RemoveItemAt(idx)
	cart.RecalculateTotals()

	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.producer.CartUpdated(ctx, cart)

	return cart, nil
}

// ClearCart removes the user's cart entirely.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if err := s.carts.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	s.producer.CartCleared(ctx, userID)

	return nil
}
