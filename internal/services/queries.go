package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/storefrontapp/storefront/internal/auth"
	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/store"
)

// OrderView is an order plus its progress timeline derived from the status history.
type OrderView struct {
	*models.Order
	StatusTimeline []models.TimelineStep `json:"statusTimeline"`
}

func ViewOf(order *models.Order) OrderView {
	if order == nil {
		return OrderView{}
	}
	return OrderView{Order: order, StatusTimeline: models.Timeline(order.StatusHistory)}
}

func ViewsOf(orders []*models.Order) []OrderView {
	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, ViewOf(order))
	}
	return views
}

// GetOrder returns an order to its owner or an admin.
func (s *OrderService) GetOrder(ctx context.Context, claims *auth.Claims, orderID string) (*models.Order, error) {
	if claims == nil || claims.UserID() == "" {
		return nil, errNotAuthorized
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !claims.IsAdmin() && !order.OwnedBy(claims.UserID()) {
		return nil, forbiddenError("Not authorized to view this order")
	}
	return order, nil
}

func (s *OrderService) ListMyOrders(ctx context.Context, claims *auth.Claims, input ListInput) ([]*models.Order, error) {
	if claims == nil || claims.UserID() == "" {
		return nil, errNotAuthorized
	}
	params := listParams(input)
	params.UserID = claims.UserID()

	orders, err := s.orders.ListOrders(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) ListOrders(ctx context.Context, claims *auth.Claims, input ListInput) ([]*models.Order, error) {
	if claims == nil {
		return nil, errNotAuthorized
	}
	if !claims.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}
	if input.Status != "" && !input.Status.Valid() {
		return nil, validationError("Invalid status %q", input.Status)
	}

	orders, err := s.orders.ListOrders(ctx, listParams(input))
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func listParams(input ListInput) store.ListOrdersParams {
	params := store.ListOrdersParams{Status: input.Status, Limit: input.Limit}.Normalize()
	if input.Page > 1 {
		params.Offset = (input.Page - 1) * params.Limit
	}
	return params
}

func (s *OrderService) CreateProduct(ctx context.Context, claims *auth.Claims, input ProductInput) (*models.Product, error) {
	if claims == nil {
		return nil, errNotAuthorized
	}
	if !claims.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationError("Product name is required")
	}
	if input.Price.IsNegative() {
		return nil, validationError("Product price must not be negative")
	}
	if input.CountInStock < 0 {
		return nil, validationError("countInStock must not be negative")
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now()
	product := &models.Product{
		ID:           id,
		Name:         name,
		Price:        input.Price.Round(2),
		Image:        strings.TrimSpace(input.Image),
		CountInStock: input.CountInStock,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.products.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.loggerFromContext(ctx).Info("product created", "product_id", product.ID, "count_in_stock", product.CountInStock)
	return product, nil
}

func (s *OrderService) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	product, err := s.products.GetProduct(ctx, strings.TrimSpace(productID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}
