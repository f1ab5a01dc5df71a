package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/store"
)

func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	if product == nil {
		return fmt.Errorf("product is required")
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt

	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, name, price, image, count_in_stock, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)`,
		product.ID, product.Name, product.Price.String(), product.Image, product.CountInStock,
		product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var (
		product models.Product
		price   string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, price::text, image, count_in_stock, created_at, updated_at
		FROM products WHERE id = $1`, id,
	).Scan(&product.ID, &product.Name, &price, &product.Image, &product.CountInStock, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	product.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
	}
	return &product, nil
}

func (s *Store) DecrementStock(ctx context.Context, productID string, qty int) (models.StockAdjustment, error) {
	return decrementStock(ctx, s.pool, productID, qty)
}

// decrementStock clamps at zero in a single statement; the CTE exposes the
// pre-update count so the applied quantity can be reported.
func decrementStock(ctx context.Context, q querier, productID string, qty int) (models.StockAdjustment, error) {
	if qty < 0 {
		qty = 0
	}

	var previous, remaining int
	err := q.QueryRow(ctx, `
		WITH prev AS (
			SELECT id, count_in_stock FROM products WHERE id = $1 FOR UPDATE
		)
		UPDATE products p
		SET count_in_stock = GREATEST(p.count_in_stock - $2, 0), updated_at = NOW()
		FROM prev
		WHERE p.id = prev.id
		RETURNING prev.count_in_stock, p.count_in_stock`,
		productID, qty,
	).Scan(&previous, &remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.StockAdjustment{}, store.ErrNotFound
		}
		return models.StockAdjustment{}, fmt.Errorf("failed to decrement stock: %w", err)
	}

	return models.StockAdjustment{
		ProductID: productID,
		Requested: qty,
		Applied:   previous - remaining,
		Remaining: remaining,
	}, nil
}
