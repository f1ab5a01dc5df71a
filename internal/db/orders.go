package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/store"
)

const orderColumns = `id, order_number, user_id, customer, items, shipping_address, payment_method,
	payment_result, items_price::text, tax_price::text, shipping_price::text, total_price::text,
	is_paid, paid_at, is_delivered, delivered_at, status, status_history, created_at, updated_at`

const paymentIDConstraint = "orders_payment_id_key"

// isDuplicatePayment reports whether err is a unique violation on the payment id index.
func isDuplicatePayment(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == paymentIDConstraint
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}

	rec, err := newOrderRecord(order)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO orders (
			id, order_number, user_id, customer, items, shipping_address, payment_method,
			payment_result, items_price, tax_price, shipping_price, total_price,
			is_paid, paid_at, is_delivered, delivered_at, status, status_history, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9::numeric, $10::numeric, $11::numeric, $12::numeric,
			$13, $14, $15, $16, $17, $18, $19, $20
		)`,
		order.ID, order.OrderNumber, order.UserID, rec.customer, rec.items, rec.shippingAddress, string(order.PaymentMethod),
		rec.paymentResult, order.ItemsPrice.String(), order.TaxPrice.String(), order.ShippingPrice.String(), order.TotalPrice.String(),
		order.IsPaid, toTimestamptz(order.PaidAt), order.IsDelivered, toTimestamptz(order.DeliveredAt),
		string(order.Status), rec.statusHistory, order.CreatedAt, order.UpdatedAt,
	)
	if isDuplicatePayment(err) {
		return store.ErrDuplicatePayment
	}
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return getOrder(ctx, s.pool, id)
}

func getOrder(ctx context.Context, q querier, id uuid.UUID) (*models.Order, error) {
	row := q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *Store) ListOrders(ctx context.Context, params store.ListOrdersParams) ([]*models.Order, error) {
	params = params.Normalize()

	var (
		conditions []string
		args       []any
	)
	if params.UserID != "" {
		args = append(args, params.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if params.Status != "" {
		args = append(args, string(params.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	args = append(args, params.Limit, params.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0, params.Limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *Store) MarkPaid(ctx context.Context, id uuid.UUID, payment models.PaymentResult, paidAt time.Time) (*models.Order, error) {
	paymentJSON, err := json.Marshal(payment)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE orders
		SET is_paid = TRUE, paid_at = $2, payment_result = $3, updated_at = $2
		WHERE id = $1 AND is_paid = FALSE
		RETURNING `+orderColumns,
		id, paidAt, paymentJSON,
	)
	order, err := scanOrder(row)
	if err == nil {
		return order, nil
	}
	if isDuplicatePayment(err) {
		return nil, store.ErrDuplicatePayment
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	if _, err := s.GetOrder(ctx, id); err != nil {
		return nil, err
	}
	return nil, store.ErrAlreadyPaid
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, update store.StatusUpdate) (*models.Order, error) {
	entries := []models.StatusEntry{}
	if update.Entry != nil {
		entries = append(entries, *update.Entry)
	}
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}

	query, args := statusUpdateQuery(id, update, entriesJSON)
	order, err := scanOrder(s.pool.QueryRow(ctx, query, args...))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	current, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == update.From {
		return nil, fmt.Errorf("%w: order flags changed", store.ErrInvalidStatusTransition)
	}
	return nil, fmt.Errorf("%w: expected %s, found %s", store.ErrInvalidStatusTransition, update.From, current.Status)
}

// statusUpdateQuery sets only the flags named in update.Flags and guards
// each one with the value the caller read.
func statusUpdateQuery(id uuid.UUID, update store.StatusUpdate, entriesJSON []byte) (string, []any) {
	args := []any{id, string(update.To), entriesJSON, update.At, string(update.From)}
	set := []string{"status = $2", "status_history = status_history || $3::jsonb", "updated_at = $4"}
	where := []string{"id = $1", "status = $5"}

	flag := func(column, atColumn string, change *store.FlagChange) {
		if change == nil {
			return
		}
		args = append(args, change.To, toTimestamptz(change.At), change.From)
		n := len(args)
		set = append(set, fmt.Sprintf("%s = $%d", column, n-2), fmt.Sprintf("%s = $%d", atColumn, n-1))
		where = append(where, fmt.Sprintf("%s = $%d", column, n))
	}
	if update.Flags != nil {
		flag("is_paid", "paid_at", update.Flags.Paid)
		flag("is_delivered", "delivered_at", update.Flags.Delivered)
	}

	query := `
		UPDATE orders
		SET ` + strings.Join(set, ", ") + `
		WHERE ` + strings.Join(where, " AND ") + `
		RETURNING ` + orderColumns
	return query, args
}

func (s *Store) ClaimItemStock(ctx context.Context, orderID uuid.UUID, index int) error {
	return claimItemStock(ctx, s.pool, orderID, index)
}

func claimItemStock(ctx context.Context, q querier, orderID uuid.UUID, index int) error {
	if index < 0 {
		return fmt.Errorf("order item index %d out of range", index)
	}

	cmdTag, err := q.Exec(ctx, `
		UPDATE orders
		SET items = jsonb_set(items, ARRAY[$2::int::text, 'stockApplied'], 'true'::jsonb)
		WHERE id = $1
			AND jsonb_array_length(items) > $2::int
			AND COALESCE((items -> $2::int ->> 'stockApplied')::boolean, FALSE) = FALSE`,
		orderID, index,
	)
	if err != nil {
		return fmt.Errorf("failed to claim item stock: %w", err)
	}
	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	order, err := getOrder(ctx, q, orderID)
	if err != nil {
		return err
	}
	if index >= len(order.Items) {
		return fmt.Errorf("order item index %d out of range", index)
	}
	return store.ErrStockAlreadyApplied
}

func (s *Store) ReleaseItemStock(ctx context.Context, orderID uuid.UUID, index int) error {
	if index < 0 {
		return fmt.Errorf("order item index %d out of range", index)
	}
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET items = jsonb_set(items, ARRAY[$2::int::text, 'stockApplied'], 'false'::jsonb)
		WHERE id = $1 AND jsonb_array_length(items) > $2::int`,
		orderID, index,
	)
	if err != nil {
		return fmt.Errorf("failed to release item stock: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		if _, err := getOrder(ctx, s.pool, orderID); err != nil {
			return err
		}
		return fmt.Errorf("order item index %d out of range", index)
	}
	return nil
}

// ApplyItemStock claims the item marker and decrements the product in one
// transaction. A missing product still commits the claim and returns
// store.ErrNotFound.
func (s *Store) ApplyItemStock(ctx context.Context, orderID uuid.UUID, index int, productID string, qty int) (models.StockAdjustment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.StockAdjustment{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := claimItemStock(ctx, tx, orderID, index); err != nil {
		return models.StockAdjustment{}, err
	}

	adjustment, decErr := decrementStock(ctx, tx, productID, qty)
	if decErr != nil && !errors.Is(decErr, store.ErrNotFound) {
		return models.StockAdjustment{}, decErr
	}

	if err := tx.Commit(ctx); err != nil {
		return models.StockAdjustment{}, fmt.Errorf("failed to commit stock adjustment: %w", err)
	}
	return adjustment, decErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		rec           orderRecord
		order         models.Order
		paymentMethod string
		status        string
		paidAt        pgtype.Timestamptz
		deliveredAt   pgtype.Timestamptz
		prices        [4]string
	)
	if err := row.Scan(
		&order.ID, &order.OrderNumber, &order.UserID, &rec.customer, &rec.items, &rec.shippingAddress, &paymentMethod,
		&rec.paymentResult, &prices[0], &prices[1], &prices[2], &prices[3],
		&order.IsPaid, &paidAt, &order.IsDelivered, &deliveredAt, &status, &rec.statusHistory,
		&order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return nil, err
	}

	order.PaymentMethod = models.PaymentMethod(paymentMethod)
	order.Status = models.OrderStatus(status)
	order.PaidAt = fromTimestamptz(paidAt)
	order.DeliveredAt = fromTimestamptz(deliveredAt)

	amounts := []*decimal.Decimal{&order.ItemsPrice, &order.TaxPrice, &order.ShippingPrice, &order.TotalPrice}
	for i, raw := range prices {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", raw, err)
		}
		*amounts[i] = value
	}

	if err := rec.decodeInto(&order); err != nil {
		return nil, err
	}
	return &order, nil
}

// orderRecord holds the JSONB columns of an order row.
type orderRecord struct {
	customer        []byte
	items           []byte
	shippingAddress []byte
	paymentResult   []byte
	statusHistory   []byte
}

func newOrderRecord(order *models.Order) (orderRecord, error) {
	var (
		rec orderRecord
		err error
	)
	if rec.customer, err = json.Marshal(order.Customer); err != nil {
		return rec, err
	}
	items := order.Items
	if items == nil {
		items = []models.OrderItem{}
	}
	if rec.items, err = json.Marshal(items); err != nil {
		return rec, err
	}
	if rec.shippingAddress, err = json.Marshal(order.ShippingAddress); err != nil {
		return rec, err
	}
	if order.PaymentResult != nil {
		if rec.paymentResult, err = json.Marshal(order.PaymentResult); err != nil {
			return rec, err
		}
	}
	history := order.StatusHistory
	if history == nil {
		history = []models.StatusEntry{}
	}
	if rec.statusHistory, err = json.Marshal(history); err != nil {
		return rec, err
	}
	return rec, nil
}

func (r orderRecord) decodeInto(order *models.Order) error {
	if len(r.customer) > 0 {
		if err := json.Unmarshal(r.customer, &order.Customer); err != nil {
			return fmt.Errorf("failed to decode customer: %w", err)
		}
	}
	if err := json.Unmarshal(r.items, &order.Items); err != nil {
		return fmt.Errorf("failed to decode order items: %w", err)
	}
	if err := json.Unmarshal(r.shippingAddress, &order.ShippingAddress); err != nil {
		return fmt.Errorf("failed to decode shipping address: %w", err)
	}
	if len(r.paymentResult) > 0 && string(r.paymentResult) != "null" {
		var result models.PaymentResult
		if err := json.Unmarshal(r.paymentResult, &result); err != nil {
			return fmt.Errorf("failed to decode payment result: %w", err)
		}
		order.PaymentResult = &result
	}
	if len(r.statusHistory) > 0 {
		if err := json.Unmarshal(r.statusHistory, &order.StatusHistory); err != nil {
			return fmt.Errorf("failed to decode status history: %w", err)
		}
	}
	return nil
}

func toTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func fromTimestamptz(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}
