package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storefrontapp/storefront/internal/models"
)

// MemoryStore keeps orders and products in process memory. It is used for
// local development and tests.
type MemoryStore struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*models.Order
	products map[string]*models.Product
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[uuid.UUID]*models.Order),
		products: make(map[string]*models.Product),
	}
}

func (m *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) error {
	_ = ctx
	if order == nil {
		return fmt.Errorf("order is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if _, exists := m.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	if order.PaymentResult != nil && m.paymentRecorded(order.PaymentResult.ID, order.ID) {
		return ErrDuplicatePayment
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(order), nil
}

func (m *MemoryStore) ListOrders(ctx context.Context, params ListOrdersParams) ([]*models.Order, error) {
	_ = ctx
	params = params.Normalize()

	m.mu.Lock()
	matched := make([]*models.Order, 0, len(m.orders))
	for _, order := range m.orders {
		if params.UserID != "" && order.UserID != params.UserID {
			continue
		}
		if params.Status != "" && order.Status != params.Status {
			continue
		}
		matched = append(matched, cloneOrder(order))
	}
	m.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if params.Offset >= len(matched) {
		return []*models.Order{}, nil
	}
	end := params.Offset + params.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[params.Offset:end], nil
}

func (m *MemoryStore) MarkPaid(ctx context.Context, id uuid.UUID, payment models.PaymentResult, paidAt time.Time) (*models.Order, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if order.IsPaid {
		return nil, ErrAlreadyPaid
	}
	if m.paymentRecorded(payment.ID, id) {
		return nil, ErrDuplicatePayment
	}

	paid := paidAt
	order.IsPaid = true
	order.PaidAt = &paid
	order.PaymentResult = &payment
	order.UpdatedAt = paidAt
	return cloneOrder(order), nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id uuid.UUID, update StatusUpdate) (*models.Order, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if order.Status != update.From {
		return nil, fmt.Errorf("%w: expected %s, found %s", ErrInvalidStatusTransition, update.From, order.Status)
	}
	if !update.Flags.Matches(order) {
		return nil, fmt.Errorf("%w: order flags changed", ErrInvalidStatusTransition)
	}

	update.Apply(order)
	return cloneOrder(order), nil
}

func (m *MemoryStore) ClaimItemStock(ctx context.Context, orderID uuid.UUID, index int) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if index < 0 || index >= len(order.Items) {
		return fmt.Errorf("order item index %d out of range", index)
	}
	if order.Items[index].StockApplied {
		return ErrStockAlreadyApplied
	}
	order.Items[index].StockApplied = true
	return nil
}

func (m *MemoryStore) ReleaseItemStock(ctx context.Context, orderID uuid.UUID, index int) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if index < 0 || index >= len(order.Items) {
		return fmt.Errorf("order item index %d out of range", index)
	}
	order.Items[index].StockApplied = false
	return nil
}

// paymentRecorded reports whether an order other than self holds paymentID.
// Callers hold m.mu.
func (m *MemoryStore) paymentRecorded(paymentID string, self uuid.UUID) bool {
	if paymentID == "" {
		return false
	}
	for id, order := range m.orders {
		if id != self && order.PaymentResult != nil && order.PaymentResult.ID == paymentID {
			return true
		}
	}
	return false
}

func (m *MemoryStore) CreateProduct(ctx context.Context, product *models.Product) error {
	_ = ctx
	if product == nil {
		return fmt.Errorf("product is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if _, exists := m.products[product.ID]; exists {
		return fmt.Errorf("product %s already exists", product.ID)
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = product.CreatedAt
	stored := *product
	m.products[product.ID] = &stored
	return nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	product, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	found := *product
	return &found, nil
}

func (m *MemoryStore) DecrementStock(ctx context.Context, productID string, qty int) (models.StockAdjustment, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	product, ok := m.products[productID]
	if !ok {
		return models.StockAdjustment{}, ErrNotFound
	}

	remaining, applied := models.ClampedDecrement(product.CountInStock, qty)
	product.CountInStock = remaining
	product.UpdatedAt = time.Now().UTC()

	return models.StockAdjustment{
		ProductID: productID,
		Requested: qty,
		Applied:   applied,
		Remaining: remaining,
	}, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	_ = ctx
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func cloneOrder(order *models.Order) *models.Order {
	cloned := *order
	cloned.Items = append([]models.OrderItem(nil), order.Items...)
	cloned.StatusHistory = append([]models.StatusEntry(nil), order.StatusHistory...)
	if order.PaymentResult != nil {
		result := *order.PaymentResult
		cloned.PaymentResult = &result
	}
	if order.PaidAt != nil {
		paidAt := *order.PaidAt
		cloned.PaidAt = &paidAt
	}
	if order.DeliveredAt != nil {
		deliveredAt := *order.DeliveredAt
		cloned.DeliveredAt = &deliveredAt
	}
	return &cloned
}
