// Package store defines the persistence contract for orders and products.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/storefrontapp/storefront/internal/models"
)

var (
	ErrNotFound                = errors.New("record not found")
	ErrAlreadyPaid             = errors.New("order already paid")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrStockAlreadyApplied     = errors.New("order item stock already applied")
	ErrDuplicatePayment        = errors.New("payment already recorded on another order")
)

type OrderStore interface {
	// CreateOrder fails with ErrDuplicatePayment when the order carries a
	// payment id another order already recorded.
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, params ListOrdersParams) ([]*models.Order, error)
	// MarkPaid succeeds only while the order is unpaid; otherwise ErrAlreadyPaid.
	// A payment id recorded on another order yields ErrDuplicatePayment.
	MarkPaid(ctx context.Context, id uuid.UUID, payment models.PaymentResult, paidAt time.Time) (*models.Order, error)
	// UpdateStatus succeeds only while the order is still in update.From and
	// every flag in update.Flags still holds its From value; otherwise
	// ErrInvalidStatusTransition.
	UpdateStatus(ctx context.Context, id uuid.UUID, update StatusUpdate) (*models.Order, error)
	// ClaimItemStock flips the item's stock marker; ErrStockAlreadyApplied if it was set.
	ClaimItemStock(ctx context.Context, orderID uuid.UUID, index int) error
	// ReleaseItemStock clears a claimed marker after the decrement failed.
	ReleaseItemStock(ctx context.Context, orderID uuid.UUID, index int) error
}

type ProductStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	// DecrementStock atomically sets countInStock = max(0, countInStock - qty).
	DecrementStock(ctx context.Context, productID string, qty int) (models.StockAdjustment, error)
}

// ItemStockApplier is implemented by stores that can claim an item's stock
// marker and decrement the product in one transaction.
type ItemStockApplier interface {
	ApplyItemStock(ctx context.Context, orderID uuid.UUID, index int, productID string, qty int) (models.StockAdjustment, error)
}

type Store interface {
	OrderStore
	ProductStore
	Ping(ctx context.Context) error
	Close() error
}

type ListOrdersParams struct {
	UserID string
	Status models.OrderStatus
	Limit  int
	Offset int
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Normalize clamps paging values into the supported range.
func (p ListOrdersParams) Normalize() ListOrdersParams {
	if p.Limit <= 0 {
		p.Limit = DefaultListLimit
	}
	if p.Limit > MaxListLimit {
		p.Limit = MaxListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type StatusUpdate struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Entry *models.StatusEntry
	Flags *Flags
	At    time.Time
}

// Flags carries the admin flag changes of an update. A nil field leaves
// that flag untouched.
type Flags struct {
	Paid      *FlagChange
	Delivered *FlagChange
}

// FlagChange moves a flag From -> To. The store applies it only while the
// flag still equals From, so a concurrent MarkPaid is never reverted.
// At is written with the flag: the new timestamp, or nil when clearing.
type FlagChange struct {
	From bool
	To   bool
	At   *time.Time
}

// Empty reports whether the update changes no flag.
func (f *Flags) Empty() bool {
	return f == nil || (f.Paid == nil && f.Delivered == nil)
}

// Matches reports whether order still holds the From value of every change.
func (f *Flags) Matches(order *models.Order) bool {
	if f == nil {
		return true
	}
	if f.Paid != nil && order.IsPaid != f.Paid.From {
		return false
	}
	if f.Delivered != nil && order.IsDelivered != f.Delivered.From {
		return false
	}
	return true
}

// Apply mutates order in memory the same way the stores persist update.
func (u StatusUpdate) Apply(order *models.Order) {
	order.Status = u.To
	if u.Entry != nil {
		order.StatusHistory = append(order.StatusHistory, *u.Entry)
	}
	if !u.Flags.Empty() {
		if c := u.Flags.Paid; c != nil {
			order.IsPaid, order.PaidAt = c.To, c.At
		}
		if c := u.Flags.Delivered; c != nil {
			order.IsDelivered, order.DeliveredAt = c.To, c.At
		}
	}
	order.UpdatedAt = u.At
}
