// Package payments creates remote payment orders with the supported gateways.
package payments

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/storefrontapp/storefront/internal/models"
)

var (
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
	ErrOfflineMethod        = errors.New("payment method does not use an online gateway")
)

// Gateway creates a remote order the client-side checkout widget completes.
type Gateway interface {
	Name() string
	PublicKey() string
	CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error)
}

type OrderRequest struct {
	OrderID       string
	OrderNumber   string
	UserID        string
	Amount        decimal.Decimal
	AmountMinor   int64
	Currency      string
	Receipt       string
	CustomerEmail string
	Notes         map[string]string
}

type GatewayOrder struct {
	ID           string
	Amount       int64
	Currency     string
	Status       string
	ClientSecret string
	ApproveURL   string
}

// Error is a failed gateway call. Message is safe to show to the caller.
type Error struct {
	Gateway    string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s gateway error (status %d): %s", e.Gateway, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s gateway error: %s", e.Gateway, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// MinorUnits converts an amount to the gateway's minor currency unit, rounding half up.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Registry maps payment methods to configured gateways.
type Registry struct {
	gateways map[models.PaymentMethod]Gateway
}

func NewRegistry() *Registry {
	return &Registry{gateways: make(map[models.PaymentMethod]Gateway)}
}

// Register adds gateway for method. A nil gateway is ignored.
func (r *Registry) Register(method models.PaymentMethod, gateway Gateway) *Registry {
	if gateway != nil {
		r.gateways[method] = gateway
	}
	return r
}

func (r *Registry) For(method models.PaymentMethod) (Gateway, error) {
	if !method.Online() {
		return nil, ErrOfflineMethod
	}
	if r == nil {
		return nil, ErrGatewayNotConfigured
	}
	gateway, ok := r.gateways[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGatewayNotConfigured, method)
	}
	return gateway, nil
}

// Methods lists the configured payment methods in a stable order.
func (r *Registry) Methods() []string {
	if r == nil {
		return nil
	}
	methods := make([]string, 0, len(r.gateways))
	for method := range r.gateways {
		methods = append(methods, string(method))
	}
	sort.Strings(methods)
	return methods
}
