package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefrontapp/storefront/internal/auth"
	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/payments"
	"github.com/storefrontapp/storefront/internal/signature"
	"github.com/storefrontapp/storefront/internal/store"
)

const testSecret = "rzp_test_secret"

var testNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type recordingNotifier struct {
	mu       sync.Mutex
	paid     []string
	statuses []models.OrderStatus
}

func (n *recordingNotifier) PaymentConfirmed(_ context.Context, order *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paid = append(n.paid, order.OrderNumber)
	return nil
}

func (n *recordingNotifier) StatusChanged(_ context.Context, _ *models.Order, entry models.StatusEntry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, entry.Status)
	return nil
}

type testEnv struct {
	svc      *OrderService
	store    *store.MemoryStore
	signer   *signature.Signer
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T, opts OrderOptions, gateways *payments.Registry) *testEnv {
	t.Helper()

	signer, err := signature.NewSigner(testSecret)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	memory := store.NewMemoryStore()
	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewOrderService(memory, memory, gateways, signer, notifier, opts, logger)
	svc.now = func() time.Time { return testNow }

	return &testEnv{svc: svc, store: memory, signer: signer, notifier: notifier}
}

func (e *testEnv) addProduct(t *testing.T, id string, price int64, stock int) {
	t.Helper()
	err := e.store.CreateProduct(context.Background(), &models.Product{
		ID:           id,
		Name:         "Product " + id,
		Price:        decimal.NewFromInt(price),
		CountInStock: stock,
	})
	if err != nil {
		t.Fatalf("failed to create product: %v", err)
	}
}

func (e *testEnv) stock(t *testing.T, id string) int {
	t.Helper()
	product, err := e.store.GetProduct(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to get product: %v", err)
	}
	return product.CountInStock
}

func userClaims(id string) *auth.Claims {
	claims := &auth.Claims{Name: "Asha Rao", Email: "asha@example.com", Phone: "+919800000000"}
	claims.Subject = id
	return claims
}

func adminClaims() *auth.Claims {
	claims := &auth.Claims{Name: "Admin", Email: "admin@example.com", Role: auth.RoleAdmin}
	claims.Subject = "admin-1"
	return claims
}

func testAddress() *models.ShippingAddress {
	return &models.ShippingAddress{
		FullName:     "Asha Rao",
		AddressLine1: "12 MG Road",
		City:         "Bengaluru",
		State:        "KA",
		PostalCode:   "560001",
		Country:      "IN",
	}
}

// scenarioInput is a single line of P1 x2 at 100 with 10 tax and 20 shipping.
func scenarioInput(method models.PaymentMethod) OrderInput {
	return OrderInput{
		Items: []ItemInput{
			{Product: "P1", Name: "Mug", Quantity: 2, Price: decimal.NewFromInt(100)},
		},
		ShippingAddress: testAddress(),
		PaymentMethod:   method,
		ItemsPrice:      decimal.NewFromInt(200),
		TaxPrice:        decimal.NewFromInt(10),
		ShippingPrice:   decimal.NewFromInt(20),
		TotalPrice:      decimal.NewFromInt(230),
	}
}

func singleItemInput(productID string, qty int, price int64) OrderInput {
	total := decimal.NewFromInt(price * int64(qty))
	return OrderInput{
		Items:           []ItemInput{{Product: ProductRef(productID), Name: "Item", Quantity: qty, Price: decimal.NewFromInt(price)}},
		ShippingAddress: testAddress(),
		PaymentMethod:   models.PaymentRazorPay,
		ItemsPrice:      total,
		TotalPrice:      total,
	}
}

// useStores points the service at wrapped stores around the memory store.
func (e *testEnv) useStores(orders store.OrderStore, products store.ProductStore) {
	e.svc.orders = orders
	e.svc.products = products
}

// paymentRaceStore commits a payment on the order right before a status
// update lands, the way a concurrent VerifyPayment or webhook would.
type paymentRaceStore struct {
	*store.MemoryStore
	payment models.PaymentResult
}

func (s *paymentRaceStore) UpdateStatus(ctx context.Context, id uuid.UUID, update store.StatusUpdate) (*models.Order, error) {
	if _, err := s.MemoryStore.MarkPaid(ctx, id, s.payment, testNow); err != nil {
		return nil, err
	}
	return s.MemoryStore.UpdateStatus(ctx, id, update)
}

var errConnectionReset = errors.New("connection reset")

// flakyStockStore fails DecrementStock for one product a set number of times.
type flakyStockStore struct {
	*store.MemoryStore
	mu          sync.Mutex
	failProduct string
	failures    int
}

func (s *flakyStockStore) DecrementStock(ctx context.Context, productID string, qty int) (models.StockAdjustment, error) {
	s.mu.Lock()
	fail := productID == s.failProduct && s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return models.StockAdjustment{}, errConnectionReset
	}
	return s.MemoryStore.DecrementStock(ctx, productID, qty)
}
