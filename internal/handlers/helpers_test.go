package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/storefrontapp/storefront/internal/auth"
	"github.com/storefrontapp/storefront/internal/cache"
	"github.com/storefrontapp/storefront/internal/config"
	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/ratelimit"
	"github.com/storefrontapp/storefront/internal/services"
	"github.com/storefrontapp/storefront/internal/signature"
	"github.com/storefrontapp/storefront/internal/store"
)

const (
	testJWTSecret     = "test-jwt-secret-with-32-characters!"
	testGatewaySecret = "rzp_test_secret"
	testWebhookSecret = "whsec_test_secret"
)

type testEnv struct {
	handlers *Handlers
	store    *store.MemoryStore
	router   *mux.Router
}

type envOption func(*Dependencies)

func withLimiter(limit int) envOption {
	return func(d *Dependencies) {
		memory, err := ratelimit.NewMemoryStore()
		if err != nil {
			panic(err)
		}
		d.Limiter = ratelimit.NewLimiter(memory, limit, time.Minute)
	}
}

func withMedia(uploader MediaUploader) envOption {
	return func(d *Dependencies) {
		d.Media = uploader
	}
}

// withFailingStock rebuilds the order service over a product store whose
// stock decrement for productID fails the given number of times.
func withFailingStock(productID string, failures int) envOption {
	return func(d *Dependencies) {
		memory := d.Store.(*store.MemoryStore)
		signer, err := signature.NewSigner(testGatewaySecret)
		if err != nil {
			panic(err)
		}
		products := &failingStockStore{MemoryStore: memory, productID: productID, failures: failures}
		d.Orders = services.NewOrderService(memory, products, nil, signer, nil, services.OrderOptions{Currency: "INR"}, d.Logger)
		d.StripeRouter = NewStripeEventRouter(d.Orders, d.Logger)
	}
}

var errStockBackend = errors.New("stock backend unavailable")

type failingStockStore struct {
	*store.MemoryStore
	mu        sync.Mutex
	productID string
	failures  int
}

func (s *failingStockStore) DecrementStock(ctx context.Context, productID string, qty int) (models.StockAdjustment, error) {
	s.mu.Lock()
	fail := productID == s.productID && s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return models.StockAdjustment{}, errStockBackend
	}
	return s.MemoryStore.DecrementStock(ctx, productID, qty)
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	memory := store.NewMemoryStore()
	signer, err := signature.NewSigner(testGatewaySecret)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	orders := services.NewOrderService(memory, memory, nil, signer, nil, services.OrderOptions{Currency: "INR"}, logger)

	verifier, err := auth.NewVerifier(testJWTSecret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	cacheProvider, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider: %v", err)
	}

	deps := Dependencies{
		Config:        &config.Config{Environment: "test", Stripe: config.StripeConfig{WebhookSecret: testWebhookSecret}},
		Store:         memory,
		Orders:        orders,
		Verifier:      verifier,
		CacheProvider: cacheProvider,
		StripeRouter:  NewStripeEventRouter(orders, logger),
		Logger:        logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	h, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testEnv{handlers: h, store: memory, router: testRouter(h)}
}

// testRouter wires the handlers the way the server does, minus Sentry.
func testRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.MetricsContext)
	r.Use(h.RateLimit)
	r.NotFoundHandler = http.HandlerFunc(h.NotFound)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/products/{id}", h.GetProduct).Methods(http.MethodGet)
	r.HandleFunc("/webhooks/stripe", h.StripeWebhook).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.RequireUser)
	api.HandleFunc("/orders", h.CreateOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/paid", h.CreatePaidOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/mine", h.ListMyOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", h.GetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/verify-payment", h.VerifyPayment).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/status", h.UpdateStatus).Methods(http.MethodPut)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(h.RequireAdmin)
	admin.HandleFunc("/orders", h.ListOrders).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}/stock", h.ApplyStock).Methods(http.MethodPost)
	admin.HandleFunc("/products", h.CreateProduct).Methods(http.MethodPost)
	admin.HandleFunc("/uploads", h.UploadMedia).Methods(http.MethodPost)
	return r
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.7:5000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) addProduct(t *testing.T, id string, price int64, stock int) {
	t.Helper()
	if err := e.store.CreateProduct(context.Background(), &models.Product{
		ID: id, Name: "Product " + id, Price: decimal.NewFromInt(price), CountInStock: stock,
	}); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	claims := auth.Claims{Name: "Asha Rao", Email: "asha@example.com", Role: role}
	claims.Subject = userID
	signed, err := auth.NewToken(testJWTSecret, claims)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	return signed
}

func orderBody(method models.PaymentMethod) map[string]any {
	return map[string]any{
		"orderItems": []map[string]any{
			{"product": map[string]any{"_id": "P1"}, "name": "Mug", "qty": 2, "price": "100"},
		},
		"shippingAddress": map[string]any{
			"fullName": "Asha Rao", "addressLine1": "12 MG Road", "city": "Bengaluru",
			"postalCode": "560001", "country": "IN",
		},
		"paymentMethod": method,
		"itemsPrice":    "200",
		"taxPrice":      "10",
		"shippingPrice": "20",
		"totalPrice":    "230",
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

type orderResponse struct {
	ID             string                `json:"id"`
	OrderNumber    string                `json:"orderNumber"`
	Status         models.OrderStatus    `json:"status"`
	IsPaid         bool                  `json:"isPaid"`
	StatusTimeline []models.TimelineStep `json:"statusTimeline"`
}

type messageResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}
