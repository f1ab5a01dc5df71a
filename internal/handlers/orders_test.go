package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/signature"
)

func TestCreateAndGetOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	owner := token(t, "user-1", "")

	rec := env.do(t, http.MethodPost, "/api/orders", owner, orderBody(models.PaymentRazorPay))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[orderResponse](t, rec)
	if created.Status != models.StatusPending || created.IsPaid || len(created.OrderNumber) != 17 {
		t.Fatalf("unexpected order: %+v", created)
	}
	if len(created.StatusTimeline) != 4 || !created.StatusTimeline[0].Completed {
		t.Fatalf("unexpected timeline: %+v", created.StatusTimeline)
	}

	tests := []struct {
		name       string
		token      string
		path       string
		wantStatus int
	}{
		{name: "owner", token: owner, path: "/api/orders/" + created.ID, wantStatus: http.StatusOK},
		{name: "admin", token: token(t, "admin-1", "admin"), path: "/api/orders/" + created.ID, wantStatus: http.StatusOK},
		{name: "stranger", token: token(t, "user-2", ""), path: "/api/orders/" + created.ID, wantStatus: http.StatusForbidden},
		{name: "anonymous", token: "", path: "/api/orders/" + created.ID, wantStatus: http.StatusUnauthorized},
		{name: "malformed id", token: owner, path: "/api/orders/not-a-uuid", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := env.do(t, http.MethodGet, tt.path, tt.token, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateOrderValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	body := orderBody(models.PaymentRazorPay)
	body["orderItems"] = []any{}

	rec := env.do(t, http.MethodPost, "/api/orders", token(t, "user-1", ""), body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeBody[messageResponse](t, rec).Message; msg != "No order items" {
		t.Fatalf("unexpected message: %q", msg)
	}

	rec = env.do(t, http.MethodPost, "/api/orders", token(t, "user-1", ""), "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestCreateOrderIdempotencyKey(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	owner := token(t, "user-1", "")

	first := env.do(t, http.MethodPost, "/api/orders", owner, orderBody(models.PaymentCashOnDelivery), "Idempotency-Key", "checkout-42")
	second := env.do(t, http.MethodPost, "/api/orders", owner, orderBody(models.PaymentCashOnDelivery), "Idempotency-Key", "checkout-42")
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected 201 twice, got %d and %d", first.Code, second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("expected replayed response")
	}
	if a, b := decodeBody[orderResponse](t, first).ID, decodeBody[orderResponse](t, second).ID; a != b {
		t.Fatalf("expected the same order, got %s and %s", a, b)
	}

	other := env.do(t, http.MethodPost, "/api/orders", token(t, "user-2", ""), orderBody(models.PaymentCashOnDelivery), "Idempotency-Key", "checkout-42")
	if other.Header().Get("Idempotent-Replayed") != "" {
		t.Fatal("idempotency keys must be scoped per user")
	}

	mine := env.do(t, http.MethodGet, "/api/orders/mine", owner, nil)
	if got := len(decodeBody[struct {
		Orders []orderResponse `json:"orders"`
	}](t, mine).Orders); got != 1 {
		t.Fatalf("expected 1 order for user-1, got %d", got)
	}
}

func TestCreatePaidOrderStockFailureIsReplayed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, withFailingStock("P1", 1))
	env.addProduct(t, "P1", 100, 10)
	owner := token(t, "user-1", "")

	signer, err := signature.NewSigner(testGatewaySecret)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	body := map[string]any{
		"orderData": orderBody(models.PaymentRazorPay),
		"paymentData": map[string]string{
			"gatewayOrderId": "order_7", "paymentId": "pay_7", "signature": signer.Sign("order_7", "pay_7"),
		},
	}

	type paidResponse struct {
		Message      string        `json:"message"`
		OrderID      string        `json:"orderId"`
		Order        orderResponse `json:"order"`
		StockPending []int         `json:"stockPendingItems"`
	}

	first := env.do(t, http.MethodPost, "/api/orders/paid", owner, body, "Idempotency-Key", "paid-7")
	if first.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", first.Code, first.Body.String())
	}
	partial := decodeBody[paidResponse](t, first)
	if partial.OrderID == "" || partial.OrderID != partial.Order.ID || !partial.Order.IsPaid {
		t.Fatalf("expected the paid order in the failure body, got %+v", partial)
	}
	if len(partial.StockPending) != 1 || partial.StockPending[0] != 0 {
		t.Fatalf("expected item 0 pending, got %v", partial.StockPending)
	}

	replayed := env.do(t, http.MethodPost, "/api/orders/paid", owner, body, "Idempotency-Key", "paid-7")
	if replayed.Code != http.StatusInternalServerError || replayed.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replayed 500, got %d: %s", replayed.Code, replayed.Body.String())
	}
	if got := decodeBody[paidResponse](t, replayed).OrderID; got != partial.OrderID {
		t.Fatalf("replay returned order %s, want %s", got, partial.OrderID)
	}

	fresh := env.do(t, http.MethodPost, "/api/orders/paid", owner, body, "Idempotency-Key", "paid-8")
	if fresh.Code != http.StatusBadRequest {
		t.Fatalf("expected a reused payment to be rejected, got %d: %s", fresh.Code, fresh.Body.String())
	}

	resumed := env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/orders/%s/stock", partial.OrderID), token(t, "admin-1", "admin"), nil)
	if resumed.Code != http.StatusOK {
		t.Fatalf("expected stock resume to succeed, got %d: %s", resumed.Code, resumed.Body.String())
	}
	product, err := env.store.GetProduct(context.Background(), "P1")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if product.CountInStock != 8 {
		t.Fatalf("expected stock 8 after resume, got %d", product.CountInStock)
	}
}

func TestVerifyPaymentOverHTTP(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	owner := token(t, "user-1", "")
	created := decodeBody[orderResponse](t, env.do(t, http.MethodPost, "/api/orders", owner, orderBody(models.PaymentRazorPay)))

	signer, err := signature.NewSigner(testGatewaySecret)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	path := fmt.Sprintf("/api/orders/%s/verify-payment", created.ID)

	bad := env.do(t, http.MethodPost, path, owner, map[string]string{
		"gatewayOrderId": "order_1", "paymentId": "pay_1", "signature": "deadbeef",
	})
	if bad.Code != http.StatusBadRequest || decodeBody[messageResponse](t, bad).Message != "Invalid signature" {
		t.Fatalf("expected invalid signature, got %d: %s", bad.Code, bad.Body.String())
	}

	good := env.do(t, http.MethodPost, path, owner, map[string]string{
		"gatewayOrderId": "order_1", "paymentId": "pay_1", "signature": signer.Sign("order_1", "pay_1"),
	})
	if good.Code != http.StatusOK || !decodeBody[orderResponse](t, good).IsPaid {
		t.Fatalf("expected paid order, got %d: %s", good.Code, good.Body.String())
	}

	again := env.do(t, http.MethodPost, path, owner, map[string]string{
		"gatewayOrderId": "order_1", "paymentId": "pay_1", "signature": signer.Sign("order_1", "pay_1"),
	})
	if again.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for already paid order, got %d", again.Code)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/admin/orders", token(t, "user-1", ""), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if msg := decodeBody[messageResponse](t, rec).Message; msg != "Not authorized as an admin" {
		t.Fatalf("unexpected message: %q", msg)
	}

	rec = env.do(t, http.MethodGet, "/api/admin/orders?status=Bogus", token(t, "admin-1", "admin"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status filter, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/admin/orders", "", nil)
	if rec.Code != http.StatusUnauthorized || decodeBody[messageResponse](t, rec).Message != "Not authorized, no token" {
		t.Fatalf("expected 401 without token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateStatusOverHTTP(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	owner := token(t, "user-1", "")
	admin := token(t, "admin-1", "admin")
	created := decodeBody[orderResponse](t, env.do(t, http.MethodPost, "/api/orders", owner, orderBody(models.PaymentCashOnDelivery)))
	path := "/api/orders/" + created.ID + "/status"

	rec := env.do(t, http.MethodPut, path, owner, map[string]string{"status": "Shipped"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("owner should not ship, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, path, admin, map[string]string{"status": "Processing", "note": "packing"})
	if rec.Code != http.StatusOK || decodeBody[orderResponse](t, rec).Status != models.StatusProcessing {
		t.Fatalf("expected Processing, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPut, path, admin, map[string]string{"status": "Pending"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for backwards transition, got %d", rec.Code)
	}
}

func TestProducts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	admin := token(t, "admin-1", "admin")

	rec := env.do(t, http.MethodPost, "/api/admin/products", admin, map[string]any{
		"id": "P9", "name": "Teapot", "price": "450.00", "countInStock": 4,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/products/P9", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	product := decodeBody[models.Product](t, rec)
	if product.Name != "Teapot" || product.CountInStock != 4 {
		t.Fatalf("unexpected product: %+v", product)
	}

	rec = env.do(t, http.MethodGet, "/api/products/missing", "", nil)
	if rec.Code != http.StatusNotFound || decodeBody[messageResponse](t, rec).Message != "Product not found" {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}
