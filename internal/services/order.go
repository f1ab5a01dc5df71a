package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefrontapp/storefront/internal/auth"
	"github.com/storefrontapp/storefront/internal/logging"
	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/observability"
	"github.com/storefrontapp/storefront/internal/payments"
	"github.com/storefrontapp/storefront/internal/signature"
	"github.com/storefrontapp/storefront/internal/store"
)

const (
	notePlaced     = "Order placed"
	notePlacedPaid = "Order placed with confirmed payment"
)

type placementMode int

const (
	modePending placementMode = iota
	modeImmediatePaid
)

func (m placementMode) String() string {
	if m == modeImmediatePaid {
		return "immediate_paid"
	}
	return "pending"
}

type OrderOptions struct {
	Currency               string
	GatewayTimeout         time.Duration
	ThemeColor             string
	StoreName              string
	DecrementStockOnVerify bool
	StrictPricing          bool
}

type OrderService struct {
	orders   store.OrderStore
	products store.ProductStore
	gateways *payments.Registry
	signer   *signature.Signer
	notifier OrderNotifier
	opts     OrderOptions
	now      func() time.Time
	logger   *slog.Logger
}

func NewOrderService(orders store.OrderStore, products store.ProductStore, gateways *payments.Registry, signer *signature.Signer, notifier OrderNotifier, opts OrderOptions, logger *slog.Logger) *OrderService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if gateways == nil {
		gateways = payments.NewRegistry()
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 30 * time.Second
	}

	return &OrderService{
		orders:   orders,
		products: products,
		gateways: gateways,
		signer:   signer,
		notifier: notifier,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

func (s *OrderService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// PaymentIntent is what the client needs to open the gateway checkout.
type PaymentIntent struct {
	OrderID        uuid.UUID       `json:"orderId"`
	OrderNumber    string          `json:"orderNumber"`
	Gateway        string          `json:"gateway"`
	GatewayOrderID string          `json:"gatewayOrderId"`
	ClientSecret   string          `json:"clientSecret,omitempty"`
	ApproveURL     string          `json:"approveUrl,omitempty"`
	Amount         int64           `json:"amount"`
	Currency       string          `json:"currency"`
	PublicKey      string          `json:"publicKey"`
	Prefill        models.Customer `json:"prefill"`
	Theme          PaymentTheme    `json:"theme"`
}

type PaymentTheme struct {
	Color string `json:"color"`
	Name  string `json:"name"`
}

type PaidOrderResult struct {
	Order         *models.Order            `json:"order"`
	ReceiptNumber string                   `json:"receiptNumber"`
	Stock         []models.StockAdjustment `json:"stock"`
}

type StockResult struct {
	Order *models.Order            `json:"order"`
	Stock []models.StockAdjustment `json:"stock"`
}

// CreateOrder places an unpaid order awaiting online or cash payment.
func (s *OrderService) CreateOrder(ctx context.Context, claims *auth.Claims, input OrderInput) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.create",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("CreateOrder"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	order, err := s.placeOrder(ctx, claims, input, modePending, nil)
	if err != nil {
		return nil, err
	}

	span.Status = sentry.SpanStatusOK
	return order, nil
}

// CreatePaidOrder verifies a completed gateway payment and places the order
// as paid in one call, then applies the stock decrement for every item.
// When only the stock step fails the stored order is returned with the error.
func (s *OrderService) CreatePaidOrder(ctx context.Context, claims *auth.Claims, input PaidOrderInput) (*PaidOrderResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.create_paid",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("CreatePaidOrder"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	if input.OrderData == nil || input.PaymentData == nil {
		return nil, validationError("Order data and payment data are required")
	}
	if !input.PaymentData.complete() {
		return nil, validationError("Missing required payment information")
	}

	payment := *input.PaymentData
	order, err := s.placeOrder(ctx, claims, *input.OrderData, modeImmediatePaid, &payment)
	if err != nil {
		return nil, err
	}

	result := &PaidOrderResult{
		Order:         order,
		ReceiptNumber: order.PaymentResult.ReceiptNumber,
	}

	adjustments, err := s.applyStock(ctx, order)
	result.Stock = adjustments
	if err != nil {
		// The order is stored and paid; the caller needs its id to resume with ApplyStock.
		return result, fmt.Errorf("failed to apply stock for paid order %s: %w", order.ID, err)
	}

	s.notifyPaymentConfirmed(ctx, order)

	span.Status = sentry.SpanStatusOK
	return result, nil
}

// placeOrder is the single order creation path for both modes. In
// modeImmediatePaid the payment proof is verified before anything is stored.
func (s *OrderService) placeOrder(ctx context.Context, claims *auth.Claims, input OrderInput, mode placementMode, payment *PaymentInput) (*models.Order, error) {
	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("mode", mode.String()))
	recordFailure := observability.FailureCounter(meter, "order.create.failed")

	if claims == nil || claims.UserID() == "" {
		recordFailure("unauthorized")
		return nil, errNotAuthorized
	}

	order, err := s.buildOrder(ctx, claims, input)
	if err != nil {
		recordFailure("invalid_input")
		return nil, err
	}

	now := s.now()
	order.ID = uuid.New()
	order.OrderNumber = NewOrderNumber(now)
	order.Status = models.StatusPending
	order.CreatedAt = now
	order.UpdatedAt = now

	note := notePlaced
	if mode == modeImmediatePaid {
		if payment == nil {
			recordFailure("missing_payment")
			return nil, validationError("Missing required payment information")
		}
		receipt := NewReceiptNumber(now)
		if err := s.verifySignature(payment); err != nil {
			recordFailure("invalid_signature")
			logger.Warn("payment signature rejected for new order", "gateway_order_id", payment.GatewayOrderID, "payment_id", payment.PaymentID)
			return nil, err
		}
		paidAt := now
		order.IsPaid = true
		order.PaidAt = &paidAt
		order.PaymentResult = &models.PaymentResult{
			ID:             payment.PaymentID,
			Status:         "captured",
			GatewayOrderID: payment.GatewayOrderID,
			Signature:      payment.Signature,
			Amount:         order.TotalPrice,
			Currency:       s.opts.Currency,
			ReceiptNumber:  receipt,
			EmailAddress:   claims.Email,
			UpdateTime:     now,
		}
		note = notePlacedPaid
	}
	order.StatusHistory = []models.StatusEntry{{
		Status:    models.StatusPending,
		Timestamp: now,
		Note:      note,
		ChangedBy: claims.UserID(),
	}}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, store.ErrDuplicatePayment) {
			recordFailure("duplicate_payment")
			logger.Warn("payment already recorded on another order", "payment_id", order.PaymentResult.ID)
			return nil, errPaymentRecorded
		}
		recordFailure("store_failed")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	meter.Count("order.created", 1, sentry.WithAttributes(
		attribute.String("payment_method", string(order.PaymentMethod)),
	))
	logger.Info("order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"mode", mode.String(),
		"payment_method", order.PaymentMethod,
		"total", order.TotalPrice.StringFixed(2),
	)
	return order, nil
}

func (s *OrderService) buildOrder(ctx context.Context, claims *auth.Claims, input OrderInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, validationError("No order items")
	}
	if err := validateShippingAddress(input.ShippingAddress); err != nil {
		return nil, err
	}
	if input.PaymentMethod == "" {
		return nil, validationError("Payment method is required")
	}
	if !input.PaymentMethod.Valid() {
		return nil, validationError("Unsupported payment method %q", input.PaymentMethod)
	}

	money := map[string]decimal.Decimal{
		"itemsPrice":    input.ItemsPrice,
		"taxPrice":      input.TaxPrice,
		"shippingPrice": input.ShippingPrice,
		"totalPrice":    input.TotalPrice,
	}
	for _, field := range []string{"itemsPrice", "taxPrice", "shippingPrice", "totalPrice"} {
		if money[field].IsNegative() {
			return nil, validationError("%s must not be negative", field)
		}
	}

	items := make([]models.OrderItem, 0, len(input.Items))
	lineSum := decimal.Zero
	for i, in := range input.Items {
		productID := strings.TrimSpace(string(in.Product))
		if productID == "" {
			return nil, validationError("Item %d is missing a product reference", i+1)
		}
		if in.Quantity < 1 {
			return nil, validationError("Item %d quantity must be at least 1", i+1)
		}
		if in.Price.IsNegative() {
			return nil, validationError("Item %d price must not be negative", i+1)
		}

		item := models.OrderItem{
			ProductID: productID,
			Name:      strings.TrimSpace(in.Name),
			Quantity:  in.Quantity,
			Price:     in.Price.Round(2),
			Image:     strings.TrimSpace(in.Image),
		}
		if s.opts.StrictPricing {
			if err := s.checkCatalogPrice(ctx, &item); err != nil {
				return nil, err
			}
		}
		lineSum = lineSum.Add(item.LineTotal())
		items = append(items, item)
	}

	itemsPrice := input.ItemsPrice.Round(2)
	taxPrice := input.TaxPrice.Round(2)
	shippingPrice := input.ShippingPrice.Round(2)
	totalPrice := input.TotalPrice.Round(2)

	if !itemsPrice.Equal(lineSum.Round(2)) {
		return nil, validationError("itemsPrice %s does not match the order items total %s", itemsPrice.StringFixed(2), lineSum.StringFixed(2))
	}
	if !totalPrice.Equal(itemsPrice.Add(taxPrice).Add(shippingPrice)) {
		return nil, validationError("totalPrice %s does not equal itemsPrice + taxPrice + shippingPrice", totalPrice.StringFixed(2))
	}

	return &models.Order{
		UserID: claims.UserID(),
		Customer: models.Customer{
			Name:  claims.Name,
			Email: claims.Email,
			Phone: claims.Phone,
		},
		Items:           items,
		ShippingAddress: *input.ShippingAddress,
		PaymentMethod:   input.PaymentMethod,
		ItemsPrice:      itemsPrice,
		TaxPrice:        taxPrice,
		ShippingPrice:   shippingPrice,
		TotalPrice:      totalPrice,
	}, nil
}

func (s *OrderService) checkCatalogPrice(ctx context.Context, item *models.OrderItem) error {
	product, err := s.products.GetProduct(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return validationError("Product %s not found", item.ProductID)
		}
		return fmt.Errorf("failed to load product %s: %w", item.ProductID, err)
	}
	if !product.Price.Round(2).Equal(item.Price) {
		return validationError("Price for %s changed to %s", product.Name, product.Price.StringFixed(2))
	}
	if item.Name == "" {
		item.Name = product.Name
	}
	if item.Image == "" {
		item.Image = product.Image
	}
	return nil
}

func validateShippingAddress(address *models.ShippingAddress) error {
	if address == nil {
		return validationError("Shipping address is required")
	}
	required := []struct {
		name  string
		value string
	}{
		{"fullName", address.FullName},
		{"addressLine1", address.AddressLine1},
		{"city", address.City},
		{"postalCode", address.PostalCode},
		{"country", address.Country},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return validationError("Shipping address %s is required", field.name)
		}
	}
	return nil
}

// CreatePaymentIntent asks the order's gateway for a remote order the client
// completes in the checkout widget. The local order is not modified.
func (s *OrderService) CreatePaymentIntent(ctx context.Context, claims *auth.Claims, orderID string) (*PaymentIntent, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.create_payment_intent",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("CreatePaymentIntent"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	recordFailure := observability.FailureCounter(meter, "payment.intent.failed")

	order, err := s.ownedOrder(ctx, claims, orderID)
	if err != nil {
		recordFailure("lookup_rejected")
		return nil, err
	}
	if order.IsPaid {
		recordFailure("already_paid")
		return nil, errOrderPaid
	}

	gateway, err := s.gateways.For(order.PaymentMethod)
	if err != nil {
		if errors.Is(err, payments.ErrOfflineMethod) {
			recordFailure("offline_method")
			return nil, validationError("Payment method %s does not use an online gateway", order.PaymentMethod)
		}
		recordFailure("gateway_not_configured")
		logger.Error("payment gateway not configured", "payment_method", order.PaymentMethod, "error", err)
		return nil, UserError{Kind: ErrGateway, Message: "Payment gateway is not configured"}
	}

	amountMinor := payments.MinorUnits(order.TotalPrice)
	gatewayCtx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()

	started := time.Now()
	remote, err := gateway.CreateOrder(gatewayCtx, payments.OrderRequest{
		OrderID:       order.ID.String(),
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Amount:        order.TotalPrice,
		AmountMinor:   amountMinor,
		Currency:      s.opts.Currency,
		Receipt:       order.OrderNumber,
		CustomerEmail: order.Customer.Email,
		Notes: map[string]string{
			"order_id": order.ID.String(),
			"user_id":  order.UserID,
		},
	})
	meter.Distribution("payment.gateway.duration", float64(time.Since(started).Milliseconds()),
		sentry.WithUnit(sentry.UnitMillisecond),
		sentry.WithAttributes(attribute.String("gateway", gateway.Name())),
	)
	if err != nil {
		recordFailure("gateway_error")
		logger.Error("failed to create gateway order", "gateway", gateway.Name(), "order_id", order.ID, "error", err)
		return nil, gatewayUserError(err)
	}

	meter.Count("payment.intent.created", 1, sentry.WithAttributes(
		attribute.String("gateway", gateway.Name()),
	))
	span.Status = sentry.SpanStatusOK

	return &PaymentIntent{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Gateway:        gateway.Name(),
		GatewayOrderID: remote.ID,
		ClientSecret:   remote.ClientSecret,
		ApproveURL:     remote.ApproveURL,
		Amount:         amountMinor,
		Currency:       s.opts.Currency,
		PublicKey:      gateway.PublicKey(),
		Prefill:        order.Customer,
		Theme: PaymentTheme{
			Color: s.opts.ThemeColor,
			Name:  s.opts.StoreName,
		},
	}, nil
}

func gatewayUserError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return UserError{Kind: ErrGateway, Message: "Payment gateway timed out"}
	}
	var gatewayErr *payments.Error
	if errors.As(err, &gatewayErr) {
		if errors.Is(gatewayErr.Err, context.DeadlineExceeded) {
			return UserError{Kind: ErrGateway, Message: "Payment gateway timed out"}
		}
		return UserError{Kind: ErrGateway, Message: gatewayErr.Message}
	}
	return UserError{Kind: ErrGateway, Message: "Payment gateway request failed"}
}

// VerifyPayment checks the gateway signature for an existing order and marks it paid.
func (s *OrderService) VerifyPayment(ctx context.Context, claims *auth.Claims, orderID string, input PaymentInput) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.verify_payment",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("VerifyPayment"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	recordFailure := observability.FailureCounter(meter, "payment.verify.failed")

	if strings.TrimSpace(orderID) == "" || !input.complete() {
		recordFailure("missing_fields")
		return nil, validationError("Missing required payment information")
	}

	order, err := s.ownedOrder(ctx, claims, orderID)
	if err != nil {
		recordFailure("lookup_rejected")
		return nil, err
	}
	if order.IsPaid {
		recordFailure("already_paid")
		return nil, errOrderPaid
	}
	if err := s.verifySignature(&input); err != nil {
		recordFailure("invalid_signature")
		logger.Warn("payment signature rejected", "order_id", order.ID, "gateway_order_id", input.GatewayOrderID)
		return nil, err
	}

	now := s.now()
	paid, err := s.orders.MarkPaid(ctx, order.ID, models.PaymentResult{
		ID:             input.PaymentID,
		Status:         "captured",
		GatewayOrderID: input.GatewayOrderID,
		Signature:      input.Signature,
		Amount:         order.TotalPrice,
		Currency:       s.opts.Currency,
		EmailAddress:   claims.Email,
		UpdateTime:     now,
	}, now)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyPaid) {
			recordFailure("already_paid")
			return nil, errOrderPaid
		}
		if errors.Is(err, store.ErrDuplicatePayment) {
			recordFailure("duplicate_payment")
			return nil, errPaymentRecorded
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, errOrderNotFound
		}
		recordFailure("store_failed")
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	meter.Count("payment.verified", 1, sentry.WithAttributes(
		attribute.String("payment_method", string(paid.PaymentMethod)),
	))
	logger.Info("payment verified", "order_id", paid.ID, "payment_id", input.PaymentID)

	if s.opts.DecrementStockOnVerify {
		if _, err := s.applyStock(ctx, paid); err != nil {
			return nil, fmt.Errorf("failed to apply stock for order %s: %w", paid.ID, err)
		}
	}

	s.notifyPaymentConfirmed(ctx, paid)

	span.Status = sentry.SpanStatusOK
	return paid, nil
}

// PaymentConfirmation is a gateway-side notice that an order was paid.
type PaymentConfirmation struct {
	OrderID        string
	PaymentID      string
	GatewayOrderID string
	AmountMinor    int64
	Currency       string
	Status         string
	EmailAddress   string
}

// ConfirmGatewayPayment marks an order paid from a signed gateway webhook.
// An order that is already paid yields ErrAlreadyPaid and is left untouched.
func (s *OrderService) ConfirmGatewayPayment(ctx context.Context, confirmation PaymentConfirmation) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.confirm_gateway_payment",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("ConfirmGatewayPayment"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	id, err := uuid.Parse(strings.TrimSpace(confirmation.OrderID))
	if err != nil {
		return nil, errOrderNotFound
	}
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order.IsPaid {
		return nil, errOrderPaid
	}
	if expected := payments.MinorUnits(order.TotalPrice); confirmation.AmountMinor != expected {
		logger.Warn("gateway payment amount mismatch", "order_id", order.ID, "expected", expected, "received", confirmation.AmountMinor)
		meter.Count("payment.webhook.amount_mismatch", 1)
		return nil, validationError("Payment amount does not match order total")
	}

	now := s.now()
	paid, err := s.orders.MarkPaid(ctx, order.ID, models.PaymentResult{
		ID:             confirmation.PaymentID,
		Status:         confirmation.Status,
		GatewayOrderID: confirmation.GatewayOrderID,
		Amount:         order.TotalPrice,
		Currency:       strings.ToUpper(confirmation.Currency),
		EmailAddress:   confirmation.EmailAddress,
		UpdateTime:     now,
	}, now)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyPaid) {
			return nil, errOrderPaid
		}
		if errors.Is(err, store.ErrDuplicatePayment) {
			return nil, errPaymentRecorded
		}
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	meter.Count("payment.verified", 1, sentry.WithAttributes(
		attribute.String("payment_method", string(paid.PaymentMethod)),
		attribute.String("source", "webhook"),
	))
	logger.Info("payment confirmed by gateway", "order_id", paid.ID, "payment_id", confirmation.PaymentID)

	if s.opts.DecrementStockOnVerify {
		if _, err := s.applyStock(ctx, paid); err != nil {
			return nil, fmt.Errorf("failed to apply stock for order %s: %w", paid.ID, err)
		}
	}
	s.notifyPaymentConfirmed(ctx, paid)

	span.Status = sentry.SpanStatusOK
	return paid, nil
}

// ApplyStock resumes the stock step of a paid order. Items already applied are skipped.
func (s *OrderService) ApplyStock(ctx context.Context, claims *auth.Claims, orderID string) (*StockResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.apply_stock",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("ApplyStock"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	if claims == nil {
		return nil, errNotAuthorized
	}
	if !claims.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsPaid {
		return nil, validationError("Order is not paid")
	}

	adjustments, err := s.applyStock(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to apply stock for order %s: %w", order.ID, err)
	}

	span.Status = sentry.SpanStatusOK
	return &StockResult{Order: order, Stock: adjustments}, nil
}

// applyStock runs the per-item stock step: claim the item's marker, then
// decrement the product with clamping. A failed decrement releases the marker. Items whose marker is already set are
// skipped, so the step can be repeated after a partial failure.
func (s *OrderService) applyStock(ctx context.Context, order *models.Order) ([]models.StockAdjustment, error) {
	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	applier, transactional := s.orders.(store.ItemStockApplier)

	var adjustments []models.StockAdjustment
	for _, index := range order.PendingStockItems() {
		item := order.Items[index]

		var (
			adjustment models.StockAdjustment
			err        error
		)
		if transactional {
			adjustment, err = applier.ApplyItemStock(ctx, order.ID, index, item.ProductID, item.Quantity)
		} else {
			err = s.orders.ClaimItemStock(ctx, order.ID, index)
			if err == nil {
				adjustment, err = s.products.DecrementStock(ctx, item.ProductID, item.Quantity)
				if err != nil && !errors.Is(err, store.ErrNotFound) {
					// Nothing was decremented: hand the item back to ApplyStock.
					if relErr := s.orders.ReleaseItemStock(ctx, order.ID, index); relErr != nil {
						logger.Error("failed to release item stock marker", "order_id", order.ID, "index", index, "error", relErr)
					}
				}
			}
		}

		switch {
		case errors.Is(err, store.ErrStockAlreadyApplied):
			order.Items[index].StockApplied = true
			continue
		case errors.Is(err, store.ErrNotFound):
			// The marker is claimed; a product deleted from the catalog has nothing to decrement.
			logger.Warn("product missing during stock decrement", "order_id", order.ID, "product_id", item.ProductID)
			adjustment = models.StockAdjustment{ProductID: item.ProductID, Requested: item.Quantity}
		case err != nil:
			meter.Count("order.stock.failed", 1)
			return adjustments, fmt.Errorf("failed to apply stock for item %d (%s): %w", index, item.ProductID, err)
		}

		order.Items[index].StockApplied = true
		adjustments = append(adjustments, adjustment)
		if adjustment.Clamped() {
			meter.Count("order.stock.clamped", 1)
			logger.Warn("stock decrement clamped at zero",
				"order_id", order.ID,
				"product_id", adjustment.ProductID,
				"requested", adjustment.Requested,
				"applied", adjustment.Applied,
			)
		}
	}

	return adjustments, nil
}

func (s *OrderService) verifySignature(payment *PaymentInput) error {
	if s.signer == nil {
		return fmt.Errorf("payment signer is not configured")
	}
	if err := s.signer.Verify(payment.GatewayOrderID, payment.PaymentID, payment.Signature); err != nil {
		if errors.Is(err, signature.ErrMismatch) {
			return errInvalidSig
		}
		return fmt.Errorf("failed to verify signature: %w", err)
	}
	return nil
}

func (s *OrderService) loadOrder(ctx context.Context, orderID string) (*models.Order, error) {
	id, err := uuid.Parse(strings.TrimSpace(orderID))
	if err != nil {
		return nil, errOrderNotFound
	}
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// ownedOrder loads an order the requester placed. Admin rights do not grant
// access here: paying for an order is the owner's action.
func (s *OrderService) ownedOrder(ctx context.Context, claims *auth.Claims, orderID string) (*models.Order, error) {
	if claims == nil || claims.UserID() == "" {
		return nil, errNotAuthorized
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(claims.UserID()) {
		return nil, forbiddenError("Not authorized to access this order")
	}
	return order, nil
}
