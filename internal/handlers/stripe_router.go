package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/storefrontapp/storefront/internal/logging"
	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/observability"
	"github.com/storefrontapp/storefront/internal/services"
	stripeclient "github.com/storefrontapp/storefront/internal/stripe"
)

// PaymentConfirmer marks orders paid from gateway notices.
type PaymentConfirmer interface {
	ConfirmGatewayPayment(ctx context.Context, confirmation services.PaymentConfirmation) (*models.Order, error)
}

type StripeEventRouter struct {
	payments PaymentConfirmer
	logger   *slog.Logger
}

func NewStripeEventRouter(payments PaymentConfirmer, logger *slog.Logger) *StripeEventRouter {
	return &StripeEventRouter{
		payments: payments,
		logger:   logger,
	}
}

// Handle dispatches a verified event. Events that can never succeed (unknown
// order, amount mismatch, already paid) are acknowledged so Stripe stops
// redelivering them; other failures are returned.
func (r *StripeEventRouter) Handle(ctx context.Context, event *stripeapi.Event) error {
	span := sentry.StartSpan(
		ctx,
		"handler.stripe_router.handle",
		sentry.WithOpName("handler.stripe_router"),
		sentry.WithDescription("StripeEventRouter.Handle"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("webhook.provider", "stripe"))
	meter.Count("webhook.router.received", 1)
	recordFailed := observability.FailureCounter(meter, "webhook.router.failed")

	if event == nil || event.Data == nil {
		recordFailed("missing_event_data")
		return fmt.Errorf("missing stripe event data")
	}
	meter.SetAttributes(attribute.String("webhook.event_type", string(event.Type)))
	logger := logging.FromContext(ctx, r.logger).With("event_id", event.ID, "event_type", event.Type)

	switch event.Type {
	case "payment_intent.succeeded":
		intent, err := stripeclient.PaymentIntentFromEvent(event)
		if err != nil {
			recordFailed("invalid_payment_intent")
			return err
		}
		_, err = r.payments.ConfirmGatewayPayment(ctx, services.PaymentConfirmation{
			OrderID:        intent.Metadata["order_id"],
			PaymentID:      intent.ID,
			GatewayOrderID: intent.ID,
			AmountMinor:    intent.Amount,
			Currency:       string(intent.Currency),
			Status:         string(intent.Status),
			EmailAddress:   intent.ReceiptEmail,
		})
		switch {
		case err == nil:
			meter.Count("webhook.router.processed", 1)
		case errors.Is(err, services.ErrAlreadyPaid):
			logger.Info("payment intent for an order that is already paid", "payment_intent", intent.ID)
			meter.Count("webhook.router.duplicate", 1)
		case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrValidation):
			logger.Warn("payment intent rejected", "payment_intent", intent.ID, "error", err)
			recordFailed("rejected")
		default:
			recordFailed("confirm_failed")
			return err
		}
	case "payment_intent.payment_failed":
		logger.Info("payment intent failed")
		meter.Count("webhook.router.processed", 1)
	default:
		logger.Info("unhandled Stripe event type")
		meter.Count("webhook.router.unhandled", 1)
	}

	span.Status = sentry.SpanStatusOK
	return nil
}
