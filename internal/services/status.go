package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/storefrontapp/storefront/internal/auth"
	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/observability"
	"github.com/storefrontapp/storefront/internal/store"
)

// UpdateStatus moves an order through the status state machine. Admins may
// also set or clear the paid and delivered flags. Owners may only cancel a
// pending order.
func (s *OrderService) UpdateStatus(ctx context.Context, claims *auth.Claims, orderID string, input StatusInput) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.update_status",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("UpdateStatus"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	recordFailure := observability.FailureCounter(meter, "order.status.rejected")

	if claims == nil || claims.UserID() == "" {
		return nil, errNotAuthorized
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	admin := claims.IsAdmin()
	if !admin {
		if !order.OwnedBy(claims.UserID()) {
			recordFailure("not_owner")
			return nil, forbiddenError("Not authorized to update this order")
		}
		if input.hasFlags() || input.Status != models.StatusCancelled || order.Status != models.StatusPending {
			recordFailure("owner_not_allowed")
			return nil, forbiddenError("You can only cancel a pending order")
		}
	}

	changing := input.Status != "" && input.Status != order.Status
	if !changing {
		switch {
		case input.Status == "" && !input.hasFlags():
			return nil, validationError("Status is required")
		case input.Status != "" && !input.hasFlags():
			recordFailure("same_status")
			return nil, validationError("Order is already %s", order.Status)
		}
	}
	if changing {
		if !input.Status.Valid() {
			recordFailure("invalid_status")
			return nil, validationError("Invalid status %q", input.Status)
		}
		if !models.CanTransition(order.Status, input.Status, admin) {
			recordFailure("invalid_transition")
			return nil, validationError("Cannot change status from %s to %s", order.Status, input.Status)
		}
	}

	now := s.now()
	update := store.StatusUpdate{
		From: order.Status,
		To:   order.Status,
		At:   now,
	}
	if changing {
		update.To = input.Status
		note := strings.TrimSpace(input.Note)
		if note == "" {
			note = fmt.Sprintf("Status changed to %s", input.Status)
		}
		update.Entry = &models.StatusEntry{
			Status:    input.Status,
			Timestamp: now,
			Note:      note,
			ChangedBy: claims.UserID(),
		}
	}
	flags, err := resolveFlags(order, input, update.To, now)
	if err != nil {
		recordFailure("unpay_recorded_payment")
		return nil, err
	}
	update.Flags = flags

	updated, err := s.orders.UpdateStatus(ctx, order.ID, update)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidStatusTransition):
			recordFailure("concurrent_change")
			return nil, validationError("Order status changed, retry")
		case errors.Is(err, store.ErrNotFound):
			return nil, errOrderNotFound
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if changing {
		meter.Count("order.status.updated", 1, sentry.WithAttributes(
			attribute.String("from", string(order.Status)),
			attribute.String("to", string(updated.Status)),
		))
		logger.Info("order status updated", "order_id", updated.ID, "from", order.Status, "to", updated.Status, "changed_by", claims.UserID())
		switch updated.Status {
		case models.StatusShipped, models.StatusDelivered, models.StatusCancelled:
			s.notifyStatusChanged(ctx, updated, *update.Entry)
		}
	}

	span.Status = sentry.SpanStatusOK
	return updated, nil
}

// resolveFlags returns the flag changes the request actually makes, or nil.
// Moving to Delivered sets the delivered flag. An order whose payment was
// confirmed by a gateway cannot be marked unpaid.
func resolveFlags(order *models.Order, input StatusInput, to models.OrderStatus, now time.Time) (*store.Flags, error) {
	var flags store.Flags

	if input.IsPaid != nil {
		switch {
		case *input.IsPaid && (!order.IsPaid || order.PaidAt == nil):
			at := now
			flags.Paid = &store.FlagChange{From: order.IsPaid, To: true, At: &at}
		case !*input.IsPaid && order.IsPaid:
			if order.PaymentResult != nil {
				return nil, validationError("Cannot mark an order with a recorded payment as unpaid")
			}
			flags.Paid = &store.FlagChange{From: true, To: false}
		}
	}

	deliver := input.IsDelivered
	if deliver == nil && to == models.StatusDelivered && to != order.Status {
		yes := true
		deliver = &yes
	}
	if deliver != nil {
		switch {
		case *deliver && (!order.IsDelivered || order.DeliveredAt == nil):
			at := now
			flags.Delivered = &store.FlagChange{From: order.IsDelivered, To: true, At: &at}
		case !*deliver && order.IsDelivered:
			flags.Delivered = &store.FlagChange{From: true, To: false}
		}
	}

	if flags.Empty() {
		return nil, nil
	}
	return &flags, nil
}
