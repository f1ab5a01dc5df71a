package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/storefrontapp/storefront/internal/cache"
	stripeclient "github.com/storefrontapp/storefront/internal/stripe"
)

// stripeWebhookIdempotencyTTL is how long webhook event IDs are kept for deduplication
const stripeWebhookIdempotencyTTL = 24 * time.Hour

func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if h.stripeRouter == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Stripe webhooks are not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	event, err := stripeclient.ReadWebhookEvent(r, h.config.Stripe.WebhookSecret)
	if err != nil {
		logger.Warn("failed to read Stripe webhook payload", "error", err)
		writeMessage(w, http.StatusBadRequest, "Invalid webhook")
		return
	}
	if event.ID == "" {
		writeMessage(w, http.StatusBadRequest, "Missing event ID")
		return
	}

	cacheKey := cache.WebhookKey("stripe", event.ID)
	if _, err := h.cacheProvider.Get(ctx, cacheKey); err == nil {
		logger.Info("webhook already processed", "event_id", event.ID)
		w.WriteHeader(http.StatusOK)
		return
	} else if !errors.Is(err, cache.ErrNotFound) {
		logger.Warn("webhook dedup lookup failed", "error", err)
	}

	if err := h.stripeRouter.Handle(ctx, event); err != nil {
		logger.Error("failed to process Stripe webhook", "error", err, "type", event.Type)
		writeMessage(w, http.StatusInternalServerError, "Processing failed")
		return
	}

	if err := h.cacheProvider.Set(ctx, cacheKey, "processed", stripeWebhookIdempotencyTTL); err != nil {
		logger.Error("failed to mark webhook as processed in cache", "error", err)
	}
	w.WriteHeader(http.StatusOK)
}
