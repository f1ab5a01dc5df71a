package stripe

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	stripeapi "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

func ReadWebhookEvent(r *http.Request, secret string) (*stripeapi.Event, error) {
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		return nil, fmt.Errorf("missing stripe signature header")
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	event, err := webhook.ConstructEvent(payload, signature, secret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature validation failed: %w", err)
	}

	return &event, nil
}

// PaymentIntentFromEvent decodes the payment intent carried by a payment_intent.* event.
func PaymentIntentFromEvent(event *stripeapi.Event) (*stripeapi.PaymentIntent, error) {
	if event == nil || event.Data == nil {
		return nil, fmt.Errorf("missing stripe event data")
	}
	var intent stripeapi.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("failed to decode payment intent: %w", err)
	}
	if intent.ID == "" {
		return nil, fmt.Errorf("payment intent id is missing")
	}
	return &intent, nil
}
