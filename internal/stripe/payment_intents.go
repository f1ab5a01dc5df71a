// Package stripe wraps the Stripe PaymentIntents API and webhook validation.
package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
)

// Client creates PaymentIntents for storefront orders.
type Client struct {
	client *stripe.Client
}

func NewClient(secretKey string) *Client {
	return &Client{
		client: stripe.NewClient(secretKey),
	}
}

// PaymentIntentParams holds parameters for creating a payment intent
type PaymentIntentParams struct {
	OrderID       string
	OrderNumber   string
	UserID        string
	AmountMinor   int64
	Currency      string
	CustomerEmail string
	Description   string
}

// CreatePaymentIntent creates a payment intent for an order
func (c *Client) CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if params.AmountMinor <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	intentParams := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(params.AmountMinor),
		Currency: stripe.String(strings.ToLower(params.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String(params.Description),
		Metadata: map[string]string{
			"order_id":     params.OrderID,
			"order_number": params.OrderNumber,
			"user_id":      params.UserID,
		},
	}
	// Receipt email is optional. Only send if present to avoid Stripe validation errors.
	if params.CustomerEmail != "" {
		intentParams.ReceiptEmail = stripe.String(params.CustomerEmail)
	}

	intent, err := c.client.V1PaymentIntents.Create(ctx, intentParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return intent, nil
}
