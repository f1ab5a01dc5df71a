package payments

import (
	"context"
	"errors"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/storefrontapp/storefront/internal/stripe"
)

type paymentIntentCreator interface {
	CreatePaymentIntent(ctx context.Context, params stripe.PaymentIntentParams) (*stripeapi.PaymentIntent, error)
}

type StripeGateway struct {
	client         paymentIntentCreator
	publishableKey string
}

func NewStripeGateway(client paymentIntentCreator, publishableKey string) *StripeGateway {
	return &StripeGateway{client: client, publishableKey: publishableKey}
}

func (g *StripeGateway) Name() string {
	return "stripe"
}

func (g *StripeGateway) PublicKey() string {
	return g.publishableKey
}

func (g *StripeGateway) CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error) {
	intent, err := g.client.CreatePaymentIntent(ctx, stripe.PaymentIntentParams{
		OrderID:       req.OrderID,
		OrderNumber:   req.OrderNumber,
		UserID:        req.UserID,
		AmountMinor:   req.AmountMinor,
		Currency:      req.Currency,
		CustomerEmail: req.CustomerEmail,
		Description:   fmt.Sprintf("Order %s", req.OrderNumber),
	})
	if err != nil {
		gatewayErr := &Error{Gateway: g.Name(), Message: "failed to create payment intent", Err: err}
		var stripeErr *stripeapi.Error
		if errors.As(err, &stripeErr) {
			gatewayErr.StatusCode = stripeErr.HTTPStatusCode
			if stripeErr.Msg != "" {
				gatewayErr.Message = stripeErr.Msg
			}
		}
		return nil, gatewayErr
	}

	return &GatewayOrder{
		ID:           intent.ID,
		Amount:       intent.Amount,
		Currency:     string(intent.Currency),
		Status:       string(intent.Status),
		ClientSecret: intent.ClientSecret,
	}, nil
}
