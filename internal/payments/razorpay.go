package payments

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

type RazorpayGateway struct {
	client *resty.Client
	keyID  string
}

type RazorpayConfig struct {
	KeyID      string
	KeySecret  string
	BaseURL    string
	HTTPClient *http.Client
}

type razorpayOrder struct {
	ID       string            `json:"id"`
	Entity   string            `json:"entity"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Status   string            `json:"status"`
	Notes    map[string]string `json:"notes"`
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func NewRazorpayGateway(cfg RazorpayConfig) *RazorpayGateway {
	client := resty.New()
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	}
	client.
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetHeader("Content-Type", "application/json")

	return &RazorpayGateway{client: client, keyID: cfg.KeyID}
}

func (g *RazorpayGateway) Name() string {
	return "razorpay"
}

func (g *RazorpayGateway) PublicKey() string {
	return g.keyID
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error) {
	var (
		created razorpayOrder
		failure razorpayError
	)

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"amount":   req.AmountMinor,
			"currency": req.Currency,
			"receipt":  req.Receipt,
			"notes":    req.Notes,
		}).
		SetResult(&created).
		SetError(&failure).
		Post("/orders")
	if err != nil {
		return nil, &Error{Gateway: g.Name(), Message: "payment gateway is unreachable", Err: err}
	}
	if resp.IsError() {
		message := failure.Error.Description
		if message == "" {
			message = fmt.Sprintf("unexpected response: %s", resp.Status())
		}
		return nil, &Error{Gateway: g.Name(), StatusCode: resp.StatusCode(), Message: message}
	}
	if created.ID == "" {
		return nil, &Error{Gateway: g.Name(), StatusCode: resp.StatusCode(), Message: "gateway returned no order id"}
	}

	return &GatewayOrder{
		ID:       created.ID,
		Amount:   created.Amount,
		Currency: created.Currency,
		Status:   created.Status,
	}, nil
}
