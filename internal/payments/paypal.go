package payments

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

type PayPalGateway struct {
	client       *resty.Client
	clientID     string
	clientSecret string
	now          func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	HTTPClient   *http.Client
}

type paypalToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type paypalLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type paypalOrder struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Links  []paypalLink `json:"links"`
}

type paypalError struct {
	Name             string `json:"name"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
}

func (e paypalError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorDescription
}

func NewPayPalGateway(cfg PayPalConfig) *PayPalGateway {
	client := resty.New()
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	}
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))

	return &PayPalGateway{
		client:       client,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		now:          time.Now,
	}
}

func (g *PayPalGateway) Name() string {
	return "paypal"
}

func (g *PayPalGateway) PublicKey() string {
	return g.clientID
}

func (g *PayPalGateway) CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error) {
	token, err := g.token(ctx)
	if err != nil {
		return nil, err
	}

	var (
		created paypalOrder
		failure paypalError
	)
	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("PayPal-Request-Id", req.Receipt).
		SetBody(map[string]any{
			"intent": "CAPTURE",
			"purchase_units": []map[string]any{
				{
					"reference_id": req.OrderID,
					"custom_id":    req.Receipt,
					"amount": map[string]string{
						"currency_code": strings.ToUpper(req.Currency),
						"value":         req.Amount.StringFixed(2),
					},
				},
			},
		}).
		SetResult(&created).
		SetError(&failure).
		Post("/v2/checkout/orders")
	if err != nil {
		return nil, &Error{Gateway: g.Name(), Message: "payment gateway is unreachable", Err: err}
	}
	if resp.IsError() {
		message := failure.text()
		if message == "" {
			message = fmt.Sprintf("unexpected response: %s", resp.Status())
		}
		return nil, &Error{Gateway: g.Name(), StatusCode: resp.StatusCode(), Message: message}
	}

	return &GatewayOrder{
		ID:         created.ID,
		Amount:     req.AmountMinor,
		Currency:   strings.ToUpper(req.Currency),
		Status:     created.Status,
		ApproveURL: approveURL(created.Links),
	}, nil
}

// token returns a cached OAuth access token, refreshing it a minute before expiry.
func (g *PayPalGateway) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && g.now().Before(g.expiresAt) {
		return g.accessToken, nil
	}

	var (
		issued  paypalToken
		failure paypalError
	)
	resp, err := g.client.R().
		SetContext(ctx).
		SetBasicAuth(g.clientID, g.clientSecret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		SetResult(&issued).
		SetError(&failure).
		Post("/v1/oauth2/token")
	if err != nil {
		return "", &Error{Gateway: g.Name(), Message: "payment gateway is unreachable", Err: err}
	}
	if resp.IsError() || issued.AccessToken == "" {
		message := failure.text()
		if message == "" {
			message = "failed to obtain access token"
		}
		return "", &Error{Gateway: g.Name(), StatusCode: resp.StatusCode(), Message: message}
	}

	g.accessToken = issued.AccessToken
	g.expiresAt = g.now().Add(time.Duration(issued.ExpiresIn)*time.Second - time.Minute)
	return g.accessToken, nil
}

func approveURL(links []paypalLink) string {
	for _, link := range links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return link.Href
		}
	}
	return ""
}
