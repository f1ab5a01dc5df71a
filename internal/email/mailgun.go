package email

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const mailgunBaseURL = "https://api.mailgun.net/v3"

type MailgunProvider struct {
	client *resty.Client
	from   string
	domain string
}

type mailgunResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

func NewMailgunProvider(cfg Config) *MailgunProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = mailgunBaseURL
	}
	client := resty.New()
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	}
	client.
		SetBaseURL(baseURL).
		SetBasicAuth("api", cfg.APIKey)

	return &MailgunProvider{client: client, from: cfg.From, domain: cfg.Domain}
}

func (m *MailgunProvider) SendEmail(ctx context.Context, email *Email) error {
	if email == nil {
		return fmt.Errorf("email is required")
	}

	form := map[string]string{
		"from":    m.from,
		"to":      email.To,
		"subject": email.Subject,
	}
	if email.Text != "" {
		form["text"] = email.Text
	}
	if email.HTML != "" {
		form["html"] = email.HTML
	}

	var result mailgunResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&result).
		SetError(&result).
		SetPathParam("domain", m.domain).
		Post("/{domain}/messages")
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.IsError() {
		if result.Message != "" {
			return fmt.Errorf("mailgun error: %s", result.Message)
		}
		return fmt.Errorf("mailgun API returned status %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}
