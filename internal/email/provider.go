// Package email sends transactional order notifications.
package email

import (
	"context"
	"fmt"
	"net/http"
)

type Provider interface {
	SendEmail(ctx context.Context, email *Email) error
}

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Config struct {
	Provider   string
	APIKey     string
	From       string
	Domain     string // For Mailgun
	BaseURL    string
	HTTPClient *http.Client
}

// NewProvider returns nil, nil when email delivery is disabled.
func NewProvider(config Config) (Provider, error) {
	switch config.Provider {
	case "", "none":
		return nil, nil
	case "postmark":
		return NewPostmarkProvider(config), nil
	case "mailgun":
		return NewMailgunProvider(config), nil
	case "resend":
		return NewResendProvider(config.APIKey, config.From), nil
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be one of 'none', 'postmark', 'mailgun' or 'resend'")
	}
}
