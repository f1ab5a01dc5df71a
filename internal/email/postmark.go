package email

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const postmarkBaseURL = "https://api.postmarkapp.com"

type PostmarkProvider struct {
	client *resty.Client
	from   string
}

type postmarkResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

type postmarkEmail struct {
	From       string `json:"From"`
	To         string `json:"To"`
	Subject    string `json:"Subject"`
	TextBody   string `json:"TextBody,omitempty"`
	HtmlBody   string `json:"HtmlBody,omitempty"`
	TrackOpens bool   `json:"TrackOpens"`
	Tag        string `json:"Tag,omitempty"`
}

func NewPostmarkProvider(cfg Config) *PostmarkProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = postmarkBaseURL
	}
	client := resty.New()
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	}
	client.
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("X-Postmark-Server-Token", cfg.APIKey)

	return &PostmarkProvider{client: client, from: cfg.From}
}

func (p *PostmarkProvider) SendEmail(ctx context.Context, email *Email) error {
	if email == nil {
		return fmt.Errorf("email is required")
	}

	var result postmarkResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(postmarkEmail{
			From:       p.from,
			To:         email.To,
			Subject:    email.Subject,
			TextBody:   email.Text,
			HtmlBody:   email.HTML,
			TrackOpens: true,
			Tag:        "order",
		}).
		SetResult(&result).
		SetError(&result).
		Post("/email")
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.IsError() || result.ErrorCode != 0 {
		if result.ErrorCode != 0 {
			return fmt.Errorf("postmark error (%d): %s", result.ErrorCode, result.Message)
		}
		return fmt.Errorf("postmark API returned status %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}
