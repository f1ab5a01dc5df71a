package email

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRendererRendersEveryKind(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}

	info := &OrderInfo{
		StoreName:     "Storefront",
		OrderNumber:   "ORD-260301-000001",
		ReceiptNumber: "RCP2603011200123",
		CustomerName:  "Asha <script>",
		CustomerEmail: "asha@example.com",
		Items:         []OrderItem{{Name: "Mug", Quantity: 2, TotalPrice: "200.00"}},
		Total:         "200.00",
	}

	for _, kind := range []Kind{KindPaymentConfirmed, KindShipped, KindDelivered, KindCancelled} {
		kind := kind
		t.Run(string(kind), func(t *testing.T) {
			t.Parallel()

			msg, err := renderer.Render(kind, info)
			if err != nil {
				t.Fatalf("failed to render: %v", err)
			}
			if msg.To != "asha@example.com" || !strings.Contains(msg.Subject, "ORD-260301-000001") {
				t.Fatalf("unexpected email header: %+v", msg)
			}
			if strings.Contains(msg.HTML, "<script>") {
				t.Fatal("expected HTML output to be escaped")
			}
		})
	}

	if _, err := renderer.Render(Kind("unknown"), info); err == nil {
		t.Fatal("expected unknown template error")
	}
}

func TestNewProviderDisabled(t *testing.T) {
	t.Parallel()

	provider, err := NewProvider(Config{Provider: "none"})
	if err != nil || provider != nil {
		t.Fatalf("expected nil provider, got %v, %v", provider, err)
	}
	if _, err := NewProvider(Config{Provider: "sendgrid"}); err == nil {
		t.Fatal("expected unsupported provider error")
	}
}

func TestPostmarkSendEmail(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/email" || r.Header.Get("X-Postmark-Server-Token") != "pm-token" {
			t.Errorf("unexpected request %s token=%q", r.URL.Path, r.Header.Get("X-Postmark-Server-Token"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ErrorCode":0,"Message":"OK","MessageID":"abc"}`))
	}))
	defer server.Close()

	provider := NewPostmarkProvider(Config{APIKey: "pm-token", From: "shop@example.com", BaseURL: server.URL, HTTPClient: server.Client()})
	if err := provider.SendEmail(context.Background(), &Email{To: "a@example.com", Subject: "hi", Text: "hello"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPostmarkSendEmailError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"ErrorCode":300,"Message":"Invalid email request"}`))
	}))
	defer server.Close()

	provider := NewPostmarkProvider(Config{APIKey: "pm-token", BaseURL: server.URL, HTTPClient: server.Client()})
	err := provider.SendEmail(context.Background(), &Email{To: "a@example.com", Text: "hello"})
	if err == nil || !strings.Contains(err.Error(), "Invalid email request") {
		t.Fatalf("expected postmark error, got %v", err)
	}
}

func TestMailgunSendEmail(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mg.example.com/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "api" || pass != "mg-key" {
			t.Errorf("unexpected basic auth")
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("to") != "a@example.com" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"<1@mg>","message":"Queued. Thank you."}`))
	}))
	defer server.Close()

	provider := NewMailgunProvider(Config{APIKey: "mg-key", Domain: "mg.example.com", From: "shop@example.com", BaseURL: server.URL, HTTPClient: server.Client()})
	if err := provider.SendEmail(context.Background(), &Email{To: "a@example.com", Subject: "hi", HTML: "<p>hello</p>"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
