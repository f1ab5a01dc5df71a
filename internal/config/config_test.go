package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidateJWTSecretLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		jwtSecret string
		wantErr   bool
	}{
		{
			name:      "valid secret",
			jwtSecret: strings.Repeat("s", 32),
			wantErr:   false,
		},
		{
			name:      "short secret",
			jwtSecret: "short",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			cfg.JWTSecret = tt.jwtSecret

			err := cfg.validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateStoreProvider(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.StoreProvider = "sqlite"

	err := cfg.validate()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "StoreProvider") || !strings.Contains(err.Error(), "oneof") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDatabaseURLForPostgres(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.StoreProvider = "postgres"
	cfg.DatabaseURL = ""

	err := cfg.validate()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "DatabaseURL") || !strings.Contains(err.Error(), "required_if") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateMongoURIForMongo(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.StoreProvider = "mongo"

	err := cfg.validate()
	if err == nil || !strings.Contains(err.Error(), "MongoURI") {
		t.Fatalf("expected MongoURI error, got %v", err)
	}

	cfg.MongoURI = "mongodb://localhost:27017"
	if err := cfg.validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateRedisConnectionStringForRateLimit(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.RateLimitStore = "redis"
	cfg.RedisConnectionString = ""

	err := cfg.validate()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "RedisConnectionString") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStripeRequiresWebhookSecret(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Stripe.SecretKey = "sk_test_123"

	if err := cfg.validate(); err == nil {
		t.Fatalf("expected error, got nil")
	}

	cfg.Stripe.WebhookSecret = "whsec_test"
	if err := cfg.validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidatePayPalCredentialsMustBePaired(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.PayPal.ClientID = "client-id"

	err := cfg.validate()
	if err == nil || !strings.Contains(err.Error(), "PAYPAL_CLIENT_ID") {
		t.Fatalf("expected paired credentials error, got %v", err)
	}
}

func TestValidateEmailProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		email   EmailConfig
		wantErr bool
	}{
		{name: "disabled", email: EmailConfig{Provider: "none"}, wantErr: false},
		{name: "resend without key", email: EmailConfig{Provider: "resend", From: "shop@example.com"}, wantErr: true},
		{name: "resend configured", email: EmailConfig{Provider: "resend", APIKey: "re_123", From: "shop@example.com"}, wantErr: false},
		{name: "mailgun without domain", email: EmailConfig{Provider: "mailgun", APIKey: "key", From: "shop@example.com"}, wantErr: true},
		{name: "invalid from", email: EmailConfig{Provider: "postmark", APIKey: "key", From: "not-an-email"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			cfg.Email = tt.email

			err := cfg.validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateMediaS3RequiresBucket(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Media.Provider = "s3"

	if err := cfg.validate(); err == nil {
		t.Fatalf("expected error, got nil")
	}

	cfg.Media.S3Bucket = "storefront-media"
	cfg.Media.S3Region = "ap-south-1"
	if err := cfg.validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestIsDevelopment(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if cfg.IsDevelopment() {
		t.Fatal("production config reported development")
	}
	cfg.Environment = "development"
	if !cfg.IsDevelopment() {
		t.Fatal("expected development")
	}
}

func validConfig() *Config {
	return &Config{
		Environment:           "production",
		Port:                  "8080",
		LogFormat:             "text",
		StoreProvider:         "memory",
		MongoDatabase:         "storefront",
		CacheProvider:         "memory",
		RateLimitStore:        "memory",
		RateLimitRequests:     60,
		RateLimitWindow:       time.Minute,
		RedisConnectionString: "redis://localhost:6379/0",
		JWTSecret:             strings.Repeat("j", 32),
		PaymentCurrency:       "INR",
		GatewayTimeout:        30 * time.Second,
		Razorpay: RazorpayConfig{
			KeyID:     "rzp_test_key",
			KeySecret: "rzp_test_secret",
			BaseURL:   "https://api.razorpay.com/v1",
		},
		PayPal: PayPalConfig{
			BaseURL: "https://api-m.sandbox.paypal.com",
		},
		Email: EmailConfig{Provider: "none"},
		Media: MediaConfig{Provider: "none"},
		Sentry: SentryConfig{
			TracesSampleRate: 0.1,
		},
	}
}
