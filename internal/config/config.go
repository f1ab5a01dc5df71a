package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Environment string     `env:"ENVIRONMENT" envDefault:"production" validate:"oneof=development production test"`
	Port        string     `env:"PORT" envDefault:"8080"`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat   string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`

	StoreProvider string `env:"STORE_PROVIDER" envDefault:"memory" validate:"oneof=memory postgres mongo"`
	DatabaseURL   string `env:"DATABASE_URL" validate:"required_if=StoreProvider postgres"`
	MongoURI      string `env:"MONGO_URI" validate:"required_if=StoreProvider mongo"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"storefront"`

	CacheProvider         string        `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RateLimitStore        string        `env:"RATE_LIMIT_STORE" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RateLimitRequests     int           `env:"RATE_LIMIT_REQUESTS" envDefault:"60" validate:"gte=0"`
	RateLimitWindow       time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RedisConnectionString string        `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis,required_if=RateLimitStore redis"`

	JWTSecret string `env:"JWT_SECRET,required" validate:"required,min=32"`

	PaymentCurrency        string        `env:"PAYMENT_CURRENCY" envDefault:"INR" validate:"len=3"`
	GatewayTimeout         time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"30s"`
	PaymentThemeColor      string        `env:"PAYMENT_THEME_COLOR" envDefault:"#3399cc"`
	StoreName              string        `env:"STORE_NAME" envDefault:"Storefront"`
	DecrementStockOnVerify bool          `env:"DECREMENT_STOCK_ON_VERIFY" envDefault:"false"`
	StrictPricing          bool          `env:"STRICT_PRICING" envDefault:"false"`

	Razorpay RazorpayConfig `envPrefix:"RAZORPAY_"`
	Stripe   StripeConfig   `envPrefix:"STRIPE_"`
	PayPal   PayPalConfig   `envPrefix:"PAYPAL_"`
	Email    EmailConfig    `envPrefix:"EMAIL_"`
	Media    MediaConfig    `envPrefix:"MEDIA_"`
	Sentry   SentryConfig   `envPrefix:"SENTRY_"`
}

type RazorpayConfig struct {
	KeyID     string `env:"KEY_ID"`
	KeySecret string `env:"KEY_SECRET,required" validate:"required"`
	BaseURL   string `env:"BASE_URL" envDefault:"https://api.razorpay.com/v1" validate:"url"`
}

type StripeConfig struct {
	SecretKey      string `env:"SECRET_KEY"`
	PublishableKey string `env:"PUBLISHABLE_KEY"`
	WebhookSecret  string `env:"WEBHOOK_SECRET"`
}

type PayPalConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	BaseURL      string `env:"BASE_URL" envDefault:"https://api-m.sandbox.paypal.com" validate:"url"`
}

type EmailConfig struct {
	Provider      string `env:"PROVIDER" envDefault:"none" validate:"oneof=none resend postmark mailgun"`
	APIKey        string `env:"API_KEY"`
	From          string `env:"FROM" validate:"omitempty,email"`
	MailgunDomain string `env:"MAILGUN_DOMAIN"`
}

type MediaConfig struct {
	Provider      string `env:"PROVIDER" envDefault:"none" validate:"oneof=none s3"`
	S3Bucket      string `env:"S3_BUCKET"`
	S3Region      string `env:"S3_REGION"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" validate:"omitempty,url"`
}

type SentryConfig struct {
	DSN              string  `env:"DSN"`
	Environment      string  `env:"ENVIRONMENT"`
	TracesSampleRate float64 `env:"TRACES_SAMPLE_RATE" envDefault:"0.1" validate:"gte=0,lte=1"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsDevelopment reports whether internal error details may be returned to clients.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.Environment == "development"
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	if c.RateLimitRequests > 0 && c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}

	hasStripeKey := strings.TrimSpace(c.Stripe.SecretKey) != ""
	if hasStripeKey && strings.TrimSpace(c.Stripe.WebhookSecret) == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	hasPayPalID := strings.TrimSpace(c.PayPal.ClientID) != ""
	hasPayPalSecret := strings.TrimSpace(c.PayPal.ClientSecret) != ""
	if hasPayPalID != hasPayPalSecret {
		return fmt.Errorf("PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET must be set together")
	}

	if c.Email.Provider != "none" {
		if strings.TrimSpace(c.Email.APIKey) == "" || strings.TrimSpace(c.Email.From) == "" {
			return fmt.Errorf("EMAIL_API_KEY and EMAIL_FROM are required when EMAIL_PROVIDER is %s", c.Email.Provider)
		}
		if c.Email.Provider == "mailgun" && strings.TrimSpace(c.Email.MailgunDomain) == "" {
			return fmt.Errorf("EMAIL_MAILGUN_DOMAIN is required for mailgun")
		}
	}

	if c.Media.Provider == "s3" && (strings.TrimSpace(c.Media.S3Bucket) == "" || strings.TrimSpace(c.Media.S3Region) == "") {
		return fmt.Errorf("MEDIA_S3_BUCKET and MEDIA_S3_REGION are required when MEDIA_PROVIDER is s3")
	}

	return nil
}
