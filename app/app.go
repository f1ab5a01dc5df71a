package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/lmittmann/tint"

	"github.com/storefrontapp/storefront/internal/auth"
	"github.com/storefrontapp/storefront/internal/cache"
	"github.com/storefrontapp/storefront/internal/config"
	"github.com/storefrontapp/storefront/internal/db"
	"github.com/storefrontapp/storefront/internal/email"
	"github.com/storefrontapp/storefront/internal/handlers"
	"github.com/storefrontapp/storefront/internal/logging"
	"github.com/storefrontapp/storefront/internal/media"
	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/mongostore"
	"github.com/storefrontapp/storefront/internal/observability"
	"github.com/storefrontapp/storefront/internal/payments"
	"github.com/storefrontapp/storefront/internal/ratelimit"
	"github.com/storefrontapp/storefront/internal/services"
	"github.com/storefrontapp/storefront/internal/signature"
	"github.com/storefrontapp/storefront/internal/store"
	"github.com/storefrontapp/storefront/internal/stripe"
)

type App struct {
	Config         *config.Config
	Logger         *slog.Logger
	Store          store.Store
	CacheProvider  cache.Provider
	RateLimitStore ratelimit.Store
	Handlers       *handlers.Handlers

	sentryEnabled bool
	closers       []io.Closer
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg}
	a.sentryEnabled, err = observability.InitSentry(observability.SentryOptions{
		DSN:              cfg.Sentry.DSN,
		Environment:      firstNonEmpty(cfg.Sentry.Environment, cfg.Environment),
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
	})
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg, a.sentryEnabled)
	a.Logger = logger

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	a.Store, err = openStore(startupCtx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.Store)
	logger.Info("store ready", "provider", cfg.StoreProvider)

	a.CacheProvider, err = cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}
	a.closers = append(a.closers, a.CacheProvider)

	a.RateLimitStore, err = ratelimit.NewStore(ratelimit.Config{
		Store:                 cfg.RateLimitStore,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize rate limit store: %w", err)
	}
	a.closers = append(a.closers, a.RateLimitStore)

	signer, err := signature.NewSigner(cfg.Razorpay.KeySecret)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize payment signer: %w", err)
	}
	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	notifier, err := newNotifier(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	orders := services.NewOrderService(
		a.Store,
		a.Store,
		newGateways(cfg, logger),
		signer,
		notifier,
		services.OrderOptions{
			Currency:               cfg.PaymentCurrency,
			GatewayTimeout:         cfg.GatewayTimeout,
			ThemeColor:             cfg.PaymentThemeColor,
			StoreName:              cfg.StoreName,
			DecrementStockOnVerify: cfg.DecrementStockOnVerify,
			StrictPricing:          cfg.StrictPricing,
		},
		logger.With("component", "order_service"),
	)

	var uploader handlers.MediaUploader
	if cfg.Media.Provider == "s3" {
		host, err := media.NewS3Host(startupCtx, cfg.Media.S3Bucket, cfg.Media.S3Region, cfg.Media.PublicBaseURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		uploader = host
	}

	var stripeRouter *handlers.StripeEventRouter
	if cfg.Stripe.WebhookSecret != "" {
		stripeRouter = handlers.NewStripeEventRouter(orders, logger.With("component", "stripe_router"))
	}

	a.Handlers, err = handlers.New(handlers.Dependencies{
		Config:        cfg,
		Store:         a.Store,
		Orders:        orders,
		Verifier:      verifier,
		Limiter:       ratelimit.NewLimiter(a.RateLimitStore, cfg.RateLimitRequests, cfg.RateLimitWindow),
		CacheProvider: a.CacheProvider,
		Media:         uploader,
		StripeRouter:  stripeRouter,
		Logger:        logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreProvider {
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return db.NewStore(pool), nil
	case "mongo":
		s, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

// newGateways registers every gateway that has credentials configured.
func newGateways(cfg *config.Config, logger *slog.Logger) *payments.Registry {
	httpClient := observability.NewHTTPClient(cfg.GatewayTimeout)
	registry := payments.NewRegistry()

	if cfg.Razorpay.KeyID != "" {
		registry.Register(models.PaymentRazorPay, payments.NewRazorpayGateway(payments.RazorpayConfig{
			KeyID:      cfg.Razorpay.KeyID,
			KeySecret:  cfg.Razorpay.KeySecret,
			BaseURL:    cfg.Razorpay.BaseURL,
			HTTPClient: httpClient,
		}))
	}
	if cfg.Stripe.SecretKey != "" {
		registry.Register(models.PaymentStripe, payments.NewStripeGateway(
			stripe.NewClient(cfg.Stripe.SecretKey),
			cfg.Stripe.PublishableKey,
		))
	}
	if cfg.PayPal.ClientID != "" {
		registry.Register(models.PaymentPayPal, payments.NewPayPalGateway(payments.PayPalConfig{
			ClientID:     cfg.PayPal.ClientID,
			ClientSecret: cfg.PayPal.ClientSecret,
			BaseURL:      cfg.PayPal.BaseURL,
			HTTPClient:   httpClient,
		}))
	}

	logger.Info("payment gateways configured", "methods", registry.Methods())
	return registry
}

func newNotifier(cfg *config.Config) (services.OrderNotifier, error) {
	provider, err := email.NewProvider(email.Config{
		Provider:   cfg.Email.Provider,
		APIKey:     cfg.Email.APIKey,
		From:       cfg.Email.From,
		Domain:     cfg.Email.MailgunDomain,
		HTTPClient: observability.NewHTTPClient(15 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}
	if provider == nil {
		return nil, nil
	}
	notifier, err := services.NewEmailNotifier(provider, cfg.StoreName)
	if err != nil {
		return nil, err
	}
	return notifier, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && a.Logger != nil {
			a.Logger.Warn("failed to close resource", "error", err)
		}
	}
	a.closers = nil
	if a.sentryEnabled {
		observability.FlushSentry()
	}
}

func newLogger(cfg *config.Config, sentryEnabled bool) *slog.Logger {
	var console slog.Handler
	if strings.ToLower(strings.TrimSpace(cfg.LogFormat)) == "json" {
		console = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	} else {
		console = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      cfg.LogLevel,
			TimeFormat: time.Kitchen,
		})
	}
	if !sentryEnabled {
		return slog.New(console)
	}

	// Errors become Sentry events; warnings are kept as Sentry logs.
	reporter := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelError},
	}.NewSentryHandler(context.Background())
	return slog.New(logging.Tee(console, reporter))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
