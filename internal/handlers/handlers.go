// Package handlers exposes the order service over HTTP.
package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/storefrontapp/storefront/internal/auth"
	"github.com/storefrontapp/storefront/internal/cache"
	"github.com/storefrontapp/storefront/internal/config"
	"github.com/storefrontapp/storefront/internal/logging"
	"github.com/storefrontapp/storefront/internal/media"
	"github.com/storefrontapp/storefront/internal/ratelimit"
	"github.com/storefrontapp/storefront/internal/services"
)

const (
	maxJSONBodyBytes    = 1 << 20 // 1 MB
	maxWebhookBodyBytes = 1 << 20 // 1 MB
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MediaUploader stores a batch of images.
type MediaUploader interface {
	UploadAll(ctx context.Context, folder string, files []media.File) ([]media.Asset, error)
}

type Handlers struct {
	config        *config.Config
	store         Pinger
	orders        *services.OrderService
	verifier      *auth.Verifier
	limiter       *ratelimit.Limiter
	cacheProvider cache.Provider
	media         MediaUploader
	stripeRouter  *StripeEventRouter
	logger        *slog.Logger
}

type Dependencies struct {
	Config        *config.Config
	Store         Pinger
	Orders        *services.OrderService
	Verifier      *auth.Verifier
	Limiter       *ratelimit.Limiter
	CacheProvider cache.Provider
	// Media and StripeRouter are optional; their routes answer 503 when nil.
	Media        MediaUploader
	StripeRouter *StripeEventRouter
	Logger       *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("handlers dependencies: store is required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("handlers dependencies: orders is required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("handlers dependencies: verifier is required")
	}
	if deps.CacheProvider == nil {
		return nil, fmt.Errorf("handlers dependencies: cacheProvider is required")
	}

	return &Handlers{
		config:        deps.Config,
		store:         deps.Store,
		orders:        deps.Orders,
		verifier:      deps.Verifier,
		limiter:       deps.Limiter,
		cacheProvider: deps.CacheProvider,
		media:         deps.Media,
		stripeRouter:  deps.StripeRouter,
		logger:        logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.store.Ping(ctx); err != nil {
		h.loggerFromContext(ctx).Error("store health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// NotFound answers unknown routes with the JSON error shape.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusNotFound, fmt.Sprintf("Not found - %s", r.URL.Path))
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}
