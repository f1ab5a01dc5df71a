package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gorilla/mux"

	"github.com/storefrontapp/storefront/internal/config"
	"github.com/storefrontapp/storefront/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true, WaitForDelivery: false})
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           sentryHandler.Handle(s.buildRouter()),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.MetricsContext)
	r.Use(h.SecurityHeaders)
	r.NotFoundHandler = http.HandlerFunc(h.NotFound)

	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")
	r.HandleFunc("/webhooks/stripe", h.StripeWebhook).Methods("POST").Name("webhooks.stripe")

	// Public catalog
	r.Handle("/api/products/{id}", h.RateLimit(http.HandlerFunc(h.GetProduct))).Methods("GET").Name("products.get")

	// Authenticated API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.RateLimit)
	api.Use(h.RequireUser)
	api.HandleFunc("/orders", h.CreateOrder).Methods("POST").Name("orders.create")
	api.HandleFunc("/orders/paid", h.CreatePaidOrder).Methods("POST").Name("orders.create_paid")
	api.HandleFunc("/orders/mine", h.ListMyOrders).Methods("GET").Name("orders.mine")
	api.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET").Name("orders.get")
	api.HandleFunc("/orders/{id}/payment-intent", h.CreatePaymentIntent).Methods("POST").Name("orders.payment_intent")
	api.HandleFunc("/orders/{id}/verify-payment", h.VerifyPayment).Methods("POST").Name("orders.verify_payment")
	api.HandleFunc("/orders/{id}/status", h.UpdateStatus).Methods("PUT").Name("orders.status")

	// Admin API
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(h.RequireAdmin)
	admin.HandleFunc("/orders", h.ListOrders).Methods("GET").Name("admin.orders")
	admin.HandleFunc("/orders/{id}/stock", h.ApplyStock).Methods("POST").Name("admin.orders.stock")
	admin.HandleFunc("/products", h.CreateProduct).Methods("POST").Name("admin.products.create")
	admin.HandleFunc("/uploads", h.UploadMedia).Methods("POST").Name("admin.uploads")

	return r
}
