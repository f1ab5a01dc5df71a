package handlers

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/storefrontapp/storefront/internal/auth"
	"github.com/storefrontapp/storefront/internal/logging"
	"github.com/storefrontapp/storefront/internal/observability"
)

// RequireUser verifies the bearer token and stores the claims in the context.
func (h *Handlers) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		meter := observability.MeterFromContext(ctx)

		claims, err := h.verifier.FromRequest(r)
		if err != nil {
			reason := "invalid_token"
			message := "Not authorized, token failed"
			if errors.Is(err, auth.ErrMissingToken) {
				reason = "missing_token"
				message = "Not authorized, no token"
			}
			meter.Count("auth.rejected", 1, sentry.WithAttributes(attribute.String("reason", reason)))
			h.loggerFromContext(ctx).Debug("bearer token rejected", "error", err)
			writeMessage(w, http.StatusUnauthorized, message)
			return
		}

		meter.SetAttributes(attribute.String("user.id", claims.UserID()))
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.Scope().SetUser(sentry.User{ID: claims.UserID(), Email: claims.Email})
		}

		ctx = auth.WithClaims(ctx, claims)
		ctx = logging.With(ctx, h.logger, "user_id", claims.UserID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after RequireUser.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.ClaimsFromContext(r.Context())
		if claims == nil {
			writeMessage(w, http.StatusUnauthorized, "Not authorized, no token")
			return
		}
		if !claims.IsAdmin() {
			observability.MeterFromContext(r.Context()).Count("auth.forbidden", 1)
			writeMessage(w, http.StatusForbidden, "Not authorized as an admin")
			return
		}
		next.ServeHTTP(w, r)
	})
}
