package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/storefrontapp/storefront/internal/observability"
)

// RateLimit enforces the per-client request budget. Storage failures let
// the request through.
func (h *Handlers) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		decision, err := h.limiter.Allow(ctx, clientIP(r))
		if err != nil {
			h.loggerFromContext(ctx).Warn("rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.ResetAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			observability.MeterFromContext(ctx).Count("ratelimit.rejected", 1, sentry.WithAttributes(
				attribute.String("http.route", routeLabel(r)),
			))
			writeMessage(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}
