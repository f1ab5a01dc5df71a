package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/storefrontapp/storefront/internal/auth"
	"github.com/storefrontapp/storefront/internal/cache"
)

const (
	idempotencyTTL       = 24 * time.Hour
	idempotencyInFlight  = "in-flight"
	maxIdempotencyKeyLen = 128
)

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// idempotent runs fn at most once per Idempotency-Key header value for the
// current user. Repeats replay the stored response; a repeat that arrives
// while the first call is still running gets 409. Failed calls are not
// stored, so the client may retry with the same key, unless fn returned a
// body with its error: that call had side effects and its response is kept.
func (h *Handlers) idempotent(w http.ResponseWriter, r *http.Request, operation string, fn func() (int, any, error)) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		h.respond(w, r, fn)
		return
	}
	if len(key) > maxIdempotencyKeyLen {
		writeMessage(w, http.StatusBadRequest, "Idempotency-Key is too long")
		return
	}

	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	cacheKey := cache.IdempotencyKey(operation, auth.ClaimsFromContext(ctx).UserID(), key)

	added, err := h.cacheProvider.Add(ctx, cacheKey, idempotencyInFlight, idempotencyTTL)
	if err != nil {
		logger.Warn("idempotency cache unavailable", "error", err)
		h.respond(w, r, fn)
		return
	}
	if !added {
		h.replay(w, r, cacheKey)
		return
	}

	status, body, err := fn()
	if err != nil && body == nil {
		if delErr := h.cacheProvider.Delete(ctx, cacheKey); delErr != nil {
			logger.Warn("failed to release idempotency key", "error", delErr)
		}
		h.writeError(w, r, err)
		return
	}
	if err != nil {
		logger.Error("request partially failed", "error", err)
	}

	encoded, err := json.Marshal(body)
	if err == nil {
		stored, _ := json.Marshal(storedResponse{Status: status, Body: encoded})
		if setErr := h.cacheProvider.Set(ctx, cacheKey, string(stored), idempotencyTTL); setErr != nil {
			logger.Warn("failed to store idempotent response", "error", setErr)
		}
	}
	writeJSON(w, status, body)
}

func (h *Handlers) replay(w http.ResponseWriter, r *http.Request, cacheKey string) {
	value, err := h.cacheProvider.Get(r.Context(), cacheKey)
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		h.writeError(w, r, err)
		return
	}
	if err != nil || value == idempotencyInFlight {
		writeMessage(w, http.StatusConflict, "A request with this Idempotency-Key is already in progress")
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(value), &stored); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(append(stored.Body, '\n'))
}

func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, fn func() (int, any, error)) {
	status, body, err := fn()
	if err != nil && body == nil {
		h.writeError(w, r, err)
		return
	}
	if err != nil {
		h.loggerFromContext(r.Context()).Error("request partially failed", "error", err)
	}
	writeJSON(w, status, body)
}
