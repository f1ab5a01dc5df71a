package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/storefrontapp/storefront/internal/services"
)

type errorResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return services.UserError{Kind: services.ErrValidation, Message: "Request body too large"}
		}
		return services.UserError{Kind: services.ErrValidation, Message: fmt.Sprintf("Invalid request body: %v", err)}
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrAlreadyPaid),
		errors.Is(err, services.ErrPaymentVerification):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a service error to its status code and client message.
// Unclassified errors are logged and reported as a generic server error.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	var userErr services.UserError
	if status != http.StatusInternalServerError && errors.As(err, &userErr) {
		writeMessage(w, status, userErr.Message)
		return
	}
	if status != http.StatusInternalServerError {
		writeMessage(w, status, err.Error())
		return
	}

	h.loggerFromContext(r.Context()).Error("request failed", "error", err)
	resp := errorResponse{Message: "Internal server error"}
	if h.config.IsDevelopment() {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}
