package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/storefrontapp/storefront/internal/auth"
	"github.com/storefrontapp/storefront/internal/services"
)

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input services.ProductInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	product, err := h.orders.CreateProduct(r.Context(), auth.ClaimsFromContext(r.Context()), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.orders.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}
