package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/storefrontapp/storefront/internal/auth"
	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/services"
	"github.com/storefrontapp/storefront/internal/store"
)

type paidOrderResponse struct {
	Message       string                   `json:"message,omitempty"`
	OrderID       string                   `json:"orderId"`
	Order         services.OrderView       `json:"order"`
	ReceiptNumber string                   `json:"receiptNumber"`
	Stock         []models.StockAdjustment `json:"stock"`
	StockPending  []int                    `json:"stockPendingItems,omitempty"`
}

type stockResponse struct {
	Order services.OrderView       `json:"order"`
	Stock []models.StockAdjustment `json:"stock"`
}

type orderListResponse struct {
	Orders []services.OrderView `json:"orders"`
	Page   int                  `json:"page"`
	Limit  int                  `json:"limit"`
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var input services.OrderInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.idempotent(w, r, "create_order", func() (int, any, error) {
		order, err := h.orders.CreateOrder(r.Context(), auth.ClaimsFromContext(r.Context()), input)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, services.ViewOf(order), nil
	})
}

func (h *Handlers) CreatePaidOrder(w http.ResponseWriter, r *http.Request) {
	var input services.PaidOrderInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.idempotent(w, r, "create_paid_order", func() (int, any, error) {
		result, err := h.orders.CreatePaidOrder(r.Context(), auth.ClaimsFromContext(r.Context()), input)
		if result == nil || result.Order == nil {
			return 0, nil, err
		}
		resp := paidOrderResponse{
			OrderID:       result.Order.ID.String(),
			Order:         services.ViewOf(result.Order),
			ReceiptNumber: result.ReceiptNumber,
			Stock:         result.Stock,
		}
		if err != nil {
			// Paid and stored, stock incomplete: the body is kept so a retry replays it.
			resp.Message = "Order placed but stock update failed"
			resp.StockPending = result.Order.PendingStockItems()
			return http.StatusInternalServerError, resp, err
		}
		return http.StatusCreated, resp, nil
	})
}

func (h *Handlers) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	input := listInput(r)
	orders, err := h.orders.ListMyOrders(r.Context(), auth.ClaimsFromContext(r.Context()), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(orders, input))
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	input := listInput(r)
	orders, err := h.orders.ListOrders(r.Context(), auth.ClaimsFromContext(r.Context()), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(orders, input))
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), auth.ClaimsFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services.ViewOf(order))
}

func (h *Handlers) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	intent, err := h.orders.CreatePaymentIntent(r.Context(), auth.ClaimsFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

func (h *Handlers) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var input services.PaymentInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.VerifyPayment(r.Context(), auth.ClaimsFromContext(r.Context()), mux.Vars(r)["id"], input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services.ViewOf(order))
}

func (h *Handlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var input services.StatusInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), auth.ClaimsFromContext(r.Context()), mux.Vars(r)["id"], input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services.ViewOf(order))
}

func (h *Handlers) ApplyStock(w http.ResponseWriter, r *http.Request) {
	result, err := h.orders.ApplyStock(r.Context(), auth.ClaimsFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{Order: services.ViewOf(result.Order), Stock: result.Stock})
}

func listInput(r *http.Request) services.ListInput {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))
	return services.ListInput{
		Status: models.OrderStatus(strings.TrimSpace(query.Get("status"))),
		Page:   page,
		Limit:  limit,
	}
}

func listResponse(orders []*models.Order, input services.ListInput) orderListResponse {
	page := input.Page
	if page < 1 {
		page = 1
	}
	return orderListResponse{
		Orders: services.ViewsOf(orders),
		Page:   page,
		Limit:  store.ListOrdersParams{Limit: input.Limit}.Normalize().Limit,
	}
}
