package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/create-my-art/api/internal/domain"
	"github.com/create-my-art/api/internal/platform/httpx"
	"github.com/create-my-art/api/internal/services"
	"github.com/create-my-art/api/internal/validation"
)

// OrderHandlers exposes order queries.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs the order endpoints.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.listByEmail)
}

func (h *OrderHandlers) listByEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order lookup unavailable", http.StatusServiceUnavailable))
		return
	}

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "email query parameter is required", http.StatusBadRequest))
		return
	}

	orders, err := h.orders.OrdersByEmail(ctx, email)
	if err != nil {
		var formErr *validation.FormError
		if errors.As(err, &formErr) {
			httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "email is invalid", http.StatusBadRequest).WithFields(formErr.Fields))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("order_query_failed", "cannot load orders", http.StatusInternalServerError))
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, map[string]any{"orders": orders})
}
