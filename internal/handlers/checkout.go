package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/create-my-art/api/internal/domain"
	"github.com/create-my-art/api/internal/platform/httpx"
	"github.com/create-my-art/api/internal/services"
	"github.com/create-my-art/api/internal/validation"
)

const maxCheckoutBodySize = 64 * 1024

type checkoutRequest struct {
	Customer      domain.Customer      `json:"customer"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	TermsAccepted bool                 `json:"termsAccepted"`
}

// CheckoutHandlers runs the order submission flow over HTTP.
type CheckoutHandlers struct {
	orders services.OrderService
}

// NewCheckoutHandlers constructs the checkout endpoints.
func NewCheckoutHandlers(orders services.OrderService) *CheckoutHandlers {
	return &CheckoutHandlers{orders: orders}
}

// Routes registers the /checkout endpoint.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/checkout", h.submit)
}

func (h *CheckoutHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout unavailable", http.StatusServiceUnavailable))
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckoutBodySize)).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be a checkout submission", http.StatusBadRequest))
		return
	}
	result, err := h.orders.Submit(ctx, services.SubmissionForm{
		Customer:      req.Customer,
		PaymentMethod: req.PaymentMethod,
		TermsAccepted: req.TermsAccepted,
	})
	if err != nil {
		h.writeSubmitError(w, r, err)
		return
	}

	switch result.Status {
	case services.SubmissionCancelled:
		httpx.WriteJSON(ctx, w, http.StatusOK, map[string]any{
			"status": string(result.Status),
			"reason": result.CancelReason,
		})
	case services.SubmissionPaymentFailed:
		payload := map[string]any{"status": string(result.Status)}
		if result.PaymentErr != nil {
			payload["message"] = result.PaymentErr.Error()
		}
		httpx.WriteJSON(ctx, w, http.StatusOK, payload)
	default:
		httpx.WriteJSON(ctx, w, http.StatusCreated, map[string]any{
			"status":       string(result.Status),
			"orderId":      result.OrderID,
			"imageUrls":    result.ImageURLs,
			"imageDetails": result.Images,
			"total":        result.Order.TotalCents,
		})
	}
}

func (h *CheckoutHandlers) writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var formErr *validation.FormError
	switch {
	case errors.Is(err, services.ErrEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("empty_cart", "cart is empty", http.StatusBadRequest))
	case errors.As(err, &formErr):
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "some fields are invalid", http.StatusBadRequest).WithFields(formErr.Fields))
	case errors.Is(err, services.ErrUnsupportedPayment):
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_payment_method", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderPersist):
		httpx.WriteError(ctx, w, httpx.NewError("order_persist_failed", "payment captured but the order could not be recorded; support has been notified", http.StatusInternalServerError))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_failed", "checkout failed", http.StatusInternalServerError))
	}
}
