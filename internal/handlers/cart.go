package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/create-my-art/api/internal/cart"
	"github.com/create-my-art/api/internal/domain"
	"github.com/create-my-art/api/internal/platform/httpx"
)

const maxCartBodySize = 64 * 1024

// CartHandlers exposes the in-process cart store over HTTP.
type CartHandlers struct {
	cart *cart.Store
}

// NewCartHandlers constructs the cart endpoints.
func NewCartHandlers(store *cart.Store) *CartHandlers {
	return &CartHandlers{cart: store}
}

// Routes registers the /cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/cart", h.getCart)
	r.Post("/cart/items", h.addItem)
	r.Delete("/cart/items/{itemID}", h.removeItem)
	r.Delete("/cart", h.clear)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, r, http.StatusOK)
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var item domain.CartItem
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCartBodySize)).Decode(&item); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be a cart item", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(item.ImageURL) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "imageUrl is required", http.StatusBadRequest))
		return
	}

	added, err := h.cart.Add(item)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_persist_failed", err.Error(), http.StatusInternalServerError))
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusCreated, map[string]any{
		"item":  added,
		"items": h.cart.Items(),
		"total": h.cart.TotalCents(),
	})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.Remove(chi.URLParam(r, "itemID")); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("cart_persist_failed", err.Error(), http.StatusInternalServerError))
		return
	}
	h.writeCart(w, r, http.StatusOK)
}

func (h *CartHandlers) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.Clear(); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("cart_persist_failed", err.Error(), http.StatusInternalServerError))
		return
	}
	h.writeCart(w, r, http.StatusOK)
}

func (h *CartHandlers) writeCart(w http.ResponseWriter, r *http.Request, status int) {
	items := h.cart.Items()
	if items == nil {
		items = []domain.CartItem{}
	}
	httpx.WriteJSON(r.Context(), w, status, map[string]any{
		"items": items,
		"total": h.cart.TotalCents(),
		"count": h.cart.Count(),
	})
}
