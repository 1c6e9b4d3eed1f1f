package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/create-my-art/api/internal/domain"
)

// Logger receives structured provider events. A nil logger drops them.
type Logger func(ctx context.Context, event string, fields map[string]any)

// CheckoutLine is one poster position forwarded to the payment provider.
type CheckoutLine struct {
	Name      string
	SKU       string
	Size      domain.PrintSize
	UnitCents int64
	Quantity  int
}

// OrderRequest describes the payment to authorize. TotalCents must equal the
// sum of the lines; providers reject mismatches instead of trusting either
// side.
type OrderRequest struct {
	Lines      []CheckoutLine
	TotalCents int64
	Currency   string
}

// Validate normalises the request and checks the line/total invariant.
func (r *OrderRequest) Validate() error {
	if len(r.Lines) == 0 {
		return errors.New("payments: order request has no lines")
	}
	if r.Currency == "" {
		r.Currency = "EUR"
	}
	var sum int64
	for i := range r.Lines {
		if r.Lines[i].Quantity <= 0 {
			r.Lines[i].Quantity = 1
		}
		sum += r.Lines[i].UnitCents * int64(r.Lines[i].Quantity)
	}
	if r.TotalCents != sum {
		return fmt.Errorf("payments: total %d does not match line sum %d", r.TotalCents, sum)
	}
	return nil
}

// Provider abstracts a payment service. CreateOrder opens an approval order
// and returns its provider-side ID; Capture settles an approved order and
// reports the tagged outcome.
type Provider interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (string, error)
	Capture(ctx context.Context, orderID string) (domain.PaymentResult, error)
}

// ErrUnsupportedMethod is returned when no provider is registered for a
// payment method.
var ErrUnsupportedMethod = errors.New("payments: unsupported payment method")

// Manager routes payment methods to providers. Card payments route to the
// PayPal provider as well, so both methods usually share one registration.
type Manager struct {
	mu        sync.RWMutex
	providers map[domain.PaymentMethod]Provider
}

// NewManager builds an empty manager.
func NewManager() *Manager {
	return &Manager{providers: make(map[domain.PaymentMethod]Provider)}
}

// Register binds a provider to one or more payment methods.
func (m *Manager) Register(provider Provider, methods ...domain.PaymentMethod) error {
	if provider == nil {
		return errors.New("payments: provider is required")
	}
	if len(methods) == 0 {
		return errors.New("payments: at least one method is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, method := range methods {
		if !method.Valid() {
			return fmt.Errorf("payments: unknown method %q", method)
		}
		m.providers[method] = provider
	}
	return nil
}

// Resolve returns the provider bound to the method.
func (m *Manager) Resolve(method domain.PaymentMethod) (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	provider, ok := m.providers[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	return provider, nil
}

// Methods lists the registered methods, for the env endpoint.
func (m *Manager) Methods() []domain.PaymentMethod {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.PaymentMethod, 0, len(m.providers))
	for method := range m.providers {
		out = append(out, method)
	}
	return out
}

// isWindowClosed reports whether a capture error stems from the payer
// closing the approval window, which counts as a cancellation.
func isWindowClosed(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "window is closed")
}
