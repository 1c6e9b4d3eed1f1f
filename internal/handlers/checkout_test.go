package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/create-my-art/api/internal/domain"
	"github.com/create-my-art/api/internal/services"
	"github.com/create-my-art/api/internal/validation"
)

type stubOrderService struct {
	result    services.SubmissionResult
	submitErr error
	listed    []domain.Order
	listErr   error
	lastForm  services.SubmissionForm
}

func (s *stubOrderService) Submit(_ context.Context, form services.SubmissionForm) (services.SubmissionResult, error) {
	s.lastForm = form
	if s.submitErr != nil {
		return services.SubmissionResult{}, s.submitErr
	}
	return s.result, nil
}

func (s *stubOrderService) OrdersByEmail(context.Context, string) ([]domain.Order, error) {
	return s.listed, s.listErr
}

func newCheckoutRouter(svc services.OrderService) http.Handler {
	return NewRouter(WithCheckoutRoutes(NewCheckoutHandlers(svc).Routes))
}

func checkoutBody() string {
	return `{"customer":{"firstName":"Anna","lastName":"Muster","email":"anna@example.com","street":"Musterweg","houseNumber":"12","zip":"12345","city":"Berlin"},"paymentMethod":"paypal","termsAccepted":true}`
}

func TestCheckoutConfirmed(t *testing.T) {
	svc := &stubOrderService{result: services.SubmissionResult{
		Status:    services.SubmissionConfirmed,
		OrderID:   "order-42",
		ImageURLs: []string{"https://cdn.example.com/orders/order-42/img.jpg"},
		Order:     domain.Order{TotalCents: 3370},
	}}
	router := newCheckoutRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(checkoutBody())))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["orderId"] != "order-42" || payload["status"] != "confirmed" {
		t.Fatalf("payload = %v", payload)
	}
	if svc.lastForm.PaymentMethod != domain.PaymentMethodPayPal {
		t.Fatalf("method = %s", svc.lastForm.PaymentMethod)
	}
	if !svc.lastForm.TermsAccepted {
		t.Fatal("terms acceptance must reach the service")
	}
}

func TestCheckoutPassesMissingMethodAndTermsThrough(t *testing.T) {
	svc := &stubOrderService{
		submitErr: &validation.FormError{Fields: []string{"terms", "paymentMethod"}},
	}
	router := newCheckoutRouter(svc)

	body := `{"customer":{"firstName":"Anna","lastName":"Muster","email":"anna@example.com","street":"Musterweg","houseNumber":"12","zip":"12345","city":"Berlin"}}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body)))

	if svc.lastForm.PaymentMethod != "" {
		t.Fatalf("method = %q, must not be defaulted", svc.lastForm.PaymentMethod)
	}
	if svc.lastForm.TermsAccepted {
		t.Fatal("terms must not default to accepted")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var payload struct {
		Fields []string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Fields) != 2 {
		t.Fatalf("fields = %v", payload.Fields)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	router := newCheckoutRouter(&stubOrderService{submitErr: services.ErrEmptyCart})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(checkoutBody())))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "empty_cart") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestCheckoutValidationFailureListsFields(t *testing.T) {
	router := newCheckoutRouter(&stubOrderService{
		submitErr: &validation.FormError{Fields: []string{"email", "zip"}},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(checkoutBody())))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var payload struct {
		Fields []string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Fields) != 2 {
		t.Fatalf("fields = %v, want the whole batch", payload.Fields)
	}
}

func TestCheckoutCancelledPayment(t *testing.T) {
	router := newCheckoutRouter(&stubOrderService{result: services.SubmissionResult{
		Status:       services.SubmissionCancelled,
		CancelReason: domain.CancelReasonWindowClosed,
	}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(checkoutBody())))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "cancelled" || payload["reason"] != domain.CancelReasonWindowClosed {
		t.Fatalf("payload = %v", payload)
	}
}

func TestCheckoutPersistFailureIsServerError(t *testing.T) {
	router := newCheckoutRouter(&stubOrderService{submitErr: services.ErrOrderPersist})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(checkoutBody())))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "order_persist_failed") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestCheckoutRejectsMalformedBody(t *testing.T) {
	router := newCheckoutRouter(&stubOrderService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader("{not json")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
