package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/create-my-art/api/internal/cart"
	"github.com/create-my-art/api/internal/domain"
	"github.com/create-my-art/api/internal/payments"
	"github.com/create-my-art/api/internal/repositories"
	"github.com/create-my-art/api/internal/validation"
)

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) CreateOrder(context.Context, payments.OrderRequest) (string, error) {
	return "PAYPAL-1", nil
}

func (stubProvider) Capture(context.Context, string) (domain.PaymentResult, error) {
	return domain.SuccessResult("PAYPAL-1", "CAP-1", "", "", 0, nil), nil
}

type stubSurface struct {
	beginCalls   int
	beginErr     error
	lastRequest  payments.OrderRequest
	result       domain.PaymentResult
	resolveErr   error
	resolveCalls int
}

func (s *stubSurface) Begin(_ context.Context, _ payments.Provider, req payments.OrderRequest) (string, error) {
	s.beginCalls++
	s.lastRequest = req
	if s.beginErr != nil {
		return "", s.beginErr
	}
	return "PAYPAL-1", nil
}

func (s *stubSurface) Resolve(context.Context, string) (domain.PaymentResult, error) {
	s.resolveCalls++
	return s.result, s.resolveErr
}

type stubOrderRepo struct {
	createID      string
	createErr     error
	created       []domain.Order
	updatedImages []domain.UploadedImage
	updateErr     error
	updateCalls   int
	listed        []domain.Order
}

func (r *stubOrderRepo) Create(_ context.Context, order domain.Order) (string, error) {
	if r.createErr != nil {
		return "", r.createErr
	}
	r.created = append(r.created, order)
	return r.createID, nil
}

func (r *stubOrderRepo) GetByID(context.Context, string) (domain.Order, error) {
	return domain.Order{}, repositories.ErrOrderNotFound
}

func (r *stubOrderRepo) UpdateImages(_ context.Context, _ string, images []domain.UploadedImage, _ time.Time) error {
	r.updateCalls++
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updatedImages = images
	return nil
}

func (r *stubOrderRepo) ListByEmail(context.Context, string) ([]domain.Order, error) {
	return r.listed, nil
}

type stubMailRepo struct {
	docs []repositories.MailDocument
	err  error
}

func (r *stubMailRepo) Enqueue(_ context.Context, doc repositories.MailDocument) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.docs = append(r.docs, doc)
	return "mail-1", nil
}

type stubUploader struct {
	fail map[string]bool
}

func (u *stubUploader) UploadOrderImage(_ context.Context, orderID, sizeCode, source string) (string, string, error) {
	if u.fail[source] {
		return "", "", errors.New("upload failed")
	}
	return "https://cdn.example.com/" + orderID + "/" + sizeCode, "orders/" + orderID + "/img.jpg", nil
}

type stubPublisher struct {
	events []OrderCompletedEvent
}

func (p *stubPublisher) PublishOrderCompleted(_ context.Context, event OrderCompletedEvent) error {
	p.events = append(p.events, event)
	return nil
}

func submission(customer domain.Customer) SubmissionForm {
	return SubmissionForm{
		Customer:      customer,
		PaymentMethod: domain.PaymentMethodPayPal,
		TermsAccepted: true,
	}
}

func validCustomer() domain.Customer {
	return domain.Customer{
		FirstName:   "Anna",
		LastName:    "Muster",
		Email:       "anna@example.com",
		Street:      "Musterweg",
		HouseNumber: "12",
		ZIP:         "12345",
		City:        "Berlin",
	}
}

func newTestCart(t *testing.T, items ...domain.CartItem) *cart.Store {
	t.Helper()
	store, err := cart.NewStore(cart.StoreDeps{Clock: func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	}})
	if err != nil {
		t.Fatalf("new cart: %v", err)
	}
	for _, item := range items {
		if _, err := store.Add(item); err != nil {
			t.Fatalf("add item: %v", err)
		}
	}
	return store
}

func newTestService(t *testing.T, deps OrderServiceDeps) OrderService {
	t.Helper()
	if deps.Payments == nil {
		manager := payments.NewManager()
		if err := manager.Register(stubProvider{}, domain.PaymentMethodPayPal, domain.PaymentMethodCard); err != nil {
			t.Fatalf("register provider: %v", err)
		}
		deps.Payments = manager
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time {
			return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
		}
	}
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	return svc
}

func TestSubmitEmptyCartNeverCallsPayment(t *testing.T) {
	surface := &stubSurface{}
	svc := newTestService(t, OrderServiceDeps{
		Cart:    newTestCart(t),
		Surface: surface,
		Orders:  &stubOrderRepo{createID: "order-1"},
		Mail:    &stubMailRepo{},
	})

	_, err := svc.Submit(context.Background(), submission(validCustomer()))
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("err = %v, want ErrEmptyCart", err)
	}
	if surface.beginCalls != 0 {
		t.Fatalf("payment surface called %d times for empty cart", surface.beginCalls)
	}
}

func TestSubmitCollectsAllFieldFailures(t *testing.T) {
	svc := newTestService(t, OrderServiceDeps{
		Cart:    newTestCart(t, domain.CartItem{Size: domain.Size50x70, ImageURL: "https://img.example.com/a.jpg"}),
		Surface: &stubSurface{},
		Orders:  &stubOrderRepo{createID: "order-1"},
		Mail:    &stubMailRepo{},
	})

	customer := validCustomer()
	customer.FirstName = ""
	customer.Email = "not-an-email"
	customer.ZIP = "12"

	_, err := svc.Submit(context.Background(), submission(customer))
	var formErr *validation.FormError
	if !errors.As(err, &formErr) {
		t.Fatalf("err = %v, want FormError", err)
	}
	if len(formErr.Fields) != 3 {
		t.Fatalf("fields = %v, want 3 failures in one batch", formErr.Fields)
	}
}

func TestSubmitRejectsMissingConsentMethodAndSize(t *testing.T) {
	surface := &stubSurface{}
	svc := newTestService(t, OrderServiceDeps{
		Cart:    newTestCart(t, domain.CartItem{ID: "item-1", ImageURL: "https://img.example.com/a.jpg"}),
		Surface: surface,
		Orders:  &stubOrderRepo{createID: "order-1"},
		Mail:    &stubMailRepo{},
	})

	customer := validCustomer()
	customer.Email = "not-an-email"

	_, err := svc.Submit(context.Background(), SubmissionForm{Customer: customer})
	var formErr *validation.FormError
	if !errors.As(err, &formErr) {
		t.Fatalf("err = %v, want FormError", err)
	}
	want := map[string]bool{"email": true, "terms": true, "paymentMethod": true, "size": true}
	if len(formErr.Fields) != len(want) {
		t.Fatalf("fields = %v", formErr.Fields)
	}
	for _, f := range formErr.Fields {
		if !want[f] {
			t.Fatalf("unexpected field %q in %v", f, formErr.Fields)
		}
	}
	if surface.beginCalls != 0 {
		t.Fatalf("payment surface called %d times for invalid form", surface.beginCalls)
	}
}

func TestSubmitMissingMethodIsFormFailureNotUnsupported(t *testing.T) {
	svc := newTestService(t, OrderServiceDeps{
		Cart:    newTestCart(t, domain.CartItem{Size: domain.Size50x70, ImageURL: "https://img.example.com/a.jpg"}),
		Surface: &stubSurface{},
		Orders:  &stubOrderRepo{createID: "order-1"},
		Mail:    &stubMailRepo{},
	})

	form := submission(validCustomer())
	form.PaymentMethod = ""

	_, err := svc.Submit(context.Background(), form)
	if errors.Is(err, ErrUnsupportedPayment) {
		t.Fatalf("missing method must be a form failure, got %v", err)
	}
	var formErr *validation.FormError
	if !errors.As(err, &formErr) {
		t.Fatalf("err = %v, want FormError", err)
	}
	if len(formErr.Fields) != 1 || formErr.Fields[0] != "paymentMethod" {
		t.Fatalf("fields = %v, want paymentMethod", formErr.Fields)
	}
}

func TestSubmitCancelledLeavesCartUntouched(t *testing.T) {
	cartStore := newTestCart(t, domain.CartItem{Size: domain.Size50x70, ImageURL: "https://img.example.com/a.jpg"})
	orders := &stubOrderRepo{createID: "order-1"}
	svc := newTestService(t, OrderServiceDeps{
		Cart:    cartStore,
		Surface: &stubSurface{result: domain.CancelledResult(domain.CancelReasonWindowClosed)},
		Orders:  orders,
		Mail:    &stubMailRepo{},
	})

	result, err := svc.Submit(context.Background(), submission(validCustomer()))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Status != SubmissionCancelled {
		t.Fatalf("status = %s", result.Status)
	}
	if result.CancelReason != domain.CancelReasonWindowClosed {
		t.Fatalf("reason = %s", result.CancelReason)
	}
	if len(orders.created) != 0 {
		t.Fatal("cancelled payment must not create an order")
	}
	if cartStore.IsEmpty() {
		t.Fatal("cancelled payment must leave the cart untouched")
	}
}

func TestSubmitPaymentFailureIsRecoverable(t *testing.T) {
	cartStore := newTestCart(t, domain.CartItem{Size: domain.Size50x70, ImageURL: "https://img.example.com/a.jpg"})
	svc := newTestService(t, OrderServiceDeps{
		Cart:    cartStore,
		Surface: &stubSurface{result: domain.FailedResult(errors.New("declined"))},
		Orders:  &stubOrderRepo{createID: "order-1"},
		Mail:    &stubMailRepo{},
	})

	result, err := svc.Submit(context.Background(), submission(validCustomer()))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Status != SubmissionPaymentFailed {
		t.Fatalf("status = %s", result.Status)
	}
	if cartStore.IsEmpty() {
		t.Fatal("failed payment must leave the cart untouched")
	}
}

func TestSubmitPersistFailureAfterCaptureIsFatal(t *testing.T) {
	cartStore := newTestCart(t, domain.CartItem{Size: domain.Size50x70, ImageURL: "https://img.example.com/a.jpg"})
	svc := newTestService(t, OrderServiceDeps{
		Cart:    cartStore,
		Surface: &stubSurface{result: domain.SuccessResult("PAYPAL-1", "CAP-7", "payer@example.com", "Anna Muster", 3370, nil)},
		Orders:  &stubOrderRepo{createErr: errors.New("firestore down")},
		Mail:    &stubMailRepo{},
	})

	_, err := svc.Submit(context.Background(), submission(validCustomer()))
	if !errors.Is(err, ErrOrderPersist) {
		t.Fatalf("err = %v, want ErrOrderPersist", err)
	}
	if !strings.Contains(err.Error(), "CAP-7") {
		t.Fatalf("error must carry the capture reference: %v", err)
	}
	if cartStore.IsEmpty() {
		t.Fatal("persist failure must preserve the cart for retry")
	}
}

func TestSubmitPartialUploadStillConfirms(t *testing.T) {
	cartStore := newTestCart(t,
		domain.CartItem{Size: domain.Size50x70, ImageURL: "https://img.example.com/good.jpg", Prompt: "ocean"},
		domain.CartItem{Size: domain.SizeA2, ImageURL: "https://img.example.com/bad.jpg"},
	)
	orders := &stubOrderRepo{createID: "order-42"}
	mail := &stubMailRepo{}
	publisher := &stubPublisher{}
	svc := newTestService(t, OrderServiceDeps{
		Cart:     cartStore,
		Surface:  &stubSurface{result: domain.SuccessResult("PAYPAL-1", "CAP-1", "payer@example.com", "Anna Muster", 7150, nil)},
		Orders:   orders,
		Mail:     mail,
		Uploader: &stubUploader{fail: map[string]bool{"https://img.example.com/bad.jpg": true}},
		Events:   publisher,
	})

	result, err := svc.Submit(context.Background(), submission(validCustomer()))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Status != SubmissionConfirmed {
		t.Fatalf("status = %s", result.Status)
	}
	if result.OrderID != "order-42" {
		t.Fatalf("order id = %s", result.OrderID)
	}
	if len(result.Images) != 1 {
		t.Fatalf("images = %d, want the failing upload skipped", len(result.Images))
	}
	if !cartStore.IsEmpty() {
		t.Fatal("cart must be cleared after the order is recorded")
	}
	if orders.updateCalls != 1 || len(orders.updatedImages) != 1 {
		t.Fatalf("image update calls = %d images = %d", orders.updateCalls, len(orders.updatedImages))
	}
	if len(mail.docs) != 2 {
		t.Fatalf("mails = %d, want customer and admin", len(mail.docs))
	}
	if len(publisher.events) != 1 || publisher.events[0].OrderID != "order-42" {
		t.Fatalf("events = %+v", publisher.events)
	}
}

func TestSubmitPersistsPaidOrderWithEmptyImageList(t *testing.T) {
	orders := &stubOrderRepo{createID: "order-9"}
	svc := newTestService(t, OrderServiceDeps{
		Cart:    newTestCart(t, domain.CartItem{Size: domain.Size50x70, ImageURL: "https://img.example.com/a.jpg"}),
		Surface: &stubSurface{result: domain.SuccessResult("PAYPAL-1", "CAP-1", "", "", 3370, nil)},
		Orders:  orders,
		Mail:    &stubMailRepo{},
	})

	if _, err := svc.Submit(context.Background(), submission(validCustomer())); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(orders.created) != 1 {
		t.Fatalf("orders created = %d", len(orders.created))
	}
	created := orders.created[0]
	if created.Status != domain.OrderStatusPaid {
		t.Fatalf("status = %q", created.Status)
	}
	if created.ImageURLs == nil || len(created.ImageURLs) != 0 {
		t.Fatalf("initial image list = %v, want empty non-nil", created.ImageURLs)
	}
	if created.PaymentDetails["captureId"] != "CAP-1" {
		t.Fatalf("payment details = %v", created.PaymentDetails)
	}
	if created.TotalCents != 3370 {
		t.Fatalf("total = %d", created.TotalCents)
	}
}

func TestSubmitMailFailureDoesNotFailSubmission(t *testing.T) {
	svc := newTestService(t, OrderServiceDeps{
		Cart:    newTestCart(t, domain.CartItem{Size: domain.Size50x70, ImageURL: "https://img.example.com/a.jpg"}),
		Surface: &stubSurface{result: domain.SuccessResult("PAYPAL-1", "CAP-1", "", "", 3370, nil)},
		Orders:  &stubOrderRepo{createID: "order-1"},
		Mail:    &stubMailRepo{err: errors.New("mail collection unavailable")},
	})

	result, err := svc.Submit(context.Background(), submission(validCustomer()))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Status != SubmissionConfirmed {
		t.Fatalf("status = %s", result.Status)
	}
}

func TestOrdersByEmailRejectsInvalidEmail(t *testing.T) {
	svc := newTestService(t, OrderServiceDeps{
		Cart:    newTestCart(t),
		Surface: &stubSurface{},
		Orders:  &stubOrderRepo{},
		Mail:    &stubMailRepo{},
	})

	_, err := svc.OrdersByEmail(context.Background(), "not an email")
	var formErr *validation.FormError
	if !errors.As(err, &formErr) {
		t.Fatalf("err = %v, want FormError", err)
	}
}
