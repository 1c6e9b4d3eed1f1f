package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/create-my-art/api/internal/cart"
	"github.com/create-my-art/api/internal/domain"
	"github.com/create-my-art/api/internal/payments"
	"github.com/create-my-art/api/internal/platform/storage"
	"github.com/create-my-art/api/internal/repositories"
	"github.com/create-my-art/api/internal/validation"
)

var (
	// ErrEmptyCart rejects a submission before any side effect occurs.
	ErrEmptyCart = errors.New("order: cart is empty")
	// ErrUnsupportedPayment indicates no provider serves the chosen method.
	ErrUnsupportedPayment = errors.New("order: unsupported payment method")
	// ErrOrderPersist indicates the paid order could not be written. The
	// payment was captured; the wrapped error and the logged capture reference
	// are what operators need to reconcile manually.
	ErrOrderPersist = errors.New("order: persisting paid order failed")
)

// SubmissionStatus tags the terminal state of one checkout submission.
type SubmissionStatus string

const (
	SubmissionConfirmed     SubmissionStatus = "confirmed"
	SubmissionCancelled     SubmissionStatus = "cancelled"
	SubmissionPaymentFailed SubmissionStatus = "payment_failed"
)

// SubmissionForm is the checkout submission as the storefront sends it. The
// terms checkbox travels with the form because its absence is a validation
// failure, not a transport error.
type SubmissionForm struct {
	Customer      domain.Customer
	PaymentMethod domain.PaymentMethod
	TermsAccepted bool
}

// SubmissionResult reports the outcome of Submit. Cancelled and failed
// payments are modelled outcomes rather than errors: the cart is untouched
// and the user may simply retry.
type SubmissionResult struct {
	Status       SubmissionStatus
	OrderID      string
	Order        domain.Order
	Images       []domain.UploadedImage
	ImageURLs    []string
	CancelReason string
	PaymentErr   error
}

// ImageUploader copies one order image from its source into object storage.
type ImageUploader interface {
	UploadOrderImage(ctx context.Context, orderID, sizeCode, source string) (url string, object string, err error)
}

// paymentSurface is the slice of payments.Surface the orchestrator drives.
type paymentSurface interface {
	Begin(ctx context.Context, provider payments.Provider, req payments.OrderRequest) (string, error)
	Resolve(ctx context.Context, orderID string) (domain.PaymentResult, error)
}

// OrderServiceDeps wires the collaborators of the submission orchestrator.
type OrderServiceDeps struct {
	Cart     *cart.Store
	Payments *payments.Manager
	Surface  paymentSurface
	Orders   repositories.OrderRepository
	Mail     repositories.MailRepository
	// Uploader is optional; without it every image upload is skipped, which
	// the partial-success policy already tolerates.
	Uploader    ImageUploader
	MailBuilder *MailBuilder
	// Events is optional.
	Events CompletionPublisher
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	cart     *cart.Store
	payments *payments.Manager
	surface  paymentSurface
	orders   repositories.OrderRepository
	mail     repositories.MailRepository
	uploader ImageUploader
	builder  *MailBuilder
	events   CompletionPublisher
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// OrderService runs the checkout submission flow and order queries.
type OrderService interface {
	Submit(ctx context.Context, form SubmissionForm) (SubmissionResult, error)
	OrdersByEmail(ctx context.Context, email string) ([]domain.Order, error)
}

// NewOrderService validates the required dependencies and builds the service.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Cart == nil {
		return nil, errors.New("order service: cart store is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("order service: payment manager is required")
	}
	if deps.Surface == nil {
		return nil, errors.New("order service: payment surface is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Mail == nil {
		return nil, errors.New("order service: mail repository is required")
	}

	builder := deps.MailBuilder
	if builder == nil {
		builder = NewMailBuilder("", deps.Clock)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		cart:     deps.Cart,
		payments: deps.Payments,
		surface:  deps.Surface,
		orders:   deps.Orders,
		mail:     deps.Mail,
		uploader: deps.Uploader,
		builder:  builder,
		events:   deps.Events,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Submit runs one checkout submission end to end. Payment is the point of no
// return: before it, every rejection is side-effect free; after a capture, the
// order write is the only remaining fatal step, and uploads, the image update,
// emails, and the completion event all degrade silently.
func (s *orderService) Submit(ctx context.Context, form SubmissionForm) (SubmissionResult, error) {
	if s.cart.IsEmpty() {
		return SubmissionResult{}, ErrEmptyCart
	}

	items := s.cart.Items()
	if err := validation.ValidateCheckout(validation.CheckoutForm{
		Customer:      form.Customer,
		PaymentMethod: form.PaymentMethod,
		TermsAccepted: form.TermsAccepted,
		Items:         items,
	}); err != nil {
		return SubmissionResult{}, err
	}
	method := form.PaymentMethod
	if !method.Valid() {
		return SubmissionResult{}, fmt.Errorf("%w: %s", ErrUnsupportedPayment, method)
	}
	provider, err := s.payments.Resolve(method)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("%w: %s", ErrUnsupportedPayment, method)
	}

	total := s.cart.TotalCents()

	result, err := s.pay(ctx, provider, items, total)
	if err != nil {
		s.logger(ctx, "checkout.payment.error", map[string]any{"error": err.Error()})
		return SubmissionResult{Status: SubmissionPaymentFailed, PaymentErr: err}, nil
	}
	switch {
	case result.Cancelled():
		s.logger(ctx, "checkout.payment.cancelled", map[string]any{"reason": result.Reason})
		return SubmissionResult{Status: SubmissionCancelled, CancelReason: result.Reason}, nil
	case result.Failed():
		s.logger(ctx, "checkout.payment.failed", map[string]any{"error": errString(result.Err)})
		return SubmissionResult{Status: SubmissionPaymentFailed, PaymentErr: result.Err}, nil
	}

	now := s.now()
	order := domain.Order{
		Customer:       form.Customer,
		Items:          items,
		TotalCents:     total,
		PaymentMethod:  method,
		PaymentDetails: paymentDetails(result),
		Status:         domain.OrderStatusPaid,
		ImageURLs:      []string{},
		CreatedAt:      now,
	}

	orderID, err := s.orders.Create(ctx, order)
	if err != nil {
		s.logger(ctx, "checkout.persist.failed", map[string]any{
			"capture_id": result.CaptureID,
			"error":      err.Error(),
		})
		return SubmissionResult{}, fmt.Errorf("%w (capture %s): %v", ErrOrderPersist, result.CaptureID, err)
	}
	order.ID = orderID
	s.logger(ctx, "checkout.order.created", map[string]any{"order_id": orderID, "total": total})

	images := s.uploadImages(ctx, orderID, items)
	urls := make([]string, 0, len(images))
	for _, img := range images {
		urls = append(urls, img.URL)
	}

	if len(images) > 0 {
		if err := s.orders.UpdateImages(ctx, orderID, images, s.now()); err != nil {
			s.logger(ctx, "checkout.images.update_failed", map[string]any{"order_id": orderID, "error": err.Error()})
		}
	}

	if err := s.cart.Clear(); err != nil {
		s.logger(ctx, "checkout.cart.clear_failed", map[string]any{"order_id": orderID, "error": err.Error()})
	}

	s.sendMails(ctx, orderID, order, images)
	s.publish(ctx, order, urls, images)

	return SubmissionResult{
		Status:    SubmissionConfirmed,
		OrderID:   orderID,
		Order:     order,
		Images:    images,
		ImageURLs: urls,
	}, nil
}

// OrdersByEmail returns a customer's orders, newest first.
func (s *orderService) OrdersByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	email = strings.TrimSpace(email)
	if !validation.Email(email) {
		return nil, &validation.FormError{Fields: []string{"email"}}
	}
	return s.orders.ListByEmail(ctx, email)
}

func (s *orderService) pay(ctx context.Context, provider payments.Provider, items []domain.CartItem, total int64) (domain.PaymentResult, error) {
	req := payments.OrderRequest{TotalCents: total, Currency: "EUR"}
	for _, item := range items {
		price := item.PriceCents
		if price <= 0 {
			price = item.Size.PriceCents()
		}
		req.Lines = append(req.Lines, payments.CheckoutLine{
			Name:      item.DisplayName(),
			SKU:       item.ID,
			Size:      item.Size,
			UnitCents: price,
			Quantity:  1,
		})
	}

	orderID, err := s.surface.Begin(ctx, provider, req)
	if err != nil {
		return domain.PaymentResult{}, err
	}
	return s.surface.Resolve(ctx, orderID)
}

// uploadImages copies each supported cart image into the order bucket. A
// failing upload is logged and skipped; the paid order with missing images
// beats no order at all.
func (s *orderService) uploadImages(ctx context.Context, orderID string, items []domain.CartItem) []domain.UploadedImage {
	if s.uploader == nil {
		return nil
	}

	var images []domain.UploadedImage
	for _, item := range items {
		source := strings.TrimSpace(item.ImageURL)
		if source == "" || !storage.SupportedSource(source) {
			continue
		}
		url, object, err := s.uploader.UploadOrderImage(ctx, orderID, string(item.Size), source)
		if err != nil {
			s.logger(ctx, "checkout.image.upload_failed", map[string]any{
				"order_id": orderID,
				"item_id":  item.ID,
				"error":    err.Error(),
			})
			continue
		}
		images = append(images, domain.UploadedImage{
			URL:         url,
			Path:        object,
			Size:        item.Size,
			ProductName: item.DisplayName(),
			Prompt:      item.Prompt,
			ProductID:   item.ProductID,
			ImageID:     item.ImageID,
			Timestamp:   s.now(),
		})
	}
	return images
}

func (s *orderService) sendMails(ctx context.Context, orderID string, order domain.Order, images []domain.UploadedImage) {
	customerDoc := s.builder.CustomerConfirmation(orderID, order, images)
	if _, err := s.mail.Enqueue(ctx, customerDoc); err != nil {
		s.logger(ctx, "checkout.mail.customer_failed", map[string]any{"order_id": orderID, "error": err.Error()})
	}
	adminDoc := s.builder.AdminNotification(orderID, order, images)
	if _, err := s.mail.Enqueue(ctx, adminDoc); err != nil {
		s.logger(ctx, "checkout.mail.admin_failed", map[string]any{"order_id": orderID, "error": err.Error()})
	}
}

func (s *orderService) publish(ctx context.Context, order domain.Order, urls []string, images []domain.UploadedImage) {
	if s.events == nil {
		return
	}
	event := OrderCompletedEvent{
		OrderID:       order.ID,
		CustomerEmail: order.Customer.Email,
		TotalCents:    order.TotalCents,
		Items:         order.Items,
		ImageURLs:     urls,
		ImageDetails:  images,
		OccurredAt:    s.now(),
	}
	if err := s.events.PublishOrderCompleted(ctx, event); err != nil {
		s.logger(ctx, "checkout.event.publish_failed", map[string]any{"order_id": order.ID, "error": err.Error()})
	}
}

// paymentDetails merges the provider's raw capture payload with the fields
// the order document always records.
func paymentDetails(result domain.PaymentResult) map[string]any {
	details := make(map[string]any, len(result.Raw)+4)
	for k, v := range result.Raw {
		details[k] = v
	}
	details["orderId"] = result.OrderID
	details["captureId"] = result.CaptureID
	if result.PayerEmail != "" {
		details["payerEmail"] = result.PayerEmail
	}
	if result.PayerName != "" {
		details["payerName"] = result.PayerName
	}
	return details
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
