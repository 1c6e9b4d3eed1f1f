package repositories

import (
	"context"
	"time"

	"github.com/create-my-art/api/internal/domain"
)

// MailMessage is the subject/body pair of a queued email.
type MailMessage struct {
	Subject string `firestore:"subject"`
	HTML    string `firestore:"html"`
}

// MailDocument is the document shape consumed by the email-delivery
// extension watching the mail collection.
type MailDocument struct {
	To      string      `firestore:"to"`
	Message MailMessage `firestore:"message"`
}

// OrderRepository persists orders in the document database.
type OrderRepository interface {
	// Create stores a new order and returns its generated ID.
	Create(ctx context.Context, order domain.Order) (string, error)
	// GetByID fetches one order.
	GetByID(ctx context.Context, id string) (domain.Order, error)
	// UpdateImages attaches the uploaded image records to an existing
	// order.
	UpdateImages(ctx context.Context, id string, images []domain.UploadedImage, at time.Time) error
	// ListByEmail returns a customer's orders, newest first.
	ListByEmail(ctx context.Context, email string) ([]domain.Order, error)
}

// MailRepository enqueues outbound emails.
type MailRepository interface {
	Enqueue(ctx context.Context, doc MailDocument) (string, error)
}

// Registry bundles the repository implementations and their shared
// lifecycle.
type Registry struct {
	Orders OrderRepository
	Mail   MailRepository

	closers []func() error
}

// AddCloser registers a cleanup function invoked by Close.
func (r *Registry) AddCloser(fn func() error) {
	if fn != nil {
		r.closers = append(r.closers, fn)
	}
}

// Close releases the underlying clients in reverse registration order.
func (r *Registry) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
