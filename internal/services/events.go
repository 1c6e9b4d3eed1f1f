package services

import (
	"context"
	"time"

	"github.com/create-my-art/api/internal/domain"
)

// OrderCompletedEvent is emitted after a submission reaches Confirmed. It
// carries enough of the order snapshot for the presentation layer and any
// downstream consumer to react without re-reading the database.
type OrderCompletedEvent struct {
	OrderID       string                 `json:"orderId"`
	CustomerEmail string                 `json:"customerEmail"`
	TotalCents    int64                  `json:"total"`
	Items         []domain.CartItem      `json:"items"`
	ImageURLs     []string               `json:"imageUrls"`
	ImageDetails  []domain.UploadedImage `json:"imageDetails,omitempty"`
	OccurredAt    time.Time              `json:"occurredAt"`
}

// CompletionPublisher delivers order-completed events. Publishing is
// best-effort; the orchestrator logs failures and moves on.
type CompletionPublisher interface {
	PublishOrderCompleted(ctx context.Context, event OrderCompletedEvent) error
}
