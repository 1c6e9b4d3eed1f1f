package firestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/create-my-art/api/internal/domain"
	platformfs "github.com/create-my-art/api/internal/platform/firestore"
	"github.com/create-my-art/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists orders in the orders collection.
type OrderRepository struct {
	orders *platformfs.Collection[domain.Order]
}

// NewOrderRepository binds the repository to the shared provider.
func NewOrderRepository(provider *platformfs.Provider) *OrderRepository {
	return &OrderRepository{
		orders: platformfs.NewCollection[domain.Order](provider, ordersCollection),
	}
}

// Create stores the order and returns the generated document ID.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (string, error) {
	id, err := r.orders.Add(ctx, order)
	if err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	return id, nil
}

// GetByID fetches one order by its document ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, id)
	if err != nil {
		if platformfs.IsNotFound(err) {
			return domain.Order{}, repositories.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	order := doc.Data
	order.ID = doc.ID
	return order, nil
}

// UpdateImages attaches the uploaded image records to an existing order.
// The flat URL and size lists are derived from the records so the three
// fields never drift apart.
func (r *OrderRepository) UpdateImages(ctx context.Context, id string, images []domain.UploadedImage, at time.Time) error {
	urls := make([]string, 0, len(images))
	sizes := make([]string, 0, len(images))
	for _, img := range images {
		urls = append(urls, img.URL)
		sizes = append(sizes, string(img.Size))
	}

	updates := []firestore.Update{
		{Path: "imageUrls", Value: urls},
		{Path: "imageDetails", Value: images},
		{Path: "posterSizes", Value: sizes},
		{Path: "lastUpdated", Value: at},
	}
	if err := r.orders.Update(ctx, id, updates); err != nil {
		if platformfs.IsNotFound(err) {
			return repositories.ErrOrderNotFound
		}
		return fmt.Errorf("update order images %s: %w", id, err)
	}
	return nil
}

// ListByEmail returns the customer's orders, newest first.
func (r *OrderRepository) ListByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("customer.email", "==", email).OrderBy("timestamp", firestore.Desc)
	})
	if err != nil {
		return nil, fmt.Errorf("list orders for %s: %w", email, err)
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order := doc.Data
		order.ID = doc.ID
		orders = append(orders, order)
	}
	return orders, nil
}
