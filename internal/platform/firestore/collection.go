package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Doc pairs a decoded entity with its document metadata.
type Doc[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// QueryBuilder customises a collection query before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// Collection wraps typed access to one Firestore collection.
type Collection[T any] struct {
	client *firestore.Client
	name   string
}

// NewCollection binds a typed collection to the provider's client.
func NewCollection[T any](provider *Provider, name string) *Collection[T] {
	return &Collection[T]{
		client: provider.Client(),
		name:   strings.TrimSpace(name),
	}
}

// Add creates a document with an auto-generated ID and returns it.
func (c *Collection[T]) Add(ctx context.Context, value T) (string, error) {
	ref, _, err := c.client.Collection(c.name).Add(ctx, value)
	if err != nil {
		return "", WrapError(c.op("add"), err)
	}
	return ref.ID, nil
}

// Set upserts the document under the given ID.
func (c *Collection[T]) Set(ctx context.Context, id string, value T) error {
	ref, err := c.ref(id)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, value); err != nil {
		return WrapError(c.op("set"), err)
	}
	return nil
}

// Get fetches and decodes one document.
func (c *Collection[T]) Get(ctx context.Context, id string) (Doc[T], error) {
	ref, err := c.ref(id)
	if err != nil {
		return Doc[T]{}, err
	}

	snap, err := ref.Get(ctx)
	if err != nil {
		return Doc[T]{}, WrapError(c.op("get"), err)
	}
	return decodeSnapshot[T](snap)
}

// Update applies partial field updates to the document.
func (c *Collection[T]) Update(ctx context.Context, id string, updates []firestore.Update) error {
	ref, err := c.ref(id)
	if err != nil {
		return err
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		return WrapError(c.op("update"), err)
	}
	return nil
}

// Query runs a built query and decodes every matching document.
func (c *Collection[T]) Query(ctx context.Context, build QueryBuilder) ([]Doc[T], error) {
	query := c.client.Collection(c.name).Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var docs []Doc[T]
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		doc, err := decodeSnapshot[T](snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *Collection[T]) ref(id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(c.op("document"), errors.New("document id is required"))
	}
	return c.client.Collection(c.name).Doc(id), nil
}

func (c *Collection[T]) op(action string) string {
	return fmt.Sprintf("%s.%s", c.name, action)
}

func decodeSnapshot[T any](snap *firestore.DocumentSnapshot) (Doc[T], error) {
	var data T
	if err := snap.DataTo(&data); err != nil {
		return Doc[T]{}, fmt.Errorf("firestore: decode document %s: %w", snap.Ref.ID, err)
	}
	return Doc[T]{
		ID:         snap.Ref.ID,
		Data:       data,
		CreateTime: snap.CreateTime,
		UpdateTime: snap.UpdateTime,
	}, nil
}
