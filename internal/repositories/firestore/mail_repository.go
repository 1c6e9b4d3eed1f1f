package firestore

import (
	"context"
	"fmt"
	"strings"

	platformfs "github.com/create-my-art/api/internal/platform/firestore"
	"github.com/create-my-art/api/internal/repositories"
)

const defaultMailCollection = "mail"

// MailRepository writes email documents into the collection watched by the
// delivery extension. Writing the document is the send.
type MailRepository struct {
	mail *platformfs.Collection[repositories.MailDocument]
}

// NewMailRepository binds the repository to the shared provider. An empty
// collection name selects the default mail collection.
func NewMailRepository(provider *platformfs.Provider, collection string) *MailRepository {
	if strings.TrimSpace(collection) == "" {
		collection = defaultMailCollection
	}
	return &MailRepository{
		mail: platformfs.NewCollection[repositories.MailDocument](provider, collection),
	}
}

// Enqueue stores the email document and returns its generated ID.
func (r *MailRepository) Enqueue(ctx context.Context, doc repositories.MailDocument) (string, error) {
	id, err := r.mail.Add(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("enqueue mail to %s: %w", doc.To, err)
	}
	return id, nil
}
