package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

// Config selects the Firestore database the provider connects to.
type Config struct {
	ProjectID  string
	DatabaseID string
	// ClientOptions are forwarded to the SDK, typically credentials or an
	// emulator endpoint.
	ClientOptions []option.ClientOption
}

// Provider owns the Firestore client with an explicit lifecycle: construct
// it once at startup, Close it on shutdown. No lazy initialisation, no
// package-level state.
type Provider struct {
	client *firestore.Client
}

// New connects to Firestore eagerly so a misconfigured database fails the
// process at startup instead of at the first order.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, errors.New("firestore: project id is required")
	}

	databaseID := strings.TrimSpace(cfg.DatabaseID)
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, cfg.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("firestore: connect %s/%s: %w", projectID, databaseID, err)
	}
	return &Provider{client: client}, nil
}

// Client returns the underlying SDK client.
func (p *Provider) Client() *firestore.Client {
	return p.client
}

// Close releases the client connection.
func (p *Provider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
