package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/create-my-art/api/internal/cart"
	"github.com/create-my-art/api/internal/domain"
	"github.com/create-my-art/api/internal/payments"
	"github.com/create-my-art/api/internal/platform/config"
	platformfs "github.com/create-my-art/api/internal/platform/firestore"
	"github.com/create-my-art/api/internal/platform/jobs"
	"github.com/create-my-art/api/internal/platform/localstore"
	"github.com/create-my-art/api/internal/platform/observability"
	platformstorage "github.com/create-my-art/api/internal/platform/storage"
	"github.com/create-my-art/api/internal/repositories"
	firestorerepo "github.com/create-my-art/api/internal/repositories/firestore"
	"github.com/create-my-art/api/internal/services"
	"github.com/create-my-art/api/internal/validation"
)

// defaultPromptTerms is the bundled banned-term list applied to generation
// prompts. Deployments extend it via the checker's Load.
var defaultPromptTerms = validation.StaticTermSource{
	Words: []string{
		"nazi", "hitler", "hakenkreuz", "kinderporno",
	},
	Phrases: []string{
		"child porn",
	},
}

// Container wires the storefront's stores, gateways, repositories, and
// services for runtime use. Construct it once at startup and Close it on
// shutdown; everything in between borrows from it.
type Container struct {
	Config config.Config
	Logger *zap.Logger

	Cart         *cart.Store
	Payments     *payments.Manager
	Surface      *payments.Surface
	Repositories *repositories.Registry
	Orders       services.OrderService
	Generation   services.GenerationService
	Broadcaster  *jobs.Broadcaster

	firestore *platformfs.Provider
	closers   []func() error
}

// NewContainer assembles the runtime dependencies from the loaded
// configuration. Construction is eager: a misconfigured backend fails the
// process here rather than at the first checkout.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Container{Config: cfg, Logger: logger}
	if err := c.build(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context) error {
	cfg := c.Config

	device, err := localstore.Open(cfg.Device.Path)
	if err != nil {
		return fmt.Errorf("di: open device store: %w", err)
	}

	cartStore, err := cart.NewStore(cart.StoreDeps{Device: device})
	if err != nil {
		return fmt.Errorf("di: build cart store: %w", err)
	}
	c.Cart = cartStore

	eventLog := observability.EventLogger(c.Logger)

	manager := payments.NewManager()
	if cfg.PayPal.Enabled() {
		provider, err := payments.NewPayPalProvider(payments.PayPalProviderConfig{
			ClientID: cfg.PayPal.ClientID,
			Secret:   cfg.PayPal.Secret,
			Live:     cfg.PayPal.Live,
			Logger:   eventLog,
		})
		if err != nil {
			return fmt.Errorf("di: build paypal provider: %w", err)
		}
		// Card payments render on the PayPal surface too, so both methods
		// share the registration.
		if err := manager.Register(provider, domain.PaymentMethodPayPal, domain.PaymentMethodCard); err != nil {
			return fmt.Errorf("di: register paypal provider: %w", err)
		}
	} else {
		c.Logger.Warn("paypal client id not configured; checkout is unavailable")
	}
	c.Payments = manager
	c.Surface = payments.NewSurface(payments.SurfaceDeps{Logger: eventLog})

	provider, err := platformfs.New(ctx, platformfs.Config{
		ProjectID:  cfg.Project.ID,
		DatabaseID: cfg.Project.FirestoreDatabaseID,
	})
	if err != nil {
		return fmt.Errorf("di: connect firestore: %w", err)
	}
	c.firestore = provider

	registry := &repositories.Registry{
		Orders: firestorerepo.NewOrderRepository(provider),
		Mail:   firestorerepo.NewMailRepository(provider, cfg.Mail.Collection),
	}
	registry.AddCloser(provider.Close)
	c.Repositories = registry
	c.closers = append(c.closers, registry.Close)

	uploader, err := c.buildUploader(ctx, cfg)
	if err != nil {
		return err
	}

	var publisher *jobs.PubSubOrderPublisher
	if cfg.Events.TopicID != "" {
		client, err := pubsub.NewClient(ctx, cfg.Project.ID)
		if err != nil {
			return fmt.Errorf("di: connect pubsub: %w", err)
		}
		c.closers = append(c.closers, client.Close)
		publisher, err = jobs.NewPubSubOrderPublisher(client.Topic(cfg.Events.TopicID))
		if err != nil {
			return fmt.Errorf("di: build order publisher: %w", err)
		}
	}
	c.Broadcaster = jobs.NewBroadcaster(publisher)

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Cart:        cartStore,
		Payments:    manager,
		Surface:     c.Surface,
		Orders:      registry.Orders,
		Mail:        registry.Mail,
		Uploader:    uploader,
		MailBuilder: services.NewMailBuilder(cfg.Mail.AdminEmail, time.Now),
		Events:      c.Broadcaster,
		Logger:      eventLog,
	})
	if err != nil {
		return fmt.Errorf("di: build order service: %w", err)
	}
	c.Orders = orders

	prompts := validation.NewPromptChecker()
	if err := prompts.Load(ctx, defaultPromptTerms); err != nil {
		return fmt.Errorf("di: load prompt terms: %w", err)
	}

	generation, err := services.NewGenerationService(services.GenerationServiceDeps{
		APIKey:       cfg.Generation.RunwareAPIKey,
		Endpoint:     cfg.Generation.Endpoint,
		Device:       device,
		DailyQuota:   cfg.Generation.DailyQuota,
		HistoryLimit: cfg.Generation.HistoryLimit,
		Prompts:      prompts,
		Logger:       eventLog,
	})
	if err != nil {
		return fmt.Errorf("di: build generation service: %w", err)
	}
	c.Generation = generation

	return nil
}

// buildUploader assembles the order image uploader. Without a bucket the
// uploader stays nil and the submission flow skips image persistence, which
// the partial-success policy tolerates.
func (c *Container) buildUploader(ctx context.Context, cfg config.Config) (services.ImageUploader, error) {
	if cfg.Storage.Bucket == "" {
		c.Logger.Warn("storage bucket not configured; order images will not be archived")
		return nil, nil
	}

	client, err := cloudstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("di: connect cloud storage: %w", err)
	}
	c.closers = append(c.closers, client.Close)

	var signer *platformstorage.URLSigner
	if cfg.Storage.ServiceAccountKeyPath != "" {
		signer, err = platformstorage.NewURLSignerFromFile(cfg.Storage.Bucket, cfg.Storage.ServiceAccountKeyPath)
		if err != nil {
			return nil, fmt.Errorf("di: load storage signer key: %w", err)
		}
	}

	uploader, err := platformstorage.NewUploader(platformstorage.UploaderConfig{
		Objects: platformstorage.BucketWriter{Bucket: client.Bucket(cfg.Storage.Bucket)},
		Signer:  signer,
		URLTTL:  cfg.Storage.SignedURLTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("di: build uploader: %w", err)
	}
	return uploader, nil
}

// Ready probes the document database, for the readiness endpoint.
func (c *Container) Ready() error {
	if c == nil || c.firestore == nil {
		return errors.New("firestore not initialised")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	iter := c.firestore.Client().Collections(ctx)
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore: %w", err)
	}
	return nil
}

// Close releases the owned clients in reverse construction order.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
