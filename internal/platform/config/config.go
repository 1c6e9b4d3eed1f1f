package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SecretResolver resolves secret:// references found in configuration
// values. Plain values pass through unchanged.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// ValidationError lists every missing or invalid configuration field at
// once, so a misconfigured deployment reports all problems in one run.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid fields: %s", strings.Join(e.Fields, ", "))
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ProjectConfig identifies the Google Cloud project backing persistence.
type ProjectConfig struct {
	ID                  string
	FirestoreDatabaseID string
}

// StorageConfig holds the order image bucket settings.
type StorageConfig struct {
	Bucket                string
	ServiceAccountKeyPath string
	SignedURLTTL          time.Duration
}

// PayPalConfig holds the payment gateway credentials. Secret may be a
// secret:// reference.
type PayPalConfig struct {
	ClientID string
	Secret   string
	Live     bool
}

// Enabled reports whether payments can be offered at all. Without a client
// ID the storefront renders checkout as unavailable instead of failing.
func (p PayPalConfig) Enabled() bool {
	return strings.TrimSpace(p.ClientID) != ""
}

// GenerationConfig drives the image generation proxy and its daily quota.
type GenerationConfig struct {
	RunwareAPIKey string
	Endpoint      string
	DailyQuota    int
	HistoryLimit  int
}

// MailConfig names the mail collection consumed by the email-delivery
// extension and the admin recipient for new-order notifications.
type MailConfig struct {
	Collection string
	AdminEmail string
}

// EventsConfig names the optional Pub/Sub topic for order-completed events.
type EventsConfig struct {
	TopicID string
}

// DeviceConfig locates the device store file for cart, quota, and history.
type DeviceConfig struct {
	Path string
}

// FirebaseWebConfig is the public client configuration served by the env
// endpoint. None of these values are secret.
type FirebaseWebConfig struct {
	APIKey            string
	AuthDomain        string
	ProjectID         string
	StorageBucket     string
	MessagingSenderID string
	AppID             string
	MeasurementID     string
}

// Config is the full runtime configuration tree.
type Config struct {
	Server     ServerConfig
	Project    ProjectConfig
	Storage    StorageConfig
	PayPal     PayPalConfig
	Generation GenerationConfig
	Mail       MailConfig
	Events     EventsConfig
	Device     DeviceConfig
	Firebase   FirebaseWebConfig
}

const (
	defaultPort            = 8080
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 20 * time.Second
	defaultSignedURLTTL    = 7 * 24 * time.Hour
	defaultMailCollection  = "mail"
	defaultAdminEmail      = "kontakt@create-my-art.de"
	defaultDailyQuota      = 30
	defaultHistoryLimit    = 50
	defaultRunwareEndpoint = "https://api.runware.ai/v1"
	defaultDevicePath      = ".createmyart/device.json"
)

// Load reads configuration from the environment, resolves secret
// references, and validates required fields. All env vars use the APP_
// prefix.
func Load(ctx context.Context, resolver SecretResolver) (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:            env("APP_SERVER_HOST", ""),
			Port:            envInt("APP_SERVER_PORT", defaultPort),
			ReadTimeout:     envDuration("APP_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    envDuration("APP_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			ShutdownTimeout: envDuration("APP_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Project: ProjectConfig{
			ID:                  env("APP_PROJECT_ID", ""),
			FirestoreDatabaseID: env("APP_FIRESTORE_DATABASE", ""),
		},
		Storage: StorageConfig{
			Bucket:                env("APP_STORAGE_BUCKET", ""),
			ServiceAccountKeyPath: env("APP_STORAGE_SIGNER_KEY_FILE", ""),
			SignedURLTTL:          envDuration("APP_STORAGE_URL_TTL", defaultSignedURLTTL),
		},
		PayPal: PayPalConfig{
			ClientID: env("PAYPAL_CLIENT_ID", ""),
			Secret:   env("PAYPAL_SECRET", ""),
			Live:     envBool("PAYPAL_LIVE", false),
		},
		Generation: GenerationConfig{
			RunwareAPIKey: env("RUNWARE_API_KEY", ""),
			Endpoint:      env("RUNWARE_ENDPOINT", defaultRunwareEndpoint),
			DailyQuota:    envInt("APP_GENERATION_DAILY_QUOTA", defaultDailyQuota),
			HistoryLimit:  envInt("APP_GENERATION_HISTORY_LIMIT", defaultHistoryLimit),
		},
		Mail: MailConfig{
			Collection: env("APP_MAIL_COLLECTION", defaultMailCollection),
			AdminEmail: env("ADMIN_EMAIL", defaultAdminEmail),
		},
		Events: EventsConfig{
			TopicID: env("APP_EVENTS_TOPIC", ""),
		},
		Device: DeviceConfig{
			Path: env("APP_DEVICE_STORE_PATH", defaultDevicePath),
		},
		Firebase: FirebaseWebConfig{
			APIKey:            env("FIREBASE_API_KEY", ""),
			AuthDomain:        env("FIREBASE_AUTH_DOMAIN", ""),
			ProjectID:         env("FIREBASE_PROJECT_ID", ""),
			StorageBucket:     env("FIREBASE_STORAGE_BUCKET", ""),
			MessagingSenderID: env("FIREBASE_MESSAGING_SENDER_ID", ""),
			AppID:             env("FIREBASE_APP_ID", ""),
			MeasurementID:     env("FIREBASE_MEASUREMENT_ID", ""),
		},
	}

	if resolver != nil {
		for _, field := range []*string{&cfg.PayPal.Secret, &cfg.Generation.RunwareAPIKey} {
			resolved, err := resolver.Resolve(ctx, *field)
			if err != nil {
				return Config{}, fmt.Errorf("config: resolve secret: %w", err)
			}
			*field = resolved
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var fields []string

	if strings.TrimSpace(c.Project.ID) == "" {
		fields = append(fields, "APP_PROJECT_ID")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		fields = append(fields, "APP_SERVER_PORT")
	}
	if c.PayPal.Enabled() && strings.TrimSpace(c.PayPal.Secret) == "" {
		fields = append(fields, "PAYPAL_SECRET")
	}
	if c.Generation.DailyQuota <= 0 {
		fields = append(fields, "APP_GENERATION_DAILY_QUOTA")
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func env(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
