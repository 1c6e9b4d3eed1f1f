package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultFallbackPath = ".secrets.local"

// secretManagerClient is the slice of the Secret Manager SDK the resolver
// uses, extracted for test stubbing.
type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Resolver turns secret:// references into values. Remote lookups go to
// Google Secret Manager and are cached for the process lifetime; when the
// service is unreachable or unauthorised, a local .secrets.local file serves
// as the development fallback.
type Resolver struct {
	client     secretManagerClient
	ownsClient bool
	logger     *zap.Logger
	projectID  string

	fallbackPath string
	fallbackOnce sync.Once
	fallbackVals map[string]string

	mu    sync.RWMutex
	cache map[string]string
}

// ResolverConfig configures the resolver.
type ResolverConfig struct {
	// ProjectID hosts the secrets unless a reference overrides it with
	// ?project=.
	ProjectID string
	Logger    *zap.Logger
	// FallbackPath points at the local key=value secrets file. Defaults to
	// .secrets.local in the working directory.
	FallbackPath string
	// Client overrides the SDK client, for tests.
	Client        secretManagerClient
	ClientOptions []option.ClientOption
}

// NewResolver builds the resolver. An unreachable Secret Manager is not
// fatal; the resolver then serves fallback values only.
func NewResolver(ctx context.Context, cfg ResolverConfig) (*Resolver, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fallbackPath := strings.TrimSpace(cfg.FallbackPath)
	if fallbackPath == "" {
		fallbackPath = defaultFallbackPath
	}

	r := &Resolver{
		logger:       logger,
		projectID:    strings.TrimSpace(cfg.ProjectID),
		fallbackPath: fallbackPath,
		cache:        make(map[string]string),
	}

	if cfg.Client != nil {
		r.client = cfg.Client
	} else {
		client, err := secretmanager.NewClient(ctx, cfg.ClientOptions...)
		if err != nil {
			logger.Warn("secrets: secret manager unavailable, using fallback file only", zap.Error(err))
		} else {
			r.client = client
			r.ownsClient = true
		}
	}
	return r, nil
}

// Close releases the SDK client when the resolver owns it.
func (r *Resolver) Close() error {
	if r.ownsClient && r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Resolve returns the value for a secret:// reference. Plain values pass
// through unchanged so configuration can mix literals and references.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	if !IsReference(ref) {
		return ref, nil
	}

	name, version, project, err := parseReference(ref)
	if err != nil {
		return "", err
	}
	if project == "" {
		project = r.projectID
	}

	key := name + "#" + version
	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if r.client != nil && project != "" {
		resource := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, name, version)
		resp, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
		switch {
		case err == nil && resp.GetPayload() != nil:
			value := string(resp.GetPayload().GetData())
			r.mu.Lock()
			r.cache[key] = value
			r.mu.Unlock()
			return value, nil
		case err != nil && !fallbackEligible(err):
			return "", fmt.Errorf("secrets: access %s: %w", resource, err)
		default:
			r.logger.Debug("secrets: falling back to local file", zap.String("secret", name), zap.Error(err))
		}
	}

	if value, ok := r.lookupFallback(name); ok {
		r.mu.Lock()
		r.cache[key] = value
		r.mu.Unlock()
		return value, nil
	}
	return "", fmt.Errorf("secrets: no value for %s", name)
}

// IsReference reports whether the value is a secret:// reference.
func IsReference(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), "secret://")
}

func parseReference(ref string) (name, version, project string, err error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", "", "", fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	name = strings.Trim(u.Host+u.Path, "/")
	if name == "" {
		return "", "", "", errors.New("secrets: reference missing secret name")
	}
	version = strings.TrimSpace(u.Query().Get("version"))
	if version == "" {
		version = "latest"
	}
	project = strings.TrimSpace(u.Query().Get("project"))
	return name, version, project, nil
}

func (r *Resolver) lookupFallback(name string) (string, bool) {
	r.fallbackOnce.Do(func() {
		r.fallbackVals = loadFallbackFile(r.fallbackPath, r.logger)
	})
	value, ok := r.fallbackVals[name]
	return value, ok
}

// loadFallbackFile parses a key=value file, ignoring blanks and # comments.
func loadFallbackFile(path string, logger *zap.Logger) map[string]string {
	values := make(map[string]string)

	file, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("secrets: cannot read fallback file", zap.String("path", path), zap.Error(err))
		}
		return values
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(key), "secret://"))
		if key != "" {
			values[key] = strings.TrimSpace(value)
		}
	}
	return values
}

func fallbackEligible(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded, codes.NotFound:
		return true
	default:
		return false
	}
}
