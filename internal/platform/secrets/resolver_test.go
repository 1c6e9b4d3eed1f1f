package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type stubSecretClient struct {
	accessFn func(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	calls    int
}

func (s *stubSecretClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	s.calls++
	return s.accessFn(ctx, req)
}

func (s *stubSecretClient) Close() error { return nil }

func payload(value string) *secretmanagerpb.AccessSecretVersionResponse {
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}
}

func TestResolvePassesThroughLiterals(t *testing.T) {
	r, err := NewResolver(context.Background(), ResolverConfig{Client: &stubSecretClient{}})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	got, err := r.Resolve(context.Background(), "plain-value")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "plain-value" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveRemoteAndCache(t *testing.T) {
	client := &stubSecretClient{
		accessFn: func(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			want := "projects/art-shop/secrets/paypal-secret/versions/latest"
			if req.Name != want {
				t.Fatalf("resource = %q, want %q", req.Name, want)
			}
			return payload("s3cret"), nil
		},
	}
	r, err := NewResolver(context.Background(), ResolverConfig{ProjectID: "art-shop", Client: client})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := r.Resolve(context.Background(), "secret://paypal-secret")
		if err != nil {
			t.Fatalf("resolve #%d: %v", i, err)
		}
		if got != "s3cret" {
			t.Fatalf("got %q", got)
		}
	}
	if client.calls != 1 {
		t.Fatalf("remote calls = %d, want 1 (cached)", client.calls)
	}
}

func TestResolveFallsBackToLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".secrets.local")
	contents := "# local secrets\npaypal-secret=local-value\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fallback: %v", err)
	}

	client := &stubSecretClient{
		accessFn: func(context.Context, *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			return nil, status.Error(codes.PermissionDenied, "denied")
		},
	}
	r, err := NewResolver(context.Background(), ResolverConfig{
		ProjectID:    "art-shop",
		Client:       client,
		FallbackPath: path,
	})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	got, err := r.Resolve(context.Background(), "secret://paypal-secret")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "local-value" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveHardErrorDoesNotFallBack(t *testing.T) {
	client := &stubSecretClient{
		accessFn: func(context.Context, *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			return nil, status.Error(codes.InvalidArgument, "bad request")
		},
	}
	r, err := NewResolver(context.Background(), ResolverConfig{ProjectID: "art-shop", Client: client})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	if _, err := r.Resolve(context.Background(), "secret://paypal-secret"); err == nil {
		t.Fatal("expected error")
	}
}
