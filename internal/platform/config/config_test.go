package config

import (
	"context"
	"errors"
	"testing"
)

type stubResolver struct {
	values map[string]string
}

func (s stubResolver) Resolve(_ context.Context, ref string) (string, error) {
	if v, ok := s.values[ref]; ok {
		return v, nil
	}
	return ref, nil
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PROJECT_ID", "art-shop")

	cfg, err := Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.Mail.AdminEmail != "kontakt@create-my-art.de" {
		t.Fatalf("admin email = %q", cfg.Mail.AdminEmail)
	}
	if cfg.Mail.Collection != "mail" {
		t.Fatalf("mail collection = %q", cfg.Mail.Collection)
	}
	if cfg.Generation.DailyQuota != 30 {
		t.Fatalf("daily quota = %d", cfg.Generation.DailyQuota)
	}
	if cfg.PayPal.Enabled() {
		t.Fatal("paypal should be disabled without client id")
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	t.Setenv("APP_PROJECT_ID", "art-shop")
	t.Setenv("PAYPAL_CLIENT_ID", "client-1")
	t.Setenv("PAYPAL_SECRET", "secret://paypal-secret")

	resolver := stubResolver{values: map[string]string{"secret://paypal-secret": "resolved"}}
	cfg, err := Load(context.Background(), resolver)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PayPal.Secret != "resolved" {
		t.Fatalf("secret = %q", cfg.PayPal.Secret)
	}
}

func TestLoadCollectsAllValidationFailures(t *testing.T) {
	t.Setenv("APP_PROJECT_ID", "")
	t.Setenv("APP_SERVER_PORT", "-1")
	t.Setenv("PAYPAL_CLIENT_ID", "client-1")
	t.Setenv("PAYPAL_SECRET", "")

	_, err := Load(context.Background(), nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 3 {
		t.Fatalf("fields = %v", verr.Fields)
	}
}
