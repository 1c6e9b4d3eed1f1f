package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// URLSigner produces V4 signed download URLs for uploaded order images, so
// email clients can render the posters without public bucket access.
type URLSigner struct {
	bucket     string
	accessID   string
	privateKey []byte
}

type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// NewURLSignerFromJSON builds a signer from a service account JSON key.
func NewURLSignerFromJSON(bucket string, data []byte) (*URLSigner, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("storage: bucket is required")
	}
	var key serviceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("storage: decode service account json: %w", err)
	}
	if strings.TrimSpace(key.ClientEmail) == "" || strings.TrimSpace(key.PrivateKey) == "" {
		return nil, errors.New("storage: service account json missing client_email or private_key")
	}
	return &URLSigner{
		bucket:     bucket,
		accessID:   key.ClientEmail,
		privateKey: []byte(key.PrivateKey),
	}, nil
}

// NewURLSignerFromFile reads the service account key from disk.
func NewURLSignerFromFile(bucket, path string) (*URLSigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read service account file: %w", err)
	}
	return NewURLSignerFromJSON(bucket, data)
}

// SignedGetURL returns a V4 GET URL for the object, valid until expires.
func (s *URLSigner) SignedGetURL(object string, expires time.Time) (string, error) {
	if s == nil {
		return "", errors.New("storage: signer not configured")
	}
	url, err := storage.SignedURL(s.bucket, object, &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		GoogleAccessID: s.accessID,
		PrivateKey:     s.privateKey,
		Expires:        expires,
	})
	if err != nil {
		return "", fmt.Errorf("storage: sign url for %s: %w", object, err)
	}
	return url, nil
}
