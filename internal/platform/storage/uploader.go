package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// maxImageBytes bounds a single poster download; generated images are a few
// megabytes at most.
const maxImageBytes = 32 << 20

const defaultURLTTL = 7 * 24 * time.Hour

// ObjectWriter writes one object into the bucket. Extracted so tests can
// capture writes without a live bucket.
type ObjectWriter interface {
	Write(ctx context.Context, object, contentType string, data []byte) error
}

// BucketWriter implements ObjectWriter against a Cloud Storage bucket.
type BucketWriter struct {
	Bucket *storage.BucketHandle
}

func (w BucketWriter) Write(ctx context.Context, object, contentType string, data []byte) error {
	wr := w.Bucket.Object(object).NewWriter(ctx)
	wr.ContentType = contentType
	if _, err := wr.Write(data); err != nil {
		_ = wr.Close()
		return fmt.Errorf("storage: write object %s: %w", object, err)
	}
	if err := wr.Close(); err != nil {
		return fmt.Errorf("storage: finalise object %s: %w", object, err)
	}
	return nil
}

// UploaderConfig configures the order image uploader.
type UploaderConfig struct {
	Objects ObjectWriter
	// Signer produces download URLs for uploaded objects. Optional; when
	// nil the uploader returns the object path as the URL, which suits the
	// emulator setups used in development.
	Signer *URLSigner
	// HTTPClient fetches http(s) image sources. Defaults to a client with a
	// 30 second timeout.
	HTTPClient *http.Client
	Clock      func() time.Time
	URLTTL     time.Duration
}

// Uploader copies generated poster images from their source (a data URI or a
// generation-service URL) into the order bucket and hands back a download
// URL.
type Uploader struct {
	objects ObjectWriter
	signer  *URLSigner
	http    *http.Client
	clock   func() time.Time
	urlTTL  time.Duration
}

// NewUploader validates the configuration and builds the uploader.
func NewUploader(cfg UploaderConfig) (*Uploader, error) {
	if cfg.Objects == nil {
		return nil, errors.New("storage: object writer is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = defaultURLTTL
	}
	return &Uploader{
		objects: cfg.Objects,
		signer:  cfg.Signer,
		http:    httpClient,
		clock:   clock,
		urlTTL:  ttl,
	}, nil
}

// SupportedSource reports whether the image source can be uploaded. Only
// data URIs and http(s) URLs qualify; anything else (blob handles, relative
// paths) is skipped by the caller.
func SupportedSource(source string) bool {
	return strings.HasPrefix(source, "data:") || strings.HasPrefix(source, "http")
}

// OrderImagePath composes the object key for an order image. Dots in the
// size code are replaced with underscores to keep the key extension
// unambiguous: orders/<order>/<millis>_size_21x29_7.jpg.
func OrderImagePath(orderID, sizeCode string, at time.Time) string {
	size := strings.ReplaceAll(sizeCode, ".", "_")
	if size == "" {
		size = "default"
	}
	return fmt.Sprintf("orders/%s/%d_size_%s.jpg", orderID, at.UnixMilli(), size)
}

// UploadOrderImage fetches the source, stores it under the order's path, and
// returns the download URL together with the object path.
func (u *Uploader) UploadOrderImage(ctx context.Context, orderID, sizeCode, source string) (url string, object string, err error) {
	if !SupportedSource(source) {
		return "", "", fmt.Errorf("storage: unsupported image source for order %s", orderID)
	}

	data, contentType, err := u.fetch(ctx, source)
	if err != nil {
		return "", "", err
	}

	object = OrderImagePath(orderID, sizeCode, u.clock().UTC())
	if err := u.objects.Write(ctx, object, contentType, data); err != nil {
		return "", "", err
	}

	if u.signer == nil {
		return object, object, nil
	}
	signed, err := u.signer.SignedGetURL(object, u.clock().Add(u.urlTTL))
	if err != nil {
		return "", "", err
	}
	return signed, object, nil
}

func (u *Uploader) fetch(ctx context.Context, source string) ([]byte, string, error) {
	if strings.HasPrefix(source, "data:") {
		return decodeDataURI(source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, "", fmt.Errorf("storage: build image request: %w", err)
	}
	resp, err := u.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("storage: fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("storage: fetch image: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("storage: read image body: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, "", errors.New("storage: image exceeds size limit")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}

func decodeDataURI(source string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(source, ",")
	if !ok {
		return nil, "", errors.New("storage: malformed data uri")
	}

	contentType := "image/jpeg"
	if rest := strings.TrimPrefix(meta, "data:"); rest != "" {
		if mime, _, _ := strings.Cut(rest, ";"); mime != "" {
			contentType = mime
		}
	}

	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("storage: decode data uri: %w", err)
		}
		return data, contentType, nil
	}
	return []byte(payload), contentType, nil
}
