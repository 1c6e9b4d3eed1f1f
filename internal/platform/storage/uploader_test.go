package storage

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type capturingWriter struct {
	object      string
	contentType string
	data        []byte
}

func (w *capturingWriter) Write(_ context.Context, object, contentType string, data []byte) error {
	w.object = object
	w.contentType = contentType
	w.data = data
	return nil
}

var fixedNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestUploader(t *testing.T, writer ObjectWriter, client *http.Client) *Uploader {
	t.Helper()
	u, err := NewUploader(UploaderConfig{
		Objects:    writer,
		HTTPClient: client,
		Clock:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("new uploader: %v", err)
	}
	return u
}

func TestOrderImagePath(t *testing.T) {
	got := OrderImagePath("order-1", "21x29.7", fixedNow)
	want := "orders/order-1/1741608000000_size_21x29_7.jpg"
	if got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}
}

func TestSupportedSource(t *testing.T) {
	if !SupportedSource("data:image/png;base64,AAAA") {
		t.Fatal("data uri should be supported")
	}
	if !SupportedSource("https://images.example.com/a.jpg") {
		t.Fatal("https url should be supported")
	}
	if SupportedSource("blob:abc") || SupportedSource("") {
		t.Fatal("blob and empty sources must be unsupported")
	}
}

func TestUploadOrderImageFromDataURI(t *testing.T) {
	writer := &capturingWriter{}
	uploader := newTestUploader(t, writer, nil)

	payload := base64.StdEncoding.EncodeToString([]byte("fake-image"))
	url, object, err := uploader.UploadOrderImage(context.Background(), "order-1", "50x70", "data:image/png;base64,"+payload)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if writer.contentType != "image/png" {
		t.Fatalf("content type = %q", writer.contentType)
	}
	if string(writer.data) != "fake-image" {
		t.Fatalf("data = %q", writer.data)
	}
	if !strings.HasPrefix(object, "orders/order-1/") {
		t.Fatalf("object = %q", object)
	}
	// Without a signer the object path doubles as the URL.
	if url != object {
		t.Fatalf("url = %q, want object path", url)
	}
}

func TestUploadOrderImageFromHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	writer := &capturingWriter{}
	uploader := newTestUploader(t, writer, server.Client())

	_, _, err := uploader.UploadOrderImage(context.Background(), "order-2", "21x29.7", server.URL+"/poster.jpg")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if string(writer.data) != "jpeg-bytes" || writer.contentType != "image/jpeg" {
		t.Fatalf("captured = %q %q", writer.data, writer.contentType)
	}
}

func TestUploadOrderImageRejectsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	uploader := newTestUploader(t, &capturingWriter{}, server.Client())
	if _, _, err := uploader.UploadOrderImage(context.Background(), "order-3", "50x70", server.URL); err == nil {
		t.Fatal("expected error for upstream 404")
	}
}

func TestUploadOrderImageRejectsUnsupportedSource(t *testing.T) {
	uploader := newTestUploader(t, &capturingWriter{}, nil)
	if _, _, err := uploader.UploadOrderImage(context.Background(), "order-4", "50x70", "blob:abc"); err == nil {
		t.Fatal("expected error for unsupported source")
	}
}
