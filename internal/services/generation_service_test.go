package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/create-my-art/api/internal/platform/localstore"
	"github.com/create-my-art/api/internal/validation"
)

type stubInferenceAPI struct {
	status   int
	body     string
	err      error
	requests []map[string]any
}

func (s *stubInferenceAPI) Do(req *http.Request) (*http.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	raw, _ := io.ReadAll(req.Body)
	var payload []map[string]any
	_ = json.Unmarshal(raw, &payload)
	s.requests = append(s.requests, map[string]any{"payload": payload, "auth": req.Header.Get("Authorization")})

	status := s.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}, nil
}

func successBody() string {
	return `{"data":[{"taskType":"authentication"},{"taskType":"imageInference","taskUUID":"task-1","imageURL":"https://im.runware.ai/out.jpg"}]}`
}

func newGenerationService(t *testing.T, api *stubInferenceAPI, device *localstore.Store, quota int, clock func() time.Time) GenerationService {
	t.Helper()
	if clock == nil {
		clock = func() time.Time {
			return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
		}
	}
	svc, err := NewGenerationService(GenerationServiceDeps{
		APIKey:       "rw-key",
		Endpoint:     "https://api.runware.ai/v1",
		HTTPClient:   api,
		Device:       device,
		DailyQuota:   quota,
		HistoryLimit: 3,
		Clock:        clock,
		NewTaskID:    func() string { return "task-1" },
	})
	if err != nil {
		t.Fatalf("new generation service: %v", err)
	}
	return svc
}

func TestGenerateRequiresPrompt(t *testing.T) {
	svc := newGenerationService(t, &stubInferenceAPI{body: successBody()}, nil, 30, nil)

	if _, err := svc.Generate(context.Background(), "   "); !errors.Is(err, ErrPromptRequired) {
		t.Fatalf("err = %v, want ErrPromptRequired", err)
	}
}

func TestGenerateRejectsBannedPrompt(t *testing.T) {
	api := &stubInferenceAPI{body: successBody()}
	prompts := validation.NewPromptChecker()
	if err := prompts.Load(context.Background(), validation.StaticTermSource{Words: []string{"verboten"}}); err != nil {
		t.Fatalf("load terms: %v", err)
	}
	svc, err := NewGenerationService(GenerationServiceDeps{
		APIKey:     "rw-key",
		Endpoint:   "https://api.runware.ai/v1",
		HTTPClient: api,
		DailyQuota: 30,
		Prompts:    prompts,
	})
	if err != nil {
		t.Fatalf("new generation service: %v", err)
	}

	_, err = svc.Generate(context.Background(), "ein verboten motiv")
	var rejected *PromptRejectedError
	if !errors.As(err, &rejected) || rejected.Reason != validation.PromptReasonBannedTerm {
		t.Fatalf("err = %v, want PromptRejectedError with banned_term", err)
	}
	if len(api.requests) != 0 {
		t.Fatal("rejected prompt must not reach the inference provider")
	}
	if svc.Remaining() != 30 {
		t.Fatalf("remaining = %d, rejection must not consume quota", svc.Remaining())
	}
}

func TestGenerateRequiresAPIKey(t *testing.T) {
	svc, err := NewGenerationService(GenerationServiceDeps{
		Endpoint:   "https://api.runware.ai/v1",
		HTTPClient: &stubInferenceAPI{},
		DailyQuota: 30,
	})
	if err != nil {
		t.Fatalf("new generation service: %v", err)
	}

	if _, err := svc.Generate(context.Background(), "a castle"); !errors.Is(err, ErrAPIKeyMissing) {
		t.Fatalf("err = %v, want ErrAPIKeyMissing", err)
	}
}

func TestGenerateBuildsAuthenticatedPayload(t *testing.T) {
	api := &stubInferenceAPI{body: successBody()}
	device, err := localstore.Open("")
	if err != nil {
		t.Fatalf("open device store: %v", err)
	}
	svc := newGenerationService(t, api, device, 30, nil)

	image, err := svc.Generate(context.Background(), "a castle at dusk")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if image.URL != "https://im.runware.ai/out.jpg" {
		t.Fatalf("url = %q", image.URL)
	}
	if image.Model != "runware-model" {
		t.Fatalf("model = %q", image.Model)
	}
	if image.TaskUUID != "task-1" {
		t.Fatalf("task uuid = %q", image.TaskUUID)
	}
	if image.Metadata.Prompt != "a castle at dusk" {
		t.Fatalf("metadata prompt = %q", image.Metadata.Prompt)
	}

	if len(api.requests) != 1 {
		t.Fatalf("requests = %d", len(api.requests))
	}
	payload := api.requests[0]["payload"].([]map[string]any)
	if len(payload) != 2 {
		t.Fatalf("payload tasks = %d", len(payload))
	}
	if payload[0]["taskType"] != "authentication" {
		t.Fatalf("first task = %v, authentication must come first", payload[0]["taskType"])
	}
	inference := payload[1]
	if inference["positivePrompt"] != "a castle at dusk" {
		t.Fatalf("prompt = %v", inference["positivePrompt"])
	}
	if inference["model"] != "runware:101@1" {
		t.Fatalf("model = %v", inference["model"])
	}
	if inference["width"] != float64(512) || inference["height"] != float64(704) {
		t.Fatalf("dimensions = %vx%v", inference["width"], inference["height"])
	}
}

func TestGenerateConsumesQuotaAndRecordsHistory(t *testing.T) {
	device, err := localstore.Open("")
	if err != nil {
		t.Fatalf("open device store: %v", err)
	}
	svc := newGenerationService(t, &stubInferenceAPI{body: successBody()}, device, 2, nil)

	if _, err := svc.Generate(context.Background(), "first"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := svc.Remaining(); got != 1 {
		t.Fatalf("remaining = %d, want 1", got)
	}

	history := svc.History()
	if len(history) != 1 {
		t.Fatalf("history = %d entries", len(history))
	}
	if history[0].Prompt != "first" || history[0].URL != "https://im.runware.ai/out.jpg" {
		t.Fatalf("history entry = %+v", history[0])
	}

	if _, err := svc.Generate(context.Background(), "second"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.Generate(context.Background(), "third"); !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("err = %v, want ErrQuotaExhausted", err)
	}
}

func TestGenerateQuotaResetsOnNewDay(t *testing.T) {
	device, err := localstore.Open("")
	if err != nil {
		t.Fatalf("open device store: %v", err)
	}

	day := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
	clock := func() time.Time { return day }
	svc := newGenerationService(t, &stubInferenceAPI{body: successBody()}, device, 1, clock)

	if _, err := svc.Generate(context.Background(), "first"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.Generate(context.Background(), "second"); !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("err = %v, want quota exhausted on the same day", err)
	}

	day = day.Add(2 * time.Hour) // past midnight
	if _, err := svc.Generate(context.Background(), "third"); err != nil {
		t.Fatalf("generate after reset: %v", err)
	}
}

func TestGeneratePassesUpstreamStatusThrough(t *testing.T) {
	svc := newGenerationService(t, &stubInferenceAPI{status: http.StatusTooManyRequests, body: `{"error":"rate limit"}`}, nil, 30, nil)

	_, err := svc.Generate(context.Background(), "a castle")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if upstream.Status != http.StatusTooManyRequests {
		t.Fatalf("status = %d", upstream.Status)
	}
}

func TestGenerateFailureDoesNotConsumeQuota(t *testing.T) {
	svc := newGenerationService(t, &stubInferenceAPI{status: http.StatusBadGateway, body: "upstream down"}, nil, 5, nil)

	if _, err := svc.Generate(context.Background(), "a castle"); err == nil {
		t.Fatal("expected upstream error")
	}
	if got := svc.Remaining(); got != 5 {
		t.Fatalf("remaining = %d, failed generations must not consume quota", got)
	}
}

func TestRemoveFromHistory(t *testing.T) {
	device, err := localstore.Open("")
	if err != nil {
		t.Fatalf("open device store: %v", err)
	}
	svc := newGenerationService(t, &stubInferenceAPI{body: successBody()}, device, 5, nil)

	if _, err := svc.Generate(context.Background(), "first"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !svc.RemoveFromHistory("task-1") {
		t.Fatal("expected entry to be removed")
	}
	if svc.RemoveFromHistory("task-1") {
		t.Fatal("second removal must report absence")
	}
	if len(svc.History()) != 0 {
		t.Fatal("history must be empty after removal")
	}
}
