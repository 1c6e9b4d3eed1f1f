package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/create-my-art/api/internal/platform/localstore"
	"github.com/create-my-art/api/internal/validation"
)

const (
	quotaRemainingKey = "generationsLeft"
	quotaResetKey     = "lastGenerationReset"
	historyKey        = "generatedImages"

	generationWidth  = 512
	generationHeight = 704
	generationModel  = "runware:101@1"
	// responseModel is the model label reported to clients, decoupled from
	// the upstream model identifier.
	responseModel = "runware-model"
)

var (
	// ErrPromptRequired rejects a generation request without a prompt.
	ErrPromptRequired = errors.New("generation: prompt is required")
	// ErrAPIKeyMissing indicates the server-side credential is not configured.
	ErrAPIKeyMissing = errors.New("generation: api key not configured")
	// ErrQuotaExhausted indicates the daily generation allowance is used up.
	ErrQuotaExhausted = errors.New("generation: daily quota exhausted")
)

// UpstreamError carries a failing image-service response so the HTTP layer
// can pass the status through.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generation: upstream status %d: %s", e.Status, e.Body)
}

// PromptRejectedError reports a prompt blocked by the content check before it
// reaches the inference provider.
type PromptRejectedError struct {
	Reason string
	Term   string
}

func (e *PromptRejectedError) Error() string {
	if e.Term != "" {
		return fmt.Sprintf("generation: prompt rejected (%s: %s)", e.Reason, e.Term)
	}
	return fmt.Sprintf("generation: prompt rejected (%s)", e.Reason)
}

// GenerationMetadata echoes the prompt back with each generated image.
type GenerationMetadata struct {
	Prompt string `json:"prompt"`
}

// GeneratedImage is one image-inference result in the client response shape.
type GeneratedImage struct {
	TaskType string             `json:"taskType"`
	TaskUUID string             `json:"taskUUID"`
	URL      string             `json:"url"`
	Model    string             `json:"model"`
	Metadata GenerationMetadata `json:"metadata"`
}

// HistoryEntry is one generated image kept in the device history.
type HistoryEntry struct {
	ID        string             `json:"id"`
	URL       string             `json:"url"`
	Prompt    string             `json:"prompt"`
	Timestamp time.Time          `json:"timestamp"`
	Metadata  GenerationMetadata `json:"metadata"`
}

// httpDoer is the slice of http.Client the service uses.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// GenerationServiceDeps wires the image generation proxy.
type GenerationServiceDeps struct {
	APIKey   string
	Endpoint string
	// HTTPClient defaults to a client with a 60 second timeout; inference
	// calls are slow.
	HTTPClient httpDoer
	// Device persists the quota counters and the generated-image history.
	// Optional; without it quota tracking is in-memory only.
	Device       *localstore.Store
	DailyQuota   int
	HistoryLimit int
	// Prompts screens prompts before they are forwarded. Optional; without
	// it only the non-empty check applies.
	Prompts *validation.PromptChecker
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
	// NewTaskID defaults to a random UUID per request.
	NewTaskID func() string
}

type generationService struct {
	apiKey       string
	endpoint     string
	http         httpDoer
	device       *localstore.Store
	dailyQuota   int
	historyLimit int
	prompts      *validation.PromptChecker
	clock        func() time.Time
	logger       func(ctx context.Context, event string, fields map[string]any)
	newTaskID    func() string

	mu sync.Mutex
	// in-memory quota state, kept in sync with the device store when present
	remaining int
	lastReset string
}

// GenerationService proxies prompt-to-image requests to the inference
// provider and enforces the per-device daily quota.
type GenerationService interface {
	Generate(ctx context.Context, prompt string) (GeneratedImage, error)
	Remaining() int
	History() []HistoryEntry
	RemoveFromHistory(id string) bool
}

// NewGenerationService builds the service and loads persisted quota state.
func NewGenerationService(deps GenerationServiceDeps) (GenerationService, error) {
	if strings.TrimSpace(deps.Endpoint) == "" {
		return nil, errors.New("generation service: endpoint is required")
	}
	if deps.DailyQuota <= 0 {
		return nil, errors.New("generation service: daily quota must be positive")
	}

	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	newTaskID := deps.NewTaskID
	if newTaskID == nil {
		newTaskID = uuid.NewString
	}
	historyLimit := deps.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 50
	}

	s := &generationService{
		apiKey:       strings.TrimSpace(deps.APIKey),
		endpoint:     strings.TrimSpace(deps.Endpoint),
		http:         client,
		device:       deps.Device,
		dailyQuota:   deps.DailyQuota,
		historyLimit: historyLimit,
		prompts:      deps.Prompts,
		clock:        clock,
		logger:       logger,
		newTaskID:    newTaskID,
		remaining:    deps.DailyQuota,
	}
	s.loadQuota()
	return s, nil
}

// Generate checks the quota, forwards the prompt to the inference provider,
// and records the result in the device history. The quota is only consumed
// on success.
func (s *generationService) Generate(ctx context.Context, prompt string) (GeneratedImage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return GeneratedImage{}, ErrPromptRequired
	}
	if s.prompts != nil {
		if res := s.prompts.Check(prompt); !res.OK {
			s.logger(ctx, "generation.prompt.rejected", map[string]any{
				"reason": res.Reason,
			})
			return GeneratedImage{}, &PromptRejectedError{Reason: res.Reason, Term: res.Term}
		}
	}
	if s.apiKey == "" {
		return GeneratedImage{}, ErrAPIKeyMissing
	}
	if !s.reserveQuota() {
		return GeneratedImage{}, ErrQuotaExhausted
	}

	taskUUID := s.newTaskID()
	payload := []map[string]any{
		{
			"taskType": "authentication",
			"apiKey":   s.apiKey,
		},
		{
			"taskType":       "imageInference",
			"taskUUID":       taskUUID,
			"positivePrompt": prompt,
			"width":          generationWidth,
			"height":         generationHeight,
			"model":          generationModel,
			"numberResults":  1,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return GeneratedImage{}, fmt.Errorf("generation: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return GeneratedImage{}, fmt.Errorf("generation: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return GeneratedImage{}, fmt.Errorf("generation: call inference service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return GeneratedImage{}, fmt.Errorf("generation: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return GeneratedImage{}, &UpstreamError{Status: resp.StatusCode, Body: clipBody(raw)}
	}

	var decoded struct {
		Data []struct {
			TaskType string `json:"taskType"`
			TaskUUID string `json:"taskUUID"`
			ImageURL string `json:"imageURL"`
		} `json:"data"`
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return GeneratedImage{}, fmt.Errorf("generation: decode response: %w", err)
	}
	if len(decoded.Errors) > 0 && string(decoded.Errors) != "null" {
		return GeneratedImage{}, &UpstreamError{Status: http.StatusBadRequest, Body: clipBody(decoded.Errors)}
	}
	if len(decoded.Data) == 0 {
		return GeneratedImage{}, &UpstreamError{Status: http.StatusInternalServerError, Body: "empty inference response"}
	}

	// Prefer the inference entry over the authentication echo.
	entry := decoded.Data[0]
	for _, d := range decoded.Data {
		if d.TaskType == "imageInference" {
			entry = d
			break
		}
	}
	if entry.TaskUUID == "" {
		entry.TaskUUID = taskUUID
	}

	image := GeneratedImage{
		TaskType: "imageInference",
		TaskUUID: entry.TaskUUID,
		URL:      entry.ImageURL,
		Model:    responseModel,
		Metadata: GenerationMetadata{Prompt: prompt},
	}

	s.consumeQuota()
	s.recordHistory(image)
	s.logger(ctx, "generation.image.created", map[string]any{
		"task_uuid": image.TaskUUID,
		"remaining": s.Remaining(),
	})
	return image, nil
}

// Remaining returns the generations left today.
func (s *generationService) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetIfStaleLocked()
	return s.remaining
}

// History returns the persisted generated images, newest first.
func (s *generationService) History() []HistoryEntry {
	if s.device == nil {
		return nil
	}
	var entries []HistoryEntry
	if ok, err := s.device.Get(historyKey, &entries); err != nil || !ok {
		return nil
	}
	return entries
}

// RemoveFromHistory deletes one entry by ID, reporting whether it existed.
func (s *generationService) RemoveFromHistory(id string) bool {
	if s.device == nil {
		return false
	}
	entries := s.History()
	kept := entries[:0]
	removed := false
	for _, e := range entries {
		if e.ID == id {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if removed {
		_ = s.device.Put(historyKey, kept)
	}
	return removed
}

// reserveQuota resets the counter on a date change and reports whether a
// generation may proceed. The decrement happens after success only.
func (s *generationService) reserveQuota() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetIfStaleLocked()
	return s.remaining > 0
}

func (s *generationService) consumeQuota() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetIfStaleLocked()
	if s.remaining > 0 {
		s.remaining--
	}
	s.persistQuotaLocked()
}

func (s *generationService) resetIfStaleLocked() {
	today := s.clock().UTC().Format("2006-01-02")
	if s.lastReset != today {
		s.remaining = s.dailyQuota
		s.lastReset = today
		s.persistQuotaLocked()
	}
}

func (s *generationService) loadQuota() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device != nil {
		var remaining int
		var lastReset string
		if ok, err := s.device.Get(quotaRemainingKey, &remaining); err == nil && ok {
			s.remaining = remaining
		}
		if ok, err := s.device.Get(quotaResetKey, &lastReset); err == nil && ok {
			s.lastReset = lastReset
		}
	}
	s.resetIfStaleLocked()
}

func (s *generationService) persistQuotaLocked() {
	if s.device == nil {
		return
	}
	_ = s.device.Put(quotaRemainingKey, s.remaining)
	_ = s.device.Put(quotaResetKey, s.lastReset)
}

// recordHistory prepends the new image and trims the history to the limit.
func (s *generationService) recordHistory(image GeneratedImage) {
	if s.device == nil {
		return
	}
	entry := HistoryEntry{
		ID:        image.TaskUUID,
		URL:       image.URL,
		Prompt:    image.Metadata.Prompt,
		Timestamp: s.clock().UTC(),
		Metadata:  image.Metadata,
	}
	entries := append([]HistoryEntry{entry}, s.History()...)
	if len(entries) > s.historyLimit {
		entries = entries[:s.historyLimit]
	}
	_ = s.device.Put(historyKey, entries)
}

func clipBody(raw []byte) string {
	const max = 512
	body := strings.TrimSpace(string(raw))
	if len(body) > max {
		return body[:max]
	}
	return body
}
