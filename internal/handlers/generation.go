package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/create-my-art/api/internal/platform/httpx"
	"github.com/create-my-art/api/internal/services"
	"github.com/create-my-art/api/internal/validation"
)

const maxGenerateBodySize = 16 * 1024

type generateImageRequest struct {
	Prompt string `json:"prompt"`
}

// GenerationHandlers proxies prompt-to-image requests and exposes the
// per-device history.
type GenerationHandlers struct {
	generation services.GenerationService
}

// NewGenerationHandlers constructs the generation endpoints.
func NewGenerationHandlers(generation services.GenerationService) *GenerationHandlers {
	return &GenerationHandlers{generation: generation}
}

// Routes registers the /generate-image and /generations endpoints.
func (h *GenerationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Options("/generate-image", h.preflight)
	r.Post("/generate-image", h.generate)
	r.Handle("/generate-image", http.HandlerFunc(h.methodNotAllowed))

	r.Get("/generations", h.listHistory)
	r.Delete("/generations/{imageID}", h.removeFromHistory)
}

func (h *GenerationHandlers) generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeCORS(w, "POST, OPTIONS")
	if h.generation == nil {
		httpx.WriteError(ctx, w, httpx.NewError("generation_unavailable", "image generation unavailable", http.StatusServiceUnavailable))
		return
	}

	var req generateImageRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxGenerateBodySize))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "cannot read request body", http.StatusBadRequest))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be JSON", http.StatusBadRequest))
			return
		}
	}

	image, err := h.generation.Generate(ctx, req.Prompt)
	if err != nil {
		h.writeGenerateError(w, r, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, map[string]any{
		"data": []services.GeneratedImage{image},
	})
}

func (h *GenerationHandlers) writeGenerateError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var upstream *services.UpstreamError
	var rejected *services.PromptRejectedError
	switch {
	case errors.Is(err, services.ErrPromptRequired):
		httpx.WriteError(ctx, w, httpx.NewError("prompt_required", "Prompt is required", http.StatusBadRequest))
	case errors.As(err, &rejected):
		httpx.WriteError(ctx, w, httpx.NewError("prompt_rejected", promptRejectionMessage(rejected.Reason), http.StatusBadRequest))
	case errors.Is(err, services.ErrAPIKeyMissing):
		httpx.WriteError(ctx, w, httpx.NewError("api_key_missing", "Runware API key not configured", http.StatusInternalServerError))
	case errors.Is(err, services.ErrQuotaExhausted):
		httpx.WriteError(ctx, w, httpx.NewError("quota_exhausted", "daily generation quota exhausted", http.StatusTooManyRequests))
	case errors.As(err, &upstream):
		// pass the upstream status through
		httpx.WriteError(ctx, w, httpx.NewError("generation_failed", upstream.Body, upstream.Status))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("generation_failed", "image generation failed", http.StatusBadGateway))
	}
}

func promptRejectionMessage(reason string) string {
	switch reason {
	case validation.PromptReasonTooShort:
		return "Prompt is too short"
	case validation.PromptReasonTooLong:
		return "Prompt is too long"
	default:
		return "Prompt contains prohibited content"
	}
}

func (h *GenerationHandlers) listHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.generation == nil {
		httpx.WriteError(ctx, w, httpx.NewError("generation_unavailable", "image generation unavailable", http.StatusServiceUnavailable))
		return
	}
	images := h.generation.History()
	if images == nil {
		images = []services.HistoryEntry{}
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, map[string]any{
		"generationsLeft": h.generation.Remaining(),
		"images":          images,
	})
}

func (h *GenerationHandlers) removeFromHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.generation == nil {
		httpx.WriteError(ctx, w, httpx.NewError("generation_unavailable", "image generation unavailable", http.StatusServiceUnavailable))
		return
	}
	id := chi.URLParam(r, "imageID")
	if !h.generation.RemoveFromHistory(id) {
		httpx.WriteError(ctx, w, httpx.NewError("image_not_found", "no generated image with that id", http.StatusNotFound))
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, map[string]any{"removed": id})
}

func (h *GenerationHandlers) preflight(w http.ResponseWriter, _ *http.Request) {
	writeCORS(w, "POST, OPTIONS")
	w.WriteHeader(http.StatusOK)
}

func (h *GenerationHandlers) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeCORS(w, "POST, OPTIONS")
	httpx.WriteError(r.Context(), w, httpx.NewError("method_not_allowed", "Method not allowed", http.StatusMethodNotAllowed))
}
