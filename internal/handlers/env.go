package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/create-my-art/api/internal/platform/config"
	"github.com/create-my-art/api/internal/platform/httpx"
)

// EnvHandlers serves the frontend-safe configuration values. Everything here
// is public by design: web client identifiers and the contact address, never
// secrets.
type EnvHandlers struct {
	firebase   config.FirebaseWebConfig
	adminEmail string
	// paypalClientID is the public half of the PayPal credential pair.
	paypalClientID string
}

// NewEnvHandlers constructs the env endpoint from the loaded configuration.
func NewEnvHandlers(cfg config.Config) *EnvHandlers {
	return &EnvHandlers{
		firebase:       cfg.Firebase,
		adminEmail:     cfg.Mail.AdminEmail,
		paypalClientID: cfg.PayPal.ClientID,
	}
}

// Routes registers the /env endpoint.
func (h *EnvHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Options("/env", h.preflight)
	r.Get("/env", h.getEnv)
	r.Handle("/env", http.HandlerFunc(h.methodNotAllowed))
}

func (h *EnvHandlers) getEnv(w http.ResponseWriter, r *http.Request) {
	writeCORS(w, "GET, OPTIONS")
	httpx.WriteJSON(r.Context(), w, http.StatusOK, map[string]string{
		"FIREBASE_API_KEY":             h.firebase.APIKey,
		"FIREBASE_AUTH_DOMAIN":         h.firebase.AuthDomain,
		"FIREBASE_PROJECT_ID":          h.firebase.ProjectID,
		"FIREBASE_STORAGE_BUCKET":      h.firebase.StorageBucket,
		"FIREBASE_MESSAGING_SENDER_ID": h.firebase.MessagingSenderID,
		"FIREBASE_APP_ID":              h.firebase.AppID,
		"FIREBASE_MEASUREMENT_ID":      h.firebase.MeasurementID,
		"ADMIN_EMAIL":                  h.adminEmail,
		"PAYPAL_CLIENT_ID":             h.paypalClientID,
	})
}

func (h *EnvHandlers) preflight(w http.ResponseWriter, _ *http.Request) {
	writeCORS(w, "GET, OPTIONS")
	w.WriteHeader(http.StatusOK)
}

func (h *EnvHandlers) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeCORS(w, "GET, OPTIONS")
	httpx.WriteError(r.Context(), w, httpx.NewError("method_not_allowed", "Method not allowed", http.StatusMethodNotAllowed))
}

func writeCORS(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
