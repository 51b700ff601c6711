package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"visor/internal/admission"
	"visor/internal/domain"
	"visor/internal/infra"
	"visor/internal/middleware"
	"visor/internal/providers/genai"
	"visor/internal/storage"
)

// ModelLister exposes the provider's model catalog for the admin surface.
type ModelLister interface {
	ListModels(ctx context.Context) ([]genai.ModelInfo, error)
}

// App carries the wired dependencies for all HTTP handlers. Repo and Models
// may be nil: the archive endpoints answer 404 without a database, and the
// model catalog degrades to an error response.
type App struct {
	Gate   *admission.Gate
	Models ModelLister
	Repo   domain.AnalysisRepository
	Store  *storage.FileStore
	Cfg    *infra.Config
	Logger infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{"error": code, "message": message})
}

// retryError is the error shape for throttled requests: the outcome's
// back-off hint rides along both as a JSON field and a Retry-After header.
func (a *App) retryError(w http.ResponseWriter, status int, code, message string, retryAfter time.Duration) {
	if retryAfter <= 0 {
		a.error(w, status, code, message)
		return
	}
	seconds := retrySeconds(retryAfter)
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	a.json(w, status, map[string]any{
		"error":       code,
		"message":     message,
		"retry_after": seconds,
	})
}

// retrySeconds converts a back-off hint to whole seconds, floored at 1 so a
// sub-second hint never reads as "retry immediately".
func retrySeconds(retryAfter time.Duration) int {
	seconds := int(retryAfter / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
