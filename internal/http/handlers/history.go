package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"visor/internal/domain"
)

const maxHistoryLimit = 100

type analysisItem struct {
	ID         string `json:"id"`
	ImageHash  string `json:"image_hash,omitempty"`
	Mode       string `json:"mode"`
	Language   string `json:"language"`
	Text       string `json:"text"`
	Confidence string `json:"confidence"`
	Model      string `json:"model,omitempty"`
	Cached     bool   `json:"cached"`
	Country    string `json:"country,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// ListAnalyses returns the caller's archived analyses, newest first. The
// archive is optional; without a database the endpoint answers 404.
func (a *App) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	if a.Repo == nil {
		a.error(w, http.StatusNotFound, "not_found", "analysis archive is disabled")
		return
	}
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	analyses, err := a.Repo.ListByUser(r.Context(), userID, limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: list analyses")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load analyses")
		return
	}

	items := make([]analysisItem, 0, len(analyses))
	for _, an := range analyses {
		items = append(items, toAnalysisItem(&an))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// GetAnalysis returns one archived analysis. Rows belonging to other users
// are reported as missing rather than forbidden.
func (a *App) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	if a.Repo == nil {
		a.error(w, http.StatusNotFound, "not_found", "analysis archive is disabled")
		return
	}
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "analysis not found")
		return
	}

	analysis, err := a.Repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "analysis not found")
			return
		}
		a.Logger.Error().Err(err).Msg("http: get analysis")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load analysis")
		return
	}
	if analysis.UserID != userID {
		a.error(w, http.StatusNotFound, "not_found", "analysis not found")
		return
	}
	a.json(w, http.StatusOK, toAnalysisItem(analysis))
}

func toAnalysisItem(an *domain.Analysis) analysisItem {
	return analysisItem{
		ID:         an.ID,
		ImageHash:  an.ImageHash,
		Mode:       string(an.Mode),
		Language:   an.Language,
		Text:       an.Text,
		Confidence: string(an.Confidence),
		Model:      an.ModelUsed,
		Cached:     an.Cached,
		Country:    an.Country,
		CreatedAt:  an.CreatedAt.UTC().Format(time.RFC3339),
	}
}
