package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"visor/internal/admission"
	"visor/internal/domain"
	"visor/internal/middleware"
	"visor/internal/storage"
)

// multipartMemory bounds the in-memory portion of multipart parsing; larger
// parts spill to temp files.
const multipartMemory = 4 << 20

type analysisResponse struct {
	ID         string `json:"id,omitempty"`
	Text       string `json:"text"`
	Confidence string `json:"confidence"`
	Model      string `json:"model,omitempty"`
	Cached     bool   `json:"cached"`
	ElapsedMS  int64  `json:"elapsed_ms"`
	Language   string `json:"language"`
}

// AnalyzeImage accepts a multipart image upload plus prompt-shaping fields
// and runs it through the admission gate. Anonymous callers are admitted
// under the global cooldown only.
func (a *App) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.Cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "payload_too_large",
				fmt.Sprintf("Image exceeds the %d MB upload limit.", a.Cfg.MaxUploadBytes>>20))
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("image")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "image file is required")
		return
	}
	defer file.Close()

	if !storage.AllowedFile(header.Filename) {
		a.error(w, http.StatusBadRequest, "unsupported_media_type",
			"only png, jpg, jpeg and gif uploads are accepted")
		return
	}

	path, err := a.Store.SaveUpload(r.Context(), header.Filename, file)
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: store upload")
		a.error(w, http.StatusInternalServerError, "internal", "could not store the uploaded image")
		return
	}
	if !a.Cfg.KeepUploads {
		defer func() {
			if err := a.Store.Remove(path); err != nil {
				a.Logger.Warn().Err(err).Str("path", path).Msg("http: remove upload")
			}
		}()
	}

	req := a.analysisRequest(r)
	outcome := a.Gate.Analyze(r.Context(), req, admission.FileSource{
		Path: path,
		MIME: storage.ContentTypeForName(header.Filename),
	})
	a.writeOutcome(w, r, req, outcome)
}

func (a *App) analysisRequest(r *http.Request) domain.AnalysisRequest {
	lang := strings.TrimSpace(r.FormValue("language"))
	if lang == "" {
		lang = middleware.LanguageFromContext(r.Context())
	}
	mode := domain.Mode(strings.ToLower(strings.TrimSpace(r.FormValue("mode"))))
	if mode == "" {
		mode = domain.ModeDetailed
	}
	return domain.AnalysisRequest{
		UserID:       a.currentUserID(r),
		Mode:         mode,
		CustomPrompt: strings.TrimSpace(r.FormValue("custom_prompt")),
		Tone:         domain.Tone(strings.ToLower(strings.TrimSpace(r.FormValue("tone")))),
		Length:       domain.Length(strings.ToLower(strings.TrimSpace(r.FormValue("length")))),
		Language:     lang,
		Question:     strings.TrimSpace(r.FormValue("question")),
	}
}

func (a *App) writeOutcome(w http.ResponseWriter, r *http.Request, req domain.AnalysisRequest, outcome domain.Outcome) {
	switch outcome.Kind {
	case domain.OutcomeSuccess:
		resp := analysisResponse{
			Text:       outcome.Text,
			Confidence: string(outcome.Confidence),
			Model:      outcome.ModelUsed,
			Cached:     outcome.Cached,
			ElapsedMS:  outcome.Elapsed.Milliseconds(),
			Language:   req.Language,
		}
		resp.ID = a.archive(r.Context(), req, outcome)
		a.json(w, http.StatusOK, resp)
	case domain.OutcomeQuotaExceeded:
		a.quotaExceeded(w, outcome)
	case domain.OutcomeCooldown:
		a.retryError(w, http.StatusTooManyRequests, "cooldown", outcome.Message, outcome.RetryAfter)
	default:
		a.retryError(w, http.StatusBadGateway, "provider_error", outcome.Message, outcome.RetryAfter)
	}
}

// quotaExceeded writes the 429 envelope for quota rejections. Usage counters
// are included only for user-scoped quota, where a limit exists; the
// provider's own quota exhaustion carries just the message and hint.
func (a *App) quotaExceeded(w http.ResponseWriter, outcome domain.Outcome) {
	seconds := retrySeconds(outcome.RetryAfter)
	body := map[string]any{
		"error":       "quota_exceeded",
		"message":     outcome.Message,
		"retry_after": seconds,
	}
	if outcome.Limit > 0 {
		body["used"] = outcome.Used
		body["limit"] = outcome.Limit
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	a.json(w, http.StatusTooManyRequests, body)
}

// archive persists a successful analysis when the archive is enabled.
// Failures are logged and swallowed: archival never blocks a response the
// provider already paid for.
func (a *App) archive(ctx context.Context, req domain.AnalysisRequest, outcome domain.Outcome) string {
	if a.Repo == nil {
		return ""
	}
	rec := &domain.Analysis{
		UserID:     req.UserID,
		ImageHash:  outcome.ImageHash,
		Mode:       req.Mode,
		Language:   req.Language,
		Text:       outcome.Text,
		Confidence: outcome.Confidence,
		ModelUsed:  outcome.ModelUsed,
		Cached:     outcome.Cached,
		Country:    middleware.CountryFromContext(ctx),
	}
	if err := a.Repo.Save(ctx, rec); err != nil {
		a.Logger.Error().Err(err).Msg("http: archive analysis")
		return ""
	}
	return rec.ID
}
