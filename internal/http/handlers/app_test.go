package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"visor/internal/admission"
	"visor/internal/domain"
	"visor/internal/infra"
	"visor/internal/middleware"
	"visor/internal/storage"
)

// stubAnalyzer returns a canned outcome and counts provider calls.
type stubAnalyzer struct {
	calls   int
	outcome domain.Outcome
}

func (s *stubAnalyzer) Analyze(ctx context.Context, req domain.AnalysisRequest, image []byte, contentType string) domain.Outcome {
	s.calls++
	return s.outcome
}

// stubRepo is an in-memory analysis archive.
type stubRepo struct {
	saved []domain.Analysis
	rows  []domain.Analysis
	byID  map[string]*domain.Analysis
	err   error
}

func (s *stubRepo) Save(ctx context.Context, analysis *domain.Analysis) error {
	if s.err != nil {
		return s.err
	}
	if analysis.ID == "" {
		analysis.ID = uuid.NewString()
	}
	s.saved = append(s.saved, *analysis)
	return nil
}

func (s *stubRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Analysis, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func (s *stubRepo) GetByID(ctx context.Context, id string) (*domain.Analysis, error) {
	if s.err != nil {
		return nil, s.err
	}
	a, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func successOutcome(text string) domain.Outcome {
	return domain.Outcome{
		Kind:       domain.OutcomeSuccess,
		Text:       text,
		Confidence: domain.ConfidenceForText(text),
		ModelUsed:  "gemini-2.0-flash",
	}
}

// newTestApp wires an App over a real gate and file store with the provider
// stubbed out. Cooldowns default to zero so tests opt in to throttling.
func newTestApp(t *testing.T, analyzer admission.Analyzer, mutate ...func(*admission.Config)) (*App, *stubRepo) {
	t.Helper()
	gateCfg := admission.Config{
		DailyQuotaLimit:    15,
		MaxCacheEntries:    1000,
		CacheEvictionBatch: 100,
	}
	for _, m := range mutate {
		m(&gateCfg)
	}
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	repo := &stubRepo{byID: map[string]*domain.Analysis{}}
	return &App{
		Gate:   admission.NewGate(gateCfg, analyzer, zerolog.Nop()),
		Repo:   repo,
		Store:  store,
		Cfg:    &infra.Config{MaxUploadBytes: 16 << 20},
		Logger: zerolog.Nop(),
	}, repo
}

// multipartUpload builds a form body with one image part plus extra fields.
func multipartUpload(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		if err != nil {
			t.Fatalf("CreateFormFile error: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write image part: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField error: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func analyzeRequest(t *testing.T, userID, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	body, contentType := multipartUpload(t, filename, content, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", body)
	req.Header.Set("Content-Type", contentType)
	if userID != "" {
		req = req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
	}
	return req
}
