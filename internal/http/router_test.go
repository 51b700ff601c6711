package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"visor/internal/admission"
	"visor/internal/domain"
	"visor/internal/http/handlers"
	"visor/internal/infra"
	"visor/internal/middleware"
	"visor/internal/storage"
)

type routerAnalyzer struct{ calls int }

func (a *routerAnalyzer) Analyze(ctx context.Context, req domain.AnalysisRequest, image []byte, contentType string) domain.Outcome {
	a.calls++
	return domain.Outcome{
		Kind:       domain.OutcomeSuccess,
		Text:       "A quiet street after rain, neon signs reflecting in puddles along the curb.",
		Confidence: domain.ConfidenceMedium,
		ModelUsed:  "gemini-2.0-flash",
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *infra.Config) {
	t.Helper()
	cfg := &infra.Config{
		JWTSecret:       "router-test-secret",
		AdminToken:      "ops-token",
		DefaultLanguage: "en",
		MaxUploadBytes:  16 << 20,
	}
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	app := &handlers.App{
		Gate: admission.NewGate(admission.Config{
			DailyQuotaLimit:    15,
			MaxCacheEntries:    100,
			CacheEvictionBatch: 10,
		}, &routerAnalyzer{}, zerolog.Nop()),
		Store:  store,
		Cfg:    cfg,
		Logger: zerolog.Nop(),
	}
	srv := httptest.NewServer(NewRouter(app, Options{Cfg: cfg, Logger: zerolog.Nop()}))
	t.Cleanup(srv.Close)
	return srv, cfg
}

func bearerToken(t *testing.T, secret, sub string) string {
	t.Helper()
	token, err := middleware.SignJWT(secret, middleware.TokenClaims{
		Sub: sub,
		Exp: time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("SignJWT error: %v", err)
	}
	return "Bearer " + token
}

func uploadBody(t *testing.T, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "street.jpg")
	if err != nil {
		t.Fatalf("CreateFormFile error: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write image part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestRouterHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestRouterAnonymousAnalyze(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := uploadBody(t, []byte("jpeg bytes"))
	resp, err := http.Post(srv.URL+"/api/v1/analyses", contentType, body)
	if err != nil {
		t.Fatalf("POST /analyses: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var payload struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Text == "" || payload.Language != "en" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestRouterLanguageNegotiation(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := uploadBody(t, []byte("more jpeg bytes"))
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/analyses", body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept-Language", "hi-IN,hi;q=0.9")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /analyses: %v", err)
	}
	defer resp.Body.Close()
	var payload struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Language != "hi" {
		t.Fatalf("language = %q, want hi", payload.Language)
	}
}

func TestRouterQuotaAuth(t *testing.T) {
	srv, cfg := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/quota")
	if err != nil {
		t.Fatalf("GET /quota: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 401 {
		t.Fatalf("anonymous status = %d, want 401", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/quota", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", bearerToken(t, cfg.JWTSecret, "user-1"))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /quota: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("authenticated status = %d", resp.StatusCode)
	}
	var payload struct {
		UserID string `json:"user_id"`
		Limit  int    `json:"limit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.UserID != "user-1" || payload.Limit != 15 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestRouterAdminToken(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/gemini/status")
	if err != nil {
		t.Fatalf("GET /gemini/status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 403 {
		t.Fatalf("tokenless status = %d, want 403", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/gemini/status", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("X-Admin-Token", "ops-token")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /gemini/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("authorized status = %d", resp.StatusCode)
	}
}

func TestRouterArchiveDisabled(t *testing.T) {
	srv, cfg := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/analyses", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", bearerToken(t, cfg.JWTSecret, "user-1"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /analyses: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Fatalf("status = %d, want 404 without a database", resp.StatusCode)
	}
}
