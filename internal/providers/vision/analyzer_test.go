package vision

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"visor/internal/domain"
	"visor/internal/providers/genai"
)

type modelReply struct {
	text string
	err  error
}

// scriptedModel answers per model name and records the order of attempts.
type scriptedModel struct {
	replies map[string]modelReply
	calls   []string
	prompt  string
}

func (s *scriptedModel) AnalyzeImage(ctx context.Context, model, prompt string, image []byte, contentType string) (string, error) {
	s.calls = append(s.calls, model)
	s.prompt = prompt
	reply := s.replies[model]
	return reply.text, reply.err
}

func newTestAnalyzer(client TextModel) *Analyzer {
	return NewAnalyzer(client, Options{
		PrimaryModel:   "model-a",
		FallbackModels: []string{"model-b", "model-c"},
		DailyLimit:     15,
		Logger:         zerolog.Nop(),
	})
}

func captionReq() domain.AnalysisRequest {
	return domain.AnalysisRequest{Mode: domain.ModeCaption, Language: "en"}
}

func TestAnalyzerFallsBackOnNotFound(t *testing.T) {
	longText := strings.Repeat("a vivid scene ", 10)
	model := &scriptedModel{replies: map[string]modelReply{
		"model-a": {err: &genai.StatusError{Code: http.StatusNotFound, Message: "model not found"}},
		"model-b": {text: longText},
	}}

	out := newTestAnalyzer(model).Analyze(context.Background(), captionReq(), []byte("img"), "image/png")
	if !out.OK() {
		t.Fatalf("expected success, got %s: %s", out.Kind, out.Message)
	}
	if out.ModelUsed != "model-b" {
		t.Fatalf("ModelUsed = %q, want model-b", out.ModelUsed)
	}
	if out.Confidence != domain.ConfidenceHigh {
		t.Fatalf("confidence = %s, want High for %d chars", out.Confidence, len(longText))
	}
	if want := []string{"model-a", "model-b"}; !reflect.DeepEqual(model.calls, want) {
		t.Fatalf("attempt order = %v, want %v (model-c must stay untouched)", model.calls, want)
	}
}

func TestAnalyzerQuotaStopsImmediately(t *testing.T) {
	model := &scriptedModel{replies: map[string]modelReply{
		"model-a": {err: &genai.StatusError{Code: http.StatusTooManyRequests, Message: "Resource has been exhausted"}},
		"model-b": {text: "should never be reached"},
	}}

	out := newTestAnalyzer(model).Analyze(context.Background(), captionReq(), []byte("img"), "image/png")
	if out.Kind != domain.OutcomeQuotaExceeded {
		t.Fatalf("kind = %s, want %s", out.Kind, domain.OutcomeQuotaExceeded)
	}
	if out.RetryAfter != 24*time.Hour {
		t.Fatalf("retry hint = %v, want 24h", out.RetryAfter)
	}
	if !strings.Contains(out.Message, "Daily limit: 15") {
		t.Fatalf("message = %q, want the daily limit quoted", out.Message)
	}
	if len(model.calls) != 1 {
		t.Fatalf("quota error must halt the loop, attempts = %v", model.calls)
	}
}

func TestAnalyzerFatalErrorStopsLoop(t *testing.T) {
	model := &scriptedModel{replies: map[string]modelReply{
		"model-a": {err: &genai.StatusError{Code: http.StatusBadRequest, Message: "API key not valid"}},
		"model-b": {text: "should never be reached"},
	}}

	out := newTestAnalyzer(model).Analyze(context.Background(), captionReq(), []byte("img"), "image/png")
	if out.Kind != domain.OutcomeProviderError {
		t.Fatalf("kind = %s, want %s", out.Kind, domain.OutcomeProviderError)
	}
	if out.RetryAfter != 5*time.Minute {
		t.Fatalf("retry hint = %v, want 5m", out.RetryAfter)
	}
	if !strings.Contains(out.Message, "gemini status 400") {
		t.Fatalf("message = %q, want the upstream status quoted", out.Message)
	}
	if len(model.calls) != 1 {
		t.Fatalf("fatal error must halt the loop, attempts = %v", model.calls)
	}
}

func TestAnalyzerEmptyTextTriesNextModel(t *testing.T) {
	model := &scriptedModel{replies: map[string]modelReply{
		"model-a": {text: ""},
		"model-b": {text: "a short caption"},
	}}

	out := newTestAnalyzer(model).Analyze(context.Background(), captionReq(), []byte("img"), "image/png")
	if !out.OK() {
		t.Fatalf("expected success, got %s: %s", out.Kind, out.Message)
	}
	if out.ModelUsed != "model-b" {
		t.Fatalf("ModelUsed = %q, want model-b", out.ModelUsed)
	}
	if out.Confidence != domain.ConfidenceLow {
		t.Fatalf("confidence = %s, want Low for a short caption", out.Confidence)
	}
}

func TestAnalyzerExhaustionNotFound(t *testing.T) {
	notFound := modelReply{err: &genai.StatusError{Code: http.StatusNotFound, Message: "unknown model"}}
	model := &scriptedModel{replies: map[string]modelReply{
		"model-a": notFound, "model-b": notFound, "model-c": notFound,
	}}

	out := newTestAnalyzer(model).Analyze(context.Background(), captionReq(), []byte("img"), "image/png")
	if out.Kind != domain.OutcomeProviderError {
		t.Fatalf("kind = %s, want %s", out.Kind, domain.OutcomeProviderError)
	}
	if out.Message != "Model configuration error. Please contact support." {
		t.Fatalf("message = %q", out.Message)
	}
	if out.RetryAfter != 0 {
		t.Fatalf("retry hint = %v, want none for a config error", out.RetryAfter)
	}
	if len(model.calls) != 3 {
		t.Fatalf("attempts = %v, want all three candidates", model.calls)
	}
}

func TestAnalyzerExhaustionUnavailable(t *testing.T) {
	busy := modelReply{err: &genai.StatusError{Code: http.StatusServiceUnavailable, Message: "model overloaded"}}
	model := &scriptedModel{replies: map[string]modelReply{
		"model-a": busy, "model-b": busy, "model-c": busy,
	}}

	out := newTestAnalyzer(model).Analyze(context.Background(), captionReq(), []byte("img"), "image/png")
	if out.Kind != domain.OutcomeProviderError {
		t.Fatalf("kind = %s, want %s", out.Kind, domain.OutcomeProviderError)
	}
	if out.RetryAfter != 5*time.Minute {
		t.Fatalf("retry hint = %v, want 5m", out.RetryAfter)
	}
	if !strings.HasPrefix(out.Message, "Analysis failed: ") {
		t.Fatalf("message = %q", out.Message)
	}
}

func TestAnalyzerClassifiesTransportErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantKind domain.OutcomeKind
		wantTry  int
	}{
		{"quota substring", errors.New("rpc error: resource exhausted, quota hit"), domain.OutcomeQuotaExceeded, 1},
		{"connection refused", errors.New("dial tcp 10.0.0.1:443: connection refused"), domain.OutcomeProviderError, 1},
		{"deadline", context.DeadlineExceeded, domain.OutcomeProviderError, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := &scriptedModel{replies: map[string]modelReply{
				"model-a": {err: tc.err},
				"model-b": {text: "should never be reached"},
			}}
			out := newTestAnalyzer(model).Analyze(context.Background(), captionReq(), []byte("img"), "image/png")
			if out.Kind != tc.wantKind {
				t.Fatalf("kind = %s, want %s", out.Kind, tc.wantKind)
			}
			if len(model.calls) != tc.wantTry {
				t.Fatalf("attempts = %v, want %d", model.calls, tc.wantTry)
			}
		})
	}
}

func TestAnalyzerPromptReachesModel(t *testing.T) {
	model := &scriptedModel{replies: map[string]modelReply{
		"model-a": {text: "ok"},
	}}
	req := captionReq()
	req.Question = "What breed is the dog?"

	newTestAnalyzer(model).Analyze(context.Background(), req, []byte("img"), "image/png")
	if want := BuildPrompt(req); model.prompt != want {
		t.Fatalf("prompt = %q, want %q", model.prompt, want)
	}
}

func TestCandidateModels(t *testing.T) {
	cases := []struct {
		name      string
		primary   string
		fallbacks []string
		want      []string
	}{
		{
			name: "defaults when nothing configured",
			want: []string{"gemini-2.0-flash", "gemini-flash-latest", "gemini-1.5-flash-latest"},
		},
		{
			name:    "primary duplicating a default is not repeated",
			primary: "gemini-flash-latest",
			want:    []string{"gemini-flash-latest", "gemini-2.0-flash", "gemini-1.5-flash-latest"},
		},
		{
			name:    "custom primary goes first",
			primary: "gemini-exp",
			want:    []string{"gemini-exp", "gemini-2.0-flash", "gemini-flash-latest", "gemini-1.5-flash-latest"},
		},
		{
			name:      "explicit fallbacks with blanks and dupes",
			primary:   "m1",
			fallbacks: []string{" m2 ", "", "m1", "m3"},
			want:      []string{"m1", "m2", "m3"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := candidateModels(tc.primary, tc.fallbacks)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("candidates = %v, want %v", got, tc.want)
			}
		})
	}
}
