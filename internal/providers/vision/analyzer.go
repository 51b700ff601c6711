package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"visor/internal/domain"
	"visor/internal/providers/genai"
)

// Default candidate sequence when no fallback list is configured. Order
// matters: the loop walks it front to back.
var defaultFallbackModels = []string{
	"gemini-2.0-flash",
	"gemini-flash-latest",
	"gemini-1.5-flash-latest",
}

const (
	// providerQuotaHint is sent when the Gemini account itself is out of
	// quota. The free tier resets daily.
	providerQuotaHint = 24 * time.Hour
	// transientHint covers unavailable models and unclassified failures.
	transientHint = 5 * time.Minute
	// maxErrorChars bounds how much upstream error text reaches users.
	maxErrorChars = 150
)

// TextModel is the slice of the Gemini client the analyzer depends on.
type TextModel interface {
	AnalyzeImage(ctx context.Context, model, prompt string, image []byte, mimeType string) (string, error)
}

// Options configures the fallback analyzer.
type Options struct {
	// PrimaryModel is tried first when set. FallbackModels follow in order;
	// an empty list means the built-in defaults.
	PrimaryModel   string
	FallbackModels []string
	// DailyLimit is quoted in the provider-quota message shown to users.
	DailyLimit int
	Logger     zerolog.Logger
}

// Analyzer walks an ordered list of Gemini models until one produces text.
// Failures are classified per attempt: account-quota exhaustion stops the
// loop at once because quota is project-wide, a missing or overloaded model
// passes to the next candidate, and anything else is fatal for the request.
type Analyzer struct {
	client     TextModel
	candidates []string
	dailyLimit int
	logger     zerolog.Logger
}

// NewAnalyzer resolves the candidate model order and wraps the client.
func NewAnalyzer(client TextModel, opts Options) *Analyzer {
	return &Analyzer{
		client:     client,
		candidates: candidateModels(opts.PrimaryModel, opts.FallbackModels),
		dailyLimit: opts.DailyLimit,
		logger:     opts.Logger,
	}
}

// candidateModels prepends the primary model to the fallback list, dropping
// blanks and duplicates while keeping the first occurrence.
func candidateModels(primary string, fallbacks []string) []string {
	if len(fallbacks) == 0 {
		fallbacks = defaultFallbackModels
	}

	seen := make(map[string]struct{}, len(fallbacks)+1)
	out := make([]string, 0, len(fallbacks)+1)
	add := func(model string) {
		model = strings.TrimSpace(model)
		if model == "" {
			return
		}
		if _, ok := seen[model]; ok {
			return
		}
		seen[model] = struct{}{}
		out = append(out, model)
	}

	add(primary)
	for _, model := range fallbacks {
		add(model)
	}
	return out
}

// Candidates returns the resolved model order, mainly for startup logging.
func (a *Analyzer) Candidates() []string {
	out := make([]string, len(a.candidates))
	copy(out, a.candidates)
	return out
}

// Analyze runs the fallback loop for one admitted request.
func (a *Analyzer) Analyze(ctx context.Context, req domain.AnalysisRequest, image []byte, contentType string) domain.Outcome {
	prompt := BuildPrompt(req)
	started := time.Now()

	var lastErr error
	for _, model := range a.candidates {
		text, err := a.client.AnalyzeImage(ctx, model, prompt, image, contentType)
		if err == nil {
			if text != "" {
				elapsed := time.Since(started)
				a.logger.Info().
					Str("model", model).
					Dur("elapsed", elapsed).
					Str("confidence", string(domain.ConfidenceForText(text))).
					Msg("vision: analysis succeeded")
				return domain.Outcome{
					Kind:       domain.OutcomeSuccess,
					Text:       text,
					Confidence: domain.ConfidenceForText(text),
					Elapsed:    elapsed,
					ModelUsed:  model,
				}
			}
			lastErr = fmt.Errorf("%w: %s", domain.ErrEmptyResponse, model)
			a.logger.Warn().Str("model", model).Msg("vision: empty response, trying next model")
			continue
		}

		classified := classify(err)
		lastErr = classified
		switch {
		case errors.Is(classified, domain.ErrProviderQuota):
			// Quota is per project, not per model; the rest would fail too.
			a.logger.Warn().Err(err).Str("model", model).Msg("vision: provider quota exhausted")
			return a.quotaOutcome()
		case errors.Is(classified, domain.ErrModelNotFound):
			a.logger.Warn().Str("model", model).Msg("vision: model not found, trying next model")
		case errors.Is(classified, domain.ErrModelUnavailable):
			a.logger.Warn().Str("model", model).Msg("vision: model unavailable, trying next model")
		default:
			a.logger.Error().Err(err).Str("model", model).Msg("vision: provider call failed")
			return domain.Outcome{
				Kind:       domain.OutcomeProviderError,
				Message:    "Analysis failed: " + truncateError(classified),
				RetryAfter: transientHint,
			}
		}
	}

	return a.exhausted(lastErr)
}

func (a *Analyzer) quotaOutcome() domain.Outcome {
	return domain.Outcome{
		Kind:       domain.OutcomeQuotaExceeded,
		Message:    fmt.Sprintf("Free tier quota reached for today. Daily limit: %d requests. Please try again tomorrow.", a.dailyLimit),
		RetryAfter: providerQuotaHint,
	}
}

// exhausted maps the last classified failure to a terminal outcome once every
// candidate has been tried.
func (a *Analyzer) exhausted(lastErr error) domain.Outcome {
	switch {
	case lastErr == nil:
		return domain.Outcome{
			Kind:       domain.OutcomeProviderError,
			Message:    "All models failed. Please try again later.",
			RetryAfter: transientHint,
		}
	case errors.Is(lastErr, domain.ErrModelNotFound):
		// No retry hint: waiting cannot fix a bad model list.
		return domain.Outcome{
			Kind:    domain.OutcomeProviderError,
			Message: "Model configuration error. Please contact support.",
		}
	default:
		return domain.Outcome{
			Kind:       domain.OutcomeProviderError,
			Message:    "Analysis failed: " + truncateError(lastErr),
			RetryAfter: transientHint,
		}
	}
}

// classify wraps err in the domain sentinel for its failure class. HTTP
// status codes are authoritative; the substring pass covers transport-level
// failures that never reached Gemini's error envelope.
func classify(err error) error {
	var statusErr *genai.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", domain.ErrProviderQuota, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", domain.ErrModelNotFound, err)
		case http.StatusServiceUnavailable:
			return fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrProviderFatal, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota"), strings.Contains(msg, "resource exhausted"), strings.Contains(msg, "429"):
		return fmt.Errorf("%w: %v", domain.ErrProviderQuota, err)
	case strings.Contains(msg, "not found"), strings.Contains(msg, "404"):
		return fmt.Errorf("%w: %v", domain.ErrModelNotFound, err)
	case strings.Contains(msg, "unavailable"), strings.Contains(msg, "503"):
		return fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrProviderFatal, err)
}

func truncateError(err error) string {
	msg := err.Error()
	runes := []rune(msg)
	if len(runes) <= maxErrorChars {
		return msg
	}
	return string(runes[:maxErrorChars])
}
