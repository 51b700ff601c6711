package domain

import (
	"time"
	"unicode/utf8"
)

// Mode selects the base instruction template sent to the vision model.
type Mode string

const (
	ModeCaption       Mode = "caption"
	ModeDetailed      Mode = "detailed_description"
	ModeEducational   Mode = "educational"
	ModeCreativeStory Mode = "creative_story"
	ModeKeywords      Mode = "keywords"
)

// Tone shapes the voice of the generated text. Unknown tones behave as neutral.
type Tone string

const (
	ToneFormal   Tone = "formal"
	ToneCasual   Tone = "casual"
	ToneRomantic Tone = "romantic"
	ToneNeutral  Tone = "neutral"
)

// Length bounds how expansive the generated text should be.
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// Confidence is a coarse quality estimate derived from response length.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// ConfidenceForText grades model output by character count: over 100
// characters reads as High, over 50 as Medium, anything shorter as Low.
func ConfidenceForText(text string) Confidence {
	switch n := utf8.RuneCountInString(text); {
	case n > 100:
		return ConfidenceHigh
	case n > 50:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// AnalysisRequest carries the prompt-shaping parameters for one image analysis.
// CustomPrompt replaces the mode template when set; Question replaces it and
// additionally drops the length directive. UserID may be empty for anonymous
// callers, in which case only the global cooldown applies.
type AnalysisRequest struct {
	UserID       string
	Mode         Mode
	CustomPrompt string
	Tone         Tone
	Length       Length
	Language     string
	Question     string
}

// OutcomeKind tags the terminal state of an admission attempt.
type OutcomeKind string

const (
	OutcomeSuccess       OutcomeKind = "success"
	OutcomeQuotaExceeded OutcomeKind = "quota_exceeded"
	OutcomeCooldown      OutcomeKind = "cooldown"
	OutcomeProviderError OutcomeKind = "provider_error"
)

// Outcome is the structured result of one analysis attempt. Every admission
// path produces exactly one Outcome; no failure is reported as a bare error.
type Outcome struct {
	Kind       OutcomeKind
	Text       string
	Confidence Confidence
	Elapsed    time.Duration
	Cached     bool
	ModelUsed  string
	// ImageHash is the request fingerprint, when one could be computed.
	ImageHash string
	Message   string
	// RetryAfter is the client back-off hint. Zero means no hint: either the
	// call succeeded or retrying is pointless without a config change.
	RetryAfter time.Duration
	Used       int
	Limit      int
}

// OK reports whether the outcome carries usable analysis text.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}
