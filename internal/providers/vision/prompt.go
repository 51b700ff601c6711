package vision

import (
	"strings"

	"visor/internal/domain"
)

// Base instruction per analysis mode. Unknown modes read as detailed
// descriptions rather than failing the request.
var modePrompts = map[domain.Mode]string{
	domain.ModeCaption:       "Generate a concise, emotionally resonant caption for this image.",
	domain.ModeDetailed:      "Provide a detailed, emotionally rich description of this image, capturing its essence, mood, and significance.",
	domain.ModeEducational:   "Explain this image from an educational perspective. What can be learned from it? What concepts does it illustrate?",
	domain.ModeCreativeStory: "Create a romantic, emotionally engaging story or poem inspired by this image.",
	domain.ModeKeywords:      "Generate relevant keywords and tags for this image, focusing on emotional and descriptive elements.",
}

var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"ur": "Urdu",
}

var toneDirectives = map[domain.Tone]string{
	domain.ToneFormal:   "Use a formal, professional tone.",
	domain.ToneCasual:   "Use a casual, conversational tone.",
	domain.ToneRomantic: "Use a romantic, poetic, emotionally expressive tone.",
}

var lengthDirectives = map[domain.Length]string{
	domain.LengthShort:  "Provide a brief response (1-2 sentences).",
	domain.LengthMedium: "Provide a detailed response (3-5 sentences).",
	domain.LengthLong:   "Provide an extensive, comprehensive response (6+ sentences).",
}

// BuildPrompt assembles the instruction text for one request. A custom prompt
// replaces the mode template; a question replaces it too and additionally
// drops the length directive, since the answer's size should follow the
// question. Directives are stacked on separate lines, empty ones skipped.
func BuildPrompt(req domain.AnalysisRequest) string {
	base, ok := modePrompts[req.Mode]
	if !ok {
		base = modePrompts[domain.ModeDetailed]
	}

	name, ok := languageNames[req.Language]
	if !ok {
		name = "English"
	}
	language := "Respond in " + name + "."
	tone := toneDirectives[req.Tone]
	length := lengthDirectives[req.Length]

	switch {
	case req.CustomPrompt != "":
		return joinDirectives(req.CustomPrompt, language, tone, length)
	case req.Question != "":
		return joinDirectives(req.Question, language, tone)
	default:
		return joinDirectives(base, language, tone, length)
	}
}

func joinDirectives(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(part)
	}
	return b.String()
}
