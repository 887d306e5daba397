package emotion

import (
	"regexp"
	"strings"
)

// Labels the coaching agent may express. Every turn resolves to exactly
// one of these; anything unrecognized falls back to Neutral.
const (
	Neutral           = "neutre"
	Encouragement     = "encouragement"
	Empathy           = "empathie"
	ModerateEnthusiasm = "enthousiasme_modere"
	Curiosity         = "curiosite"
	Reflection        = "reflexion"
)

var known = map[string]bool{
	Neutral:            true,
	Encouragement:      true,
	Empathy:            true,
	ModerateEnthusiasm: true,
	Curiosity:          true,
	Reflection:         true,
}

// The language model is instructed to open its reply with a marker such
// as [EMOTION: encouragement]. Accent variants appear in practice.
var markerRe = regexp.MustCompile(`\[(?:EMOTION|ÉMOTION|emotion|émotion)\s*:\s*([a-zA-Z_éè]+)\s*\]`)

// Valid reports whether label is a recognized emotion.
func Valid(label string) bool {
	return known[label]
}

// Extract pulls the first emotion marker out of text. It returns the
// resolved label, the text with every marker removed, and whether a
// marker was found. Unknown labels resolve to Neutral.
func Extract(text string) (label, cleaned string, found bool) {
	match := markerRe.FindStringSubmatch(text)
	cleaned = markerRe.ReplaceAllString(text, "")
	cleaned = strings.TrimSpace(cleaned)

	if match == nil {
		return Neutral, cleaned, false
	}

	label = normalize(match[1])
	if !known[label] {
		label = Neutral
	}
	return label, cleaned, true
}

func normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "é", "e")
	s = strings.ReplaceAll(s, "è", "e")
	return s
}

// Heuristic guesses a label from punctuation when no marker was emitted.
func Heuristic(text string) string {
	switch {
	case strings.Contains(text, "?"):
		return Curiosity
	case strings.Contains(text, "!"):
		return Encouragement
	default:
		return Neutral
	}
}

// maxMarkerLen bounds how much stream head the tagger may hold back
// while waiting for a split marker to complete.
const maxMarkerLen = 64

// Tagger accumulates streamed model output and resolves the turn
// emotion once. The marker arrives at the head of the stream and may be
// split across deltas, so unresolved head bytes are buffered until the
// marker completes or cannot be one.
type Tagger struct {
	resolved bool
	found    bool
	label    string
	head     strings.Builder
}

// NewTagger returns a tagger defaulting to Neutral.
func NewTagger() *Tagger {
	return &Tagger{label: Neutral}
}

// Feed processes one streamed text delta and returns the text safe to
// forward. While a potential marker is incomplete the head is withheld
// and an empty string returned; it is released once resolved.
func (t *Tagger) Feed(delta string) string {
	if t.resolved {
		return delta
	}

	t.head.WriteString(delta)
	buf := t.head.String()
	trimmed := strings.TrimLeft(buf, " \n\t")

	if label, cleaned, found := Extract(buf); found {
		t.resolved = true
		t.found = true
		t.label = label
		t.head.Reset()
		return cleaned
	}

	// Still a plausible marker prefix. Hold the head back.
	if strings.HasPrefix(trimmed, "[") && !strings.Contains(trimmed, "]") && len(trimmed) < maxMarkerLen {
		return ""
	}
	if trimmed == "" {
		return ""
	}

	// The head cannot be a marker anymore.
	t.resolved = true
	t.head.Reset()
	return buf
}

// Flush releases any withheld head bytes at end of stream.
func (t *Tagger) Flush() string {
	t.resolved = true
	out := t.head.String()
	t.head.Reset()
	return out
}

// Label returns the resolved emotion, Neutral when no marker was seen.
func (t *Tagger) Label() string {
	return t.label
}

// Found reports whether an explicit marker was seen in the stream.
func (t *Tagger) Found() bool {
	return t.found
}

// Resolve returns the turn emotion for finalText: a marker seen during
// streaming wins, then a marker anywhere in the final text, then the
// punctuation heuristic.
func (t *Tagger) Resolve(finalText string) string {
	if t.found {
		return t.label
	}
	if label, _, found := Extract(finalText); found {
		return label
	}
	return Heuristic(finalText)
}
