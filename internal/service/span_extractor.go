package service

import (
	"regexp"
	"strings"
)

const (
	// FallbackJustification is returned when the clinical text has no sentences
	FallbackJustification = "Clinical presentation as described"

	maxJustificationSentences = 2
	maxJustificationRunes     = 200
	justificationEllipsis     = "..."
)

var sentenceBoundary = regexp.MustCompile(`[.!?]+`)

// SpanExtractor picks the sentences of a clinical note that support a diagnosis
type SpanExtractor struct{}

// NewSpanExtractor creates a new SpanExtractor
func NewSpanExtractor() *SpanExtractor {
	return &SpanExtractor{}
}

// Extract returns up to two note sentences mentioning any of terms, joined
// with ". " and capped at 200 characters. Without a match it returns the
// first sentence uncapped, and without any sentence the fallback phrase.
func (s *SpanExtractor) Extract(text string, terms []string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return FallbackJustification
	}

	needles := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			needles = append(needles, t)
		}
	}

	var matched []string
	seen := make(map[string]bool)
	for _, sentence := range sentences {
		if seen[sentence] {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, needle := range needles {
			if strings.Contains(lower, needle) {
				matched = append(matched, sentence)
				seen[sentence] = true
				break
			}
		}
		if len(matched) == maxJustificationSentences {
			break
		}
	}

	if len(matched) == 0 {
		return sentences[0]
	}
	return truncateRunes(strings.Join(matched, ". "), maxJustificationRunes)
}

func splitSentences(text string) []string {
	parts := sentenceBoundary.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-len(justificationEllipsis)]) + justificationEllipsis
}
