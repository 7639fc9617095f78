package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSpanExtract(t *testing.T) {
	note := "Patient reports chest pain radiating to the left arm. No fever! Diaphoresis noted on arrival? Vitals stable."

	tests := []struct {
		name  string
		text  string
		terms []string
		want  string
	}{
		{
			name:  "first two matching sentences in document order",
			text:  note,
			terms: []string{"diaphoresis", "chest pain"},
			want:  "Patient reports chest pain radiating to the left arm. Diaphoresis noted on arrival",
		},
		{
			name:  "case-insensitive match",
			text:  note,
			terms: []string{"VITALS"},
			want:  "Vitals stable",
		},
		{
			name:  "no match falls back to the first sentence",
			text:  note,
			terms: []string{"rash"},
			want:  "Patient reports chest pain radiating to the left arm",
		},
		{
			name:  "no terms falls back to the first sentence",
			text:  note,
			terms: nil,
			want:  "Patient reports chest pain radiating to the left arm",
		},
		{
			name:  "repeated sentences count once",
			text:  "Cough today. Cough today. Fever too.",
			terms: []string{"cough", "fever"},
			want:  "Cough today. Fever too",
		},
		{
			name:  "empty text",
			text:  "",
			terms: []string{"cough"},
			want:  FallbackJustification,
		},
		{
			name:  "punctuation only",
			text:  " ...!? ",
			terms: []string{"cough"},
			want:  FallbackJustification,
		},
	}

	extractor := NewSpanExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractor.Extract(tt.text, tt.terms))
		})
	}
}

func TestSpanExtractTruncates(t *testing.T) {
	first := "cough " + strings.Repeat("é", 150)
	second := "dry cough " + strings.Repeat("ü", 150)
	text := first + ". " + second + "."

	got := NewSpanExtractor().Extract(text, []string{"cough"})
	assert.Equal(t, 200, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.True(t, strings.HasPrefix(got, first+". dry cough"))
}

func TestSpanExtractCollapsesRepeatedSentences(t *testing.T) {
	sentence := "cough " + strings.Repeat("é", 150)
	text := sentence + ". " + sentence + "."

	got := NewSpanExtractor().Extract(text, []string{"cough"})
	assert.Equal(t, sentence, got)
	assert.Equal(t, 156, utf8.RuneCountInString(got))
}

func TestSpanExtractFallbackIsUntruncated(t *testing.T) {
	sentence := "Patient stable " + strings.Repeat("a", 250)

	got := NewSpanExtractor().Extract(sentence+". Afebrile.", []string{"cough"})
	assert.Equal(t, sentence, got)
}
