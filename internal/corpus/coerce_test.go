package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsTerms(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{"nil", nil, nil},
		{"list", []any{"fever", "", 3.0}, []string{"fever", "3"}},
		{"string list", []string{"a", " b "}, []string{"a", "b"}},
		{"delimited", "chest pain, sweating", []string{"chest pain", "sweating"}},
		{"map keys sorted with string values", map[string]any{"pain_site": "chest", "fever": true}, []string{"fever", "pain_site", "chest"}},
		{"list literal", "['E_91', 'E_53']", []string{"E_91", "E_53"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AsTerms(tt.input))
		})
	}
}

func TestAsAnswer(t *testing.T) {
	assert.Equal(t, "pneumonia", AsAnswer(" pneumonia "))
	assert.Equal(t, "asthma", AsAnswer([]any{"asthma", "copd"}))
	assert.Equal(t, "sepsis", AsAnswer(map[string]any{"text": []any{"sepsis"}, "answer_start": []any{3.0}}))
	assert.Empty(t, AsAnswer(map[string]any{"answer_start": 1.0}))
}

func TestAsDifferential(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []Vote
	}{
		{
			name: "objects",
			input: []any{
				map[string]any{"disease": "Bronchitis", "probability": 0.3},
				map[string]any{"pathology": "URTI", "prob": 0.2},
				map[string]any{"PATHOLOGY": "Pneumonia"},
				map[string]any{"probability": 0.9},
			},
			want: []Vote{{"Bronchitis", 0.3}, {"URTI", 0.2}, {"Pneumonia", DefaultVoteProbability}},
		},
		{
			name:  "pairs",
			input: []any{[]any{"Bronchitis", 0.19}, []any{"Pneumonia"}},
			want:  []Vote{{"Bronchitis", 0.19}, {"Pneumonia", DefaultVoteProbability}},
		},
		{
			name:  "python literal string",
			input: "[['Bronchitis', 0.19], ['Influenza', 0.05]]",
			want:  []Vote{{"Bronchitis", 0.19}, {"Influenza", 0.05}},
		},
		{"garbage string", "not a list", nil},
		{"wrong type", 42.0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AsDifferential(tt.input))
		})
	}
}

func TestAsFloatAndString(t *testing.T) {
	f, ok := AsFloat("0.25")
	assert.True(t, ok)
	assert.Equal(t, 0.25, f)

	_, ok = AsFloat("high")
	assert.False(t, ok)

	assert.Equal(t, "630", AsString(630.0))
	assert.Equal(t, "7", AsString(7))
	assert.Equal(t, "", AsString([]any{}))
}

func TestLongText(t *testing.T) {
	rec := Record{
		"b_summary": "Patients with wheeze should be assessed for asthma.",
		"a_note":    "Consider spirometry in every adult with cough.",
		"id":        "short",
		"year":      2020,
	}
	assert.Equal(t,
		"Consider spirometry in every adult with cough. Patients with wheeze should be assessed for asthma.",
		LongText(rec, 20))
}
