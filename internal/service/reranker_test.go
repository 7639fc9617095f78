package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddx-ranking-engine/internal/domain"
)

func withMatched(c *domain.DiagnosisCandidate, matched ...string) *domain.DiagnosisCandidate {
	c.MatchedSymptoms = matched
	return c
}

func TestRerankDownweightsNarrowLabelMatches(t *testing.T) {
	candidates := []*domain.DiagnosisCandidate{
		candidate("Pneumonia", 0.8, domain.CASE_BANK),
		withMatched(candidate("Common Cold", 0.5, domain.LABEL_MAPPING), "cough", "fever"),
		withMatched(candidate("Influenza", 0.5, domain.LABEL_MAPPING), "cough", "fever", "myalgia"),
		withMatched(candidate("Bronchitis", 0.5, domain.LABEL_MAPPING), "cough", "fever", "myalgia", "sputum"),
		candidate("Asthma", 0.3, domain.QA_CONTEXT),
	}

	got := NewReranker(quietLogger()).Rerank(candidates)
	require.Len(t, got, 5)
	assert.Equal(t, []string{"Pneumonia", "Bronchitis", "Influenza", "Asthma", "Common Cold"}, names(got))

	scores := map[string]float64{}
	for i, c := range got {
		assert.Equal(t, i+1, c.Rank)
		scores[c.CanonicalName] = c.Score
	}
	assert.InDelta(t, 0.8, scores["Pneumonia"], 1e-9)
	assert.InDelta(t, 0.2, scores["Common Cold"], 1e-9)
	assert.InDelta(t, 0.35, scores["Influenza"], 1e-9)
	assert.InDelta(t, 0.5, scores["Bronchitis"], 1e-9)
	assert.InDelta(t, 0.3, scores["Asthma"], 1e-9)
}

func TestRerankLeavesScoresWithoutConfidentCaseBank(t *testing.T) {
	tests := []struct {
		name       string
		candidates []*domain.DiagnosisCandidate
	}{
		{
			name: "case bank at exactly fifty",
			candidates: []*domain.DiagnosisCandidate{
				candidate("Pneumonia", 0.5, domain.CASE_BANK),
				withMatched(candidate("Common Cold", 0.45, domain.LABEL_MAPPING), "cough"),
			},
		},
		{
			name: "no case bank candidates",
			candidates: []*domain.DiagnosisCandidate{
				withMatched(candidate("Common Cold", 0.45, domain.LABEL_MAPPING), "cough"),
				candidate("Asthma", 0.9, domain.CLINICAL_GUIDELINE),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewReranker(quietLogger()).Rerank(tt.candidates)
			for _, c := range got {
				if c.CanonicalName == "Common Cold" {
					assert.InDelta(t, 0.45, c.Score, 1e-9)
				}
			}
		})
	}
}

func TestRerankNeverDropsCandidates(t *testing.T) {
	candidates := []*domain.DiagnosisCandidate{
		candidate("Sepsis", 0.1, domain.FREE_TEXT),
		candidate("Asthma", 0.4, domain.CLINICAL_GUIDELINE),
		candidate("Pneumonia", 0.9, domain.CASE_BANK),
		candidate("Bronchitis", 0.2, domain.QA_CONTEXT),
	}
	got := NewReranker(quietLogger()).Rerank(candidates)
	assert.Equal(t, []string{"Pneumonia", "Asthma", "Bronchitis", "Sepsis"}, names(got))
}

func TestRerankEmpty(t *testing.T) {
	assert.Empty(t, NewReranker(nil).Rerank(nil))
}
