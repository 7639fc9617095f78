package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddx-ranking-engine/internal/domain"
)

func ranked(list ...*domain.DiagnosisCandidate) []*domain.DiagnosisCandidate {
	domain.AssignRanks(list)
	return list
}

func TestRedFlagsFromTopCandidates(t *testing.T) {
	tests := []struct {
		name      string
		ranked    []*domain.DiagnosisCandidate
		wantFlags int
		wantFirst string
	}{
		{
			name:      "confident acute MI",
			ranked:    ranked(candidate("Acute Myocardial Infarction", 0.7, domain.CASE_BANK)),
			wantFlags: 1,
			wantFirst: "Possible acute coronary syndrome - immediate ECG and cardiac biomarkers required",
		},
		{
			name:   "score must exceed the threshold",
			ranked: ranked(candidate("Pulmonary Embolism", 0.6, domain.CASE_BANK)),
		},
		{
			name: "only the top three are inspected",
			ranked: ranked(
				candidate("Pneumonia", 0.95, domain.CASE_BANK),
				candidate("Asthma", 0.9, domain.CASE_BANK),
				candidate("Bronchitis", 0.85, domain.CASE_BANK),
				candidate("Aortic Dissection", 0.8, domain.CASE_BANK),
			),
		},
		{
			name: "each condition is flagged once",
			ranked: ranked(
				candidate("Acute Coronary Syndrome", 0.9, domain.CASE_BANK),
				candidate("Acute Myocardial Infarction", 0.8, domain.LABEL_MAPPING),
			),
			wantFlags: 1,
		},
	}

	detector := NewRedFlagDetector(quietLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := detector.Detect(&domain.PatientProfile{}, tt.ranked)
			require.Len(t, flags, tt.wantFlags)
			if tt.wantFirst != "" {
				assert.Equal(t, tt.wantFirst, flags[0].Flag)
				assert.Equal(t, domain.SEVERITY_CRITICAL, flags[0].Severity)
			}
		})
	}
}

func TestRedFlagChestPainWithDiaphoresis(t *testing.T) {
	detector := NewRedFlagDetector(quietLogger())
	profile := &domain.PatientProfile{Symptoms: []string{"Chest pain", "Sweating"}}

	t.Run("warning without a cardiac diagnosis", func(t *testing.T) {
		flags := detector.Detect(profile, nil)
		require.Len(t, flags, 1)
		assert.Equal(t, domain.SEVERITY_WARNING, flags[0].Severity)
	})

	t.Run("suppressed when acute coronary syndrome is already flagged", func(t *testing.T) {
		flags := detector.Detect(profile, ranked(candidate("Acute Coronary Syndrome", 0.8, domain.CASE_BANK)))
		require.Len(t, flags, 1)
		assert.Equal(t, domain.SEVERITY_CRITICAL, flags[0].Severity)
	})
}

func TestRedFlagVitals(t *testing.T) {
	profile := &domain.PatientProfile{Labs: map[string]string{
		"SpO2": "88%",
		"HR":   "130 bpm",
		"SBP":  "85",
		"temp": "39.2",
	}}
	flags := NewRedFlagDetector(quietLogger()).Detect(profile, nil)
	require.Len(t, flags, 3)
	assert.Equal(t, "Hypoxemia detected (SpO2: 88%) - immediate oxygen supplementation required", flags[0].Flag)
	assert.Equal(t, domain.SEVERITY_WARNING, flags[1].Severity)
	assert.Contains(t, flags[2].Flag, "SBP: 85")

	normal := &domain.PatientProfile{Labs: map[string]string{"spo2": "97", "heart_rate": "80", "systolic_bp": "unknown"}}
	assert.Empty(t, NewRedFlagDetector(quietLogger()).Detect(normal, nil))
}

func TestRedFlagsCapped(t *testing.T) {
	profile := &domain.PatientProfile{Labs: map[string]string{"SpO2": "80", "HR": "150", "SBP": "70"}}
	list := ranked(
		candidate("Acute Myocardial Infarction", 0.9, domain.CASE_BANK),
		candidate("Aortic Dissection", 0.9, domain.CASE_BANK),
		candidate("Pulmonary Embolism", 0.9, domain.CASE_BANK),
	)
	flags := NewRedFlagDetector(quietLogger()).Detect(profile, list)
	assert.Len(t, flags, maxRedFlags)
}
