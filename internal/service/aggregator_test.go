package service

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddx-ranking-engine/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func candidate(name string, score float64, evidence domain.EvidenceType) *domain.DiagnosisCandidate {
	return &domain.DiagnosisCandidate{
		CanonicalName: name,
		Score:         score,
		Status:        domain.STATUS_ACTIVE,
		EvidenceType:  evidence,
		Provenance:    domain.Provenance{SourceKind: domain.SOURCE_EVIDENCE},
	}
}

func names(list []*domain.DiagnosisCandidate) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.CanonicalName
	}
	return out
}

func TestAggregate(t *testing.T) {
	caseBank := []*domain.DiagnosisCandidate{
		candidate("Pneumonia", 0.6, domain.CASE_BANK),
		candidate("Bronchitis", 0.3, domain.CASE_BANK),
	}
	labels := []*domain.DiagnosisCandidate{
		candidate("PNEUMONIA", 0.7, domain.LABEL_MAPPING),
		candidate("Asthma", 0.3, domain.LABEL_MAPPING),
	}
	qa := []*domain.DiagnosisCandidate{
		candidate(" bronchitis", 0.3, domain.QA_CONTEXT),
	}

	got := NewAggregator(quietLogger()).Aggregate(caseBank, labels, qa)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"PNEUMONIA", "Asthma", "Bronchitis"}, names(got))

	t.Run("higher score wins and records the loser", func(t *testing.T) {
		assert.Equal(t, domain.LABEL_MAPPING, got[0].EvidenceType)
		assert.Equal(t, 0.7, got[0].Score)
		assert.Equal(t, []domain.EvidenceType{domain.CASE_BANK}, got[0].CorroboratingSources)
	})

	t.Run("equal score keeps the first", func(t *testing.T) {
		assert.Equal(t, domain.CASE_BANK, got[2].EvidenceType)
		assert.Equal(t, []domain.EvidenceType{domain.QA_CONTEXT}, got[2].CorroboratingSources)
	})

	t.Run("ranks follow score order", func(t *testing.T) {
		for i, c := range got {
			assert.Equal(t, i+1, c.Rank)
		}
	})

	t.Run("inputs are not modified", func(t *testing.T) {
		assert.Nil(t, caseBank[0].CorroboratingSources)
		assert.Equal(t, 0, caseBank[1].Rank)
		assert.Nil(t, labels[0].CorroboratingSources)
	})
}

func TestAggregateSkipsNilAndBlankNames(t *testing.T) {
	got := NewAggregator(quietLogger()).Aggregate(
		[]*domain.DiagnosisCandidate{nil, candidate("  ", 0.9, domain.CASE_BANK)},
		[]*domain.DiagnosisCandidate{candidate("Asthma", 0.2, domain.QA_CONTEXT)},
	)
	require.Len(t, got, 1)
	assert.Equal(t, "Asthma", got[0].CanonicalName)
}

func TestAggregateCarriesCorroborationAcrossReplacements(t *testing.T) {
	got := NewAggregator(quietLogger()).Aggregate(
		[]*domain.DiagnosisCandidate{candidate("Asthma", 0.2, domain.CASE_BANK)},
		[]*domain.DiagnosisCandidate{candidate("asthma", 0.4, domain.LABEL_MAPPING)},
		[]*domain.DiagnosisCandidate{candidate("Asthma", 0.5, domain.CLINICAL_GUIDELINE)},
	)
	require.Len(t, got, 1)
	assert.Equal(t, domain.CLINICAL_GUIDELINE, got[0].EvidenceType)
	assert.ElementsMatch(t, []domain.EvidenceType{domain.CASE_BANK, domain.LABEL_MAPPING}, got[0].CorroboratingSources)
}

func TestAggregateEmpty(t *testing.T) {
	got := NewAggregator(nil).Aggregate()
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
