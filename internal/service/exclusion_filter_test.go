package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddx-ranking-engine/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestShouldExclude(t *testing.T) {
	filter := NewExclusionFilter(EXCLUSION_REMOVE, quietLogger())

	tests := []struct {
		name       string
		profile    *domain.PatientProfile
		diagnosis  string
		wantExcl   bool
		wantReason string
	}{
		{
			name:       "female cannot have prostate condition",
			profile:    &domain.PatientProfile{Demographics: &domain.Demographics{Gender: "Female"}},
			diagnosis:  "Benign Prostatic Hyperplasia",
			wantExcl:   true,
			wantReason: "Patient is female, cannot have benign prostatic hyperplasia",
		},
		{
			name:      "male cannot have pregnancy",
			profile:   &domain.PatientProfile{Demographics: &domain.Demographics{Gender: "male"}},
			diagnosis: "Ectopic Pregnancy",
			wantExcl:  true,
		},
		{
			name:      "male can have prostate cancer",
			profile:   &domain.PatientProfile{Demographics: &domain.Demographics{Gender: "M"}},
			diagnosis: "Prostate Cancer",
		},
		{
			name:      "unknown gender never excludes",
			profile:   &domain.PatientProfile{Demographics: &domain.Demographics{Gender: "unspecified"}},
			diagnosis: "Ovarian Cyst",
		},
		{
			name:      "missing demographics never excludes",
			profile:   &domain.PatientProfile{},
			diagnosis: "BPH",
		},
		{
			name:       "adult cannot have pediatric-only condition",
			profile:    &domain.PatientProfile{Demographics: &domain.Demographics{Age: intPtr(30)}},
			diagnosis:  "Kawasaki Disease",
			wantExcl:   true,
			wantReason: "Patient age 30 incompatible with kawasaki disease",
		},
		{
			name:      "child can have pediatric-only condition",
			profile:   &domain.PatientProfile{Demographics: &domain.Demographics{Age: intPtr(5)}},
			diagnosis: "Kawasaki Disease",
		},
		{
			name:      "child cannot have adult-onset condition",
			profile:   &domain.PatientProfile{Demographics: &domain.Demographics{Age: intPtr(0)}},
			diagnosis: "Presbycusis",
			wantExcl:  true,
		},
		{
			name:      "unknown age never excludes",
			profile:   &domain.PatientProfile{Demographics: &domain.Demographics{Gender: "female"}},
			diagnosis: "Croup",
		},
		{
			name:       "denied finding named in diagnosis",
			profile:    &domain.PatientProfile{Negations: []string{"Chest Pain"}},
			diagnosis:  "Non-cardiac Chest Pain",
			wantExcl:   true,
			wantReason: "Patient denies chest pain, contradicts non-cardiac chest pain",
		},
		{
			name:      "blank negation is ignored",
			profile:   &domain.PatientProfile{Negations: []string{"  "}},
			diagnosis: "Pneumonia",
		},
		{
			name:       "normal troponin rules out acute MI",
			profile:    &domain.PatientProfile{Labs: map[string]string{"Troponin": "Normal"}},
			diagnosis:  "Acute Myocardial Infarction",
			wantExcl:   true,
			wantReason: "Normal troponin rules out acute MI",
		},
		{
			name:      "abnormal troponin does not rule out acute MI",
			profile:   &domain.PatientProfile{Labs: map[string]string{"troponin": "abnormal"}},
			diagnosis: "Acute Myocardial Infarction",
		},
		{
			name:      "normal d-dimer rules out pulmonary embolism",
			profile:   &domain.PatientProfile{Labs: map[string]string{"D-Dimer": "normal"}},
			diagnosis: "Pulmonary Embolism",
			wantExcl:  true,
		},
		{
			name:      "normal d-dimer rules out deep vein thrombosis",
			profile:   &domain.PatientProfile{Labs: map[string]string{"d_dimer": "within normal limits"}},
			diagnosis: "Deep Vein Thrombosis",
			wantExcl:  true,
		},
		{
			name:      "normal lipase rules out acute pancreatitis",
			profile:   &domain.PatientProfile{Labs: map[string]string{"lipase": "normal range"}},
			diagnosis: "Acute Pancreatitis",
			wantExcl:  true,
		},
		{
			name:      "lab rule only touches its own diagnoses",
			profile:   &domain.PatientProfile{Labs: map[string]string{"troponin": "normal"}},
			diagnosis: "Pneumonia",
		},
		{
			name:      "numeric lab value never excludes",
			profile:   &domain.PatientProfile{Labs: map[string]string{"troponin": "0.01 ng/mL"}},
			diagnosis: "Acute MI",
		},
		{
			name: "first matching rule wins",
			profile: &domain.PatientProfile{
				Demographics: &domain.Demographics{Gender: "female"},
				Negations:    []string{"prostate"},
			},
			diagnosis:  "Prostate Cancer",
			wantExcl:   true,
			wantReason: "Patient is female, cannot have prostate cancer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			excluded, reason := filter.ShouldExclude(tt.profile, tt.diagnosis)
			assert.Equal(t, tt.wantExcl, excluded)
			if tt.wantExcl {
				assert.NotEmpty(t, reason)
			} else {
				assert.Empty(t, reason)
			}
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, reason)
			}
		})
	}
}

func TestShouldExcludeNilProfile(t *testing.T) {
	excluded, reason := NewExclusionFilter(EXCLUSION_REMOVE, quietLogger()).ShouldExclude(nil, "Prostate Cancer")
	assert.False(t, excluded)
	assert.Empty(t, reason)
}

func exclusionFixture() (*domain.PatientProfile, []*domain.DiagnosisCandidate) {
	profile := &domain.PatientProfile{
		Symptoms:     []string{"chest pain", "diaphoresis"},
		Negations:    []string{"fever"},
		Demographics: &domain.Demographics{Gender: "female"},
	}
	candidates := []*domain.DiagnosisCandidate{
		candidate("Prostate Cancer", 0.9, domain.CASE_BANK),
		candidate("Acute Coronary Syndrome", 0.5, domain.CASE_BANK),
		candidate("Dengue Fever", 0.4, domain.LABEL_MAPPING),
		candidate("Panic Attack", 0.2, domain.LABEL_MAPPING),
	}
	return profile, candidates
}

func TestPartition(t *testing.T) {
	profile, candidates := exclusionFixture()
	kept, excluded := NewExclusionFilter(EXCLUSION_REMOVE, quietLogger()).Partition(profile, candidates)

	assert.Equal(t, []string{"Acute Coronary Syndrome", "Panic Attack"}, names(kept))
	require.Equal(t, []string{"Prostate Cancer", "Dengue Fever"}, names(excluded))
	for _, c := range excluded {
		assert.True(t, c.Excluded)
		assert.Equal(t, domain.STATUS_EXCLUDED, c.Status)
		assert.NotEmpty(t, c.ExclusionReason)
	}
	for _, c := range kept {
		assert.False(t, c.Excluded)
		assert.Equal(t, domain.STATUS_ACTIVE, c.Status)
	}
}

func TestExcludeModes(t *testing.T) {
	t.Run("remove drops excluded candidates", func(t *testing.T) {
		profile, candidates := exclusionFixture()
		got := NewExclusionFilter(EXCLUSION_REMOVE, quietLogger()).Exclude(profile, candidates)
		assert.Equal(t, []string{"Acute Coronary Syndrome", "Panic Attack"}, names(got))
	})

	t.Run("retain keeps excluded candidates tagged in place", func(t *testing.T) {
		profile, candidates := exclusionFixture()
		got := NewExclusionFilter(EXCLUSION_RETAIN, quietLogger()).Exclude(profile, candidates)
		require.Len(t, got, 4)
		assert.Equal(t, "Prostate Cancer", got[0].CanonicalName)
		assert.True(t, got[0].Excluded)
		assert.False(t, got[1].Excluded)
		assert.True(t, got[2].Excluded)
	})

	t.Run("ranks are contiguous after removal", func(t *testing.T) {
		profile, candidates := exclusionFixture()
		domain.AssignRanks(candidates)
		got := NewExclusionFilter(EXCLUSION_REMOVE, quietLogger()).Exclude(profile, candidates)
		require.Len(t, got, 2)
		for i, c := range got {
			assert.Equal(t, i+1, c.Rank)
		}
	})

	t.Run("ranks follow position in retain mode", func(t *testing.T) {
		profile, candidates := exclusionFixture()
		got := NewExclusionFilter(EXCLUSION_RETAIN, quietLogger()).Exclude(profile, candidates)
		for i, c := range got {
			assert.Equal(t, i+1, c.Rank)
		}
	})

	t.Run("invalid mode falls back to remove", func(t *testing.T) {
		filter := NewExclusionFilter(ExclusionMode("hide"), quietLogger())
		assert.Equal(t, EXCLUSION_REMOVE, filter.Mode())
	})
}

func TestExclusionRuleOrder(t *testing.T) {
	rules := NewExclusionFilter(EXCLUSION_REMOVE, nil).Rules()
	codes := make([]string, len(rules))
	for i, r := range rules {
		codes[i] = r.Code
	}
	assert.Equal(t, []string{"GENDER", "AGE", "NEGATION", "LAB"}, codes)
}
