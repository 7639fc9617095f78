package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/domain"
)

// ExclusionMode controls what Exclude returns for excluded candidates
type ExclusionMode string

const (
	// EXCLUSION_REMOVE drops excluded candidates from the returned list
	EXCLUSION_REMOVE ExclusionMode = "remove"
	// EXCLUSION_RETAIN keeps excluded candidates in place, tagged
	EXCLUSION_RETAIN ExclusionMode = "retain"
)

// IsValid validates the exclusion mode
func (m ExclusionMode) IsValid() bool {
	return m == EXCLUSION_REMOVE || m == EXCLUSION_RETAIN
}

var (
	maleExclusive   = []string{"prostate cancer", "benign prostatic hyperplasia", "bph"}
	femaleExclusive = []string{"pregnancy", "ectopic pregnancy", "ovarian", "endometriosis", "menstrual"}
	pediatricOnly   = []string{"kawasaki disease", "croup"}
	adultOnset      = []string{"presbycusis"}

	normalWord = regexp.MustCompile(`\bnormal\b`)
)

const adultAge = 18

// LabRule excludes diagnoses whose defining lab finding came back normal
type LabRule struct {
	Lab       string
	Aliases   []string
	Diagnoses []string
	Reason    string
}

var defaultLabRules = []LabRule{
	{
		Lab:       "troponin",
		Aliases:   []string{"troponin", "troponini", "troponint", "hstroponin"},
		Diagnoses: []string{"acute myocardial infarction", "acute mi"},
		Reason:    "Normal troponin rules out acute MI",
	},
	{
		Lab:       "d-dimer",
		Aliases:   []string{"ddimer"},
		Diagnoses: []string{"pulmonary embolism", "deep vein thrombosis"},
		Reason:    "Normal D-dimer rules out venous thromboembolism",
	},
	{
		Lab:       "lipase",
		Aliases:   []string{"lipase", "serumlipase"},
		Diagnoses: []string{"acute pancreatitis"},
		Reason:    "Normal lipase rules out acute pancreatitis",
	},
}

// ExclusionRule is one clinical exclusion check. Evaluator returns the
// exclusion reason, or "" when the rule does not apply. Missing profile data
// always means the rule does not apply.
type ExclusionRule struct {
	Code        string
	Description string
	Evaluator   func(profile *domain.PatientProfile, name string) string
}

// ExclusionFilter removes diagnoses that are impossible or contradicted for
// the patient
type ExclusionFilter struct {
	logger *logrus.Logger
	mode   ExclusionMode
	rules  []*ExclusionRule
}

// NewExclusionFilter creates a new ExclusionFilter. An invalid mode falls
// back to EXCLUSION_REMOVE.
func NewExclusionFilter(mode ExclusionMode, logger *logrus.Logger) *ExclusionFilter {
	if logger == nil {
		logger = logrus.New()
	}
	if !mode.IsValid() {
		mode = EXCLUSION_REMOVE
	}
	f := &ExclusionFilter{logger: logger, mode: mode}
	f.initializeRules()
	return f
}

// Mode returns the configured exclusion mode
func (f *ExclusionFilter) Mode() ExclusionMode {
	return f.mode
}

// Rules returns the ordered rule list
func (f *ExclusionFilter) Rules() []*ExclusionRule {
	return f.rules
}

func (f *ExclusionFilter) initializeRules() {
	f.rules = []*ExclusionRule{
		{
			Code:        "GENDER",
			Description: "Gender-exclusive condition for the opposite gender",
			Evaluator:   evaluateGender,
		},
		{
			Code:        "AGE",
			Description: "Pediatric-only condition in an adult or adult-onset condition in a child",
			Evaluator:   evaluateAge,
		},
		{
			Code:        "NEGATION",
			Description: "Denied finding named in the diagnosis",
			Evaluator:   evaluateNegation,
		},
		{
			Code:        "LAB",
			Description: "Normal lab result rules out the diagnosis",
			Evaluator:   evaluateLabs,
		},
	}
}

// ShouldExclude evaluates the rules in order and returns the reason given by
// the first rule that applies
func (f *ExclusionFilter) ShouldExclude(profile *domain.PatientProfile, name string) (bool, string) {
	if profile == nil {
		return false, ""
	}
	lower := strings.ToLower(name)
	for _, rule := range f.rules {
		if reason := rule.Evaluator(profile, lower); reason != "" {
			return true, reason
		}
	}
	return false, ""
}

// Partition splits candidates into kept and excluded lists, tagging excluded
// candidates in place. Order within each list is preserved.
func (f *ExclusionFilter) Partition(profile *domain.PatientProfile, candidates []*domain.DiagnosisCandidate) (kept, excluded []*domain.DiagnosisCandidate) {
	kept = make([]*domain.DiagnosisCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if ok, reason := f.ShouldExclude(profile, c.CanonicalName); ok {
			c.Exclude(reason)
			f.logger.WithFields(logrus.Fields{
				"diagnosis": c.CanonicalName,
				"reason":    reason,
			}).Info("Excluding diagnosis")
			excluded = append(excluded, c)
			continue
		}
		if c.Status == "" {
			c.Status = domain.STATUS_ACTIVE
		}
		kept = append(kept, c)
	}
	return kept, excluded
}

// Exclude applies the filter. In remove mode excluded candidates are dropped;
// in retain mode they stay in place, tagged. Ranks are recomputed either way.
func (f *ExclusionFilter) Exclude(profile *domain.PatientProfile, candidates []*domain.DiagnosisCandidate) []*domain.DiagnosisCandidate {
	kept, excluded := f.Partition(profile, candidates)
	if f.mode == EXCLUSION_REMOVE || len(excluded) == 0 {
		domain.AssignRanks(kept)
		return kept
	}

	out := make([]*domain.DiagnosisCandidate, 0, len(kept)+len(excluded))
	for _, c := range candidates {
		if c != nil {
			out = append(out, c)
		}
	}
	domain.AssignRanks(out)
	return out
}

func evaluateGender(profile *domain.PatientProfile, name string) string {
	var conflicting []string
	var gender string
	switch profile.Gender() {
	case "male", "m", "man":
		conflicting, gender = femaleExclusive, "male"
	case "female", "f", "woman":
		conflicting, gender = maleExclusive, "female"
	default:
		return ""
	}
	for _, term := range conflicting {
		if strings.Contains(name, term) {
			return fmt.Sprintf("Patient is %s, cannot have %s", gender, name)
		}
	}
	return ""
}

func evaluateAge(profile *domain.PatientProfile, name string) string {
	age, ok := profile.Age()
	if !ok {
		return ""
	}
	terms := pediatricOnly
	if age < adultAge {
		terms = adultOnset
	}
	for _, term := range terms {
		if strings.Contains(name, term) {
			return fmt.Sprintf("Patient age %d incompatible with %s", age, name)
		}
	}
	return ""
}

func evaluateNegation(profile *domain.PatientProfile, name string) string {
	for _, negation := range profile.Negations {
		term := strings.ToLower(strings.TrimSpace(negation))
		if term == "" {
			continue
		}
		if strings.Contains(name, term) {
			return fmt.Sprintf("Patient denies %s, contradicts %s", term, name)
		}
	}
	return ""
}

func evaluateLabs(profile *domain.PatientProfile, name string) string {
	if len(profile.Labs) == 0 {
		return ""
	}
	labs := normalizedLabs(profile.Labs)
	for _, rule := range defaultLabRules {
		if !containsAny(name, rule.Diagnoses) {
			continue
		}
		for _, alias := range rule.Aliases {
			if value, ok := labs[alias]; ok && isNormal(value) {
				return rule.Reason
			}
		}
	}
	return ""
}

// normalizedLabs keys lab values by their lower-cased alphanumeric name so
// that "D-Dimer", "d_dimer" and "ddimer" collide
func normalizedLabs(labs map[string]string) map[string]string {
	out := make(map[string]string, len(labs))
	for k, v := range labs {
		out[labKey(k)] = strings.ToLower(v)
	}
	return out
}

func labKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isNormal reports whether a lab value reads as normal. "abnormal" never counts.
func isNormal(value string) bool {
	return normalWord.MatchString(value) && !strings.Contains(value, "abnormal")
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
