// Package domain contains the core entities shared by the differential
// diagnosis engine: the patient profile a ranking run consumes, the
// diagnosis candidates it produces, and the contracts between pipeline stages.
package domain

import (
	"errors"
	"strings"
)

// EvidenceType tags the evidence source that produced a candidate
type EvidenceType string

const (
	CASE_BANK          EvidenceType = "case-bank-probabilistic"
	LABEL_MAPPING      EvidenceType = "label-mapping"
	QA_CONTEXT         EvidenceType = "qa-context-match"
	CLINICAL_GUIDELINE EvidenceType = "clinical-guideline"
	FREE_TEXT          EvidenceType = "free-text-reasoning"
)

// SourceKind records whether a candidate came from a fixed rule, observed
// evidence, or free-text generative reasoning
type SourceKind string

const (
	SOURCE_RULE     SourceKind = "rule"
	SOURCE_EVIDENCE SourceKind = "evidence"
	SOURCE_LLM      SourceKind = "llm"
)

// EvidenceLevel is the coarse strength tier attached to guideline candidates
type EvidenceLevel string

const (
	LEVEL_A       EvidenceLevel = "A"
	LEVEL_B       EvidenceLevel = "B"
	LEVEL_C       EvidenceLevel = "C"
	LEVEL_UNKNOWN EvidenceLevel = "UNKNOWN"
)

// CandidateStatus describes where a candidate ended up after filtering
type CandidateStatus string

const (
	STATUS_ACTIVE   CandidateStatus = "active"
	STATUS_EXCLUDED CandidateStatus = "excluded"
)

var (
	ErrProfileRequired  = errors.New("patient profile is required")
	ErrNoCandidateMatch = errors.New("no candidate matched the profile")
	ErrNotFound         = errors.New("not found")
)

// IsValid reports whether the evidence type is one of the known adapter tags
func (e EvidenceType) IsValid() bool {
	switch e {
	case CASE_BANK, LABEL_MAPPING, QA_CONTEXT, CLINICAL_GUIDELINE, FREE_TEXT:
		return true
	default:
		return false
	}
}

// IsValid validates the source kind
func (k SourceKind) IsValid() bool {
	switch k {
	case SOURCE_RULE, SOURCE_EVIDENCE, SOURCE_LLM:
		return true
	default:
		return false
	}
}

// Rank orders evidence levels so that A outranks B outranks C outranks UNKNOWN.
// An empty level ranks with UNKNOWN.
func (l EvidenceLevel) Rank() int {
	switch l {
	case LEVEL_A:
		return 3
	case LEVEL_B:
		return 2
	case LEVEL_C:
		return 1
	default:
		return 0
	}
}

// IsValid validates the evidence level
func (l EvidenceLevel) IsValid() bool {
	switch l {
	case LEVEL_A, LEVEL_B, LEVEL_C, LEVEL_UNKNOWN:
		return true
	default:
		return false
	}
}

// Demographics holds optional patient demographics. A nil Age means unknown.
type Demographics struct {
	Gender string `json:"gender,omitempty"`
	Age    *int   `json:"age,omitempty"`
}

// PatientProfile is the immutable input to a single ranking run
type PatientProfile struct {
	Symptoms     []string          `json:"symptoms"`
	Negations    []string          `json:"negations,omitempty"`
	Demographics *Demographics     `json:"demographics,omitempty"`
	Labs         map[string]string `json:"labs,omitempty"`
	ClinicalText string            `json:"clinical_text,omitempty"`
}

// Validate checks the structural shape of the profile. An empty symptom list
// is not an error here: sources that need symptoms simply return nothing.
func (p *PatientProfile) Validate() error {
	if p == nil {
		return ErrProfileRequired
	}
	if p.Demographics != nil && p.Demographics.Age != nil && *p.Demographics.Age < 0 {
		return NewValidationError("demographics.age", "age must not be negative", *p.Demographics.Age)
	}
	return nil
}

// Query returns the adapter-facing view of the profile
func (p *PatientProfile) Query() Query {
	return Query{
		Symptoms:     p.Symptoms,
		Negations:    p.Negations,
		ClinicalText: p.ClinicalText,
	}
}

// Gender returns the normalized gender or the empty string when unknown
func (p *PatientProfile) Gender() string {
	if p.Demographics == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(p.Demographics.Gender))
}

// Age returns the patient age and whether it is known
func (p *PatientProfile) Age() (int, bool) {
	if p.Demographics == nil || p.Demographics.Age == nil {
		return 0, false
	}
	return *p.Demographics.Age, true
}

// Query is what each evidence source sees of a patient profile
type Query struct {
	Symptoms     []string
	Negations    []string
	ClinicalText string
}

// HasSymptoms reports whether the query carries at least one non-blank symptom
func (q Query) HasSymptoms() bool {
	for _, s := range q.Symptoms {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

// Provenance records how a candidate was produced
type Provenance struct {
	SourceKind  SourceKind `json:"source_kind"`
	RuleApplied bool       `json:"rule_applied"`
	LLMUsed     bool       `json:"llm_used"`
}

// DiagnosisCandidate is a single scored diagnosis. It is produced by exactly
// one source, then owned by the pipeline, which may change Score, Rank and
// the exclusion fields. It is never mutated after the pipeline completes.
type DiagnosisCandidate struct {
	CanonicalName   string          `json:"canonical_name"`
	RawSourceID     string          `json:"raw_source_id,omitempty"`
	Rank            int             `json:"rank"`
	Score           float64         `json:"score"`
	Status          CandidateStatus `json:"status"`
	EvidenceType    EvidenceType    `json:"evidence_type"`
	Reasoning       string          `json:"reasoning,omitempty"`
	Provenance      Provenance      `json:"provenance"`
	EvidenceLevel   EvidenceLevel   `json:"evidence_level,omitempty"`
	Excluded        bool            `json:"excluded"`
	ExclusionReason string          `json:"exclusion_reason,omitempty"`

	// Patient-side symptom terms the source matched
	MatchedSymptoms []string `json:"matched_symptoms,omitempty"`
	// Terms used to locate supporting sentences in the clinical text
	SupportingSymptoms []string `json:"supporting_symptoms,omitempty"`
	SourceExcerpt      string   `json:"source_excerpt,omitempty"`
	Justification      string   `json:"justification,omitempty"`
	// Other sources that proposed the same diagnosis with a lower score
	CorroboratingSources []EvidenceType `json:"corroborating_sources,omitempty"`
}

// Key returns the case-insensitive identity used for deduplication
func (c *DiagnosisCandidate) Key() string {
	return CandidateKey(c.CanonicalName)
}

// CandidateKey normalizes a canonical name into a dedup key
func CandidateKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Clone returns a deep copy of the candidate
func (c *DiagnosisCandidate) Clone() *DiagnosisCandidate {
	if c == nil {
		return nil
	}
	out := *c
	out.MatchedSymptoms = append([]string(nil), c.MatchedSymptoms...)
	out.SupportingSymptoms = append([]string(nil), c.SupportingSymptoms...)
	out.CorroboratingSources = append([]EvidenceType(nil), c.CorroboratingSources...)
	return &out
}

// Exclude marks the candidate as excluded with the given reason
func (c *DiagnosisCandidate) Exclude(reason string) {
	c.Excluded = true
	c.ExclusionReason = reason
	c.Status = STATUS_EXCLUDED
}

// LogFields returns structured logging fields for a candidate
func (c *DiagnosisCandidate) LogFields() map[string]any {
	return map[string]any{
		"diagnosis":     c.CanonicalName,
		"rank":          c.Rank,
		"score":         c.Score,
		"evidence_type": string(c.EvidenceType),
		"excluded":      c.Excluded,
	}
}

// CloneCandidates deep-copies a candidate list
func CloneCandidates(in []*DiagnosisCandidate) []*DiagnosisCandidate {
	if in == nil {
		return nil
	}
	out := make([]*DiagnosisCandidate, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

// AssignRanks numbers candidates 1..n in their current order
func AssignRanks(candidates []*DiagnosisCandidate) {
	for i, c := range candidates {
		c.Rank = i + 1
	}
}

// RedFlag is an urgent finding raised alongside the ranked differential
type RedFlag struct {
	Severity string `json:"severity"`
	Flag     string `json:"flag"`
	Reason   string `json:"reason"`
}

const (
	SEVERITY_CRITICAL = "critical"
	SEVERITY_WARNING  = "warning"
)

// SourceStat summarizes one evidence source's contribution to a run
type SourceStat struct {
	Name         string       `json:"name"`
	EvidenceType EvidenceType `json:"evidence_type"`
	Available    bool         `json:"available"`
	Candidates   int          `json:"candidates"`
}

// RankResult is the detailed output of a ranking run. Excluded always holds
// every excluded candidate; in retain mode some of them also trail Candidates.
type RankResult struct {
	RunID      string                `json:"run_id"`
	InputHash  string                `json:"input_hash"`
	TopK       int                   `json:"top_k"`
	Candidates []*DiagnosisCandidate `json:"candidates"`
	Excluded   []*DiagnosisCandidate `json:"excluded,omitempty"`
	RedFlags   []RedFlag             `json:"red_flags,omitempty"`
	Sources    []SourceStat          `json:"sources"`
	DurationMs int64                 `json:"duration_ms"`
	Cached     bool                  `json:"cached"`
}
