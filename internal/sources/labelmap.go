package sources

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/corpus"
	"github.com/ddx-ranking-engine/internal/domain"
	"github.com/ddx-ranking-engine/internal/vocabulary"
	"github.com/ddx-ranking-engine/pkg/fuzzy"
)

const (
	labelMatchThreshold    = 0.4
	labelMatchedThreshold  = 0.5
	labelNegationThreshold = 0.7
	labelNegationPenalty   = 0.15
	maxMatchedSymptoms     = 5
)

type labelRow struct {
	label   string
	symptom string
}

type disease struct {
	id       string
	name     string
	symptoms []string
}

// LabelMapping scores diseases by how well their known symptom set covers
// the patient's symptoms
type LabelMapping struct {
	base
	diseases []disease
}

// NewLabelMapping loads a symptom to disease corpus. Disease labels are
// mapped through vocab; when vocab carries an ID table every label is
// treated as an identifier.
func NewLabelMapping(src corpus.Source, vocab *vocabulary.Vocabulary, logger *logrus.Logger, opts ...Option) *LabelMapping {
	o := buildOptions(corpus.LabelMappingSchema(), opts)
	lm := &LabelMapping{base: newBase(sourceName(src, "label-mapping"), domain.LABEL_MAPPING, logger)}

	rows := loadRows(&lm.base, src, *o.schema, func(r *corpus.Resolved, rec corpus.Record) (labelRow, bool) {
		label := r.String(rec, corpus.FieldLabel)
		symptom := fuzzy.Normalize(r.String(rec, corpus.FieldText))
		return labelRow{label: label, symptom: symptom}, label != "" && symptom != ""
	})

	byID := make(map[string]int)
	seen := make(map[string]map[string]struct{})
	for _, row := range rows {
		i, ok := byID[row.label]
		if !ok {
			name := vocab.Canonical(row.label)
			if vocab.IDCount() > 0 {
				name = vocab.Resolve(row.label)
			}
			i = len(lm.diseases)
			byID[row.label] = i
			lm.diseases = append(lm.diseases, disease{id: row.label, name: name})
			seen[row.label] = make(map[string]struct{})
		}
		if _, dup := seen[row.label][row.symptom]; dup {
			continue
		}
		seen[row.label][row.symptom] = struct{}{}
		lm.diseases[i].symptoms = append(lm.diseases[i].symptoms, row.symptom)
	}

	if lm.Available() {
		lm.logger.WithFields(logrus.Fields{
			"source":   lm.name,
			"diseases": len(lm.diseases),
		}).Debug("Label mapping indexed")
	}
	return lm
}

// Diseases returns the number of distinct disease labels indexed
func (lm *LabelMapping) Diseases() int {
	return len(lm.diseases)
}

// Generate returns up to topK diseases ordered by match score
func (lm *LabelMapping) Generate(q domain.Query, topK int) []*domain.DiagnosisCandidate {
	if !lm.Available() || topK <= 0 || !q.HasSymptoms() {
		return nil
	}
	symptoms := fuzzy.NormalizeAll(q.Symptoms)
	negations := fuzzy.NormalizeAll(q.Negations)

	var candidates []*domain.DiagnosisCandidate
	for i := range lm.diseases {
		d := &lm.diseases[i]
		score := lm.score(symptoms, negations, d.symptoms)
		if score <= 0 {
			continue
		}
		matched := matchedSymptoms(symptoms, d.symptoms)
		candidates = append(candidates, &domain.DiagnosisCandidate{
			CanonicalName:   d.name,
			RawSourceID:     d.id,
			Score:           score,
			Status:          domain.STATUS_ACTIVE,
			EvidenceType:    domain.LABEL_MAPPING,
			Provenance:      domain.Provenance{SourceKind: domain.SOURCE_EVIDENCE},
			MatchedSymptoms: matched,
			Reasoning:       labelReasoning(d.name, matched),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].CanonicalName < candidates[j].CanonicalName
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	domain.AssignRanks(candidates)
	return candidates
}

// score averages each patient symptom's best match against the disease,
// scales by the coverage boost n/(n+2) and subtracts a fixed penalty for
// every negated term that matches a disease symptom
func (lm *LabelMapping) score(symptoms, negations, diseaseSymptoms []string) float64 {
	if len(symptoms) == 0 || len(diseaseSymptoms) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range symptoms {
		_, best := fuzzy.Best(s, diseaseSymptoms, labelMatchThreshold)
		total += best
	}
	n := float64(len(symptoms))
	score := (total / n) * (n / (n + 2))

	penalty := 0.0
	for _, neg := range negations {
		for _, ds := range diseaseSymptoms {
			if fuzzy.SimilarityNormalized(neg, ds, labelMatchThreshold) >= labelNegationThreshold {
				penalty += labelNegationPenalty
			}
		}
	}
	return clamp01(score - penalty)
}

// matchedSymptoms lists the patient symptoms with a disease symptom at or
// above the matched threshold, at most five
func matchedSymptoms(symptoms, diseaseSymptoms []string) []string {
	var out []string
	for _, s := range symptoms {
		for _, ds := range diseaseSymptoms {
			if fuzzy.SimilarityNormalized(s, ds, labelMatchedThreshold) >= labelMatchedThreshold {
				out = append(out, s)
				break
			}
		}
		if len(out) == maxMatchedSymptoms {
			break
		}
	}
	return out
}

func labelReasoning(name string, matched []string) string {
	if len(matched) == 0 {
		return fmt.Sprintf("%s is suggested by overall symptom pattern analysis of the symptom-disease mapping.", name)
	}
	shown := matched
	if len(shown) > 3 {
		shown = shown[:3]
	}
	return fmt.Sprintf("%s is supported by the symptom-disease mapping. Key symptom matches include: %s. Derived from %d overlapping clinical features.",
		name, strings.Join(shown, ", "), len(matched))
}
