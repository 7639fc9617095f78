package sources

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/corpus"
	"github.com/ddx-ranking-engine/internal/domain"
	"github.com/ddx-ranking-engine/internal/vocabulary"
	"github.com/ddx-ranking-engine/pkg/fuzzy"
)

const (
	caseGatherThreshold = 0.7
	caseMatchThreshold  = 0.8
	caseNegationPenalty = 0.5
	caseNegationWeight  = 0.3
	primaryVoteWeight   = 1.0
	defaultMaxCases     = 10
	minIndexedTermLen   = 3
)

type caseRow struct {
	rawLabel     string
	label        string
	terms        []string
	differential []corpus.Vote
}

// CaseBank scores diagnoses by voting over the prior cases whose evidence
// best overlaps the patient's symptoms
type CaseBank struct {
	base
	cases     []caseRow
	byTerm    map[string][]int
	terms     []string
	byDisease map[string][]int
	maxCases  int
}

// NewCaseBank loads a case corpus and builds its term and disease indices
func NewCaseBank(src corpus.Source, vocab *vocabulary.Vocabulary, logger *logrus.Logger, opts ...Option) *CaseBank {
	o := buildOptions(corpus.CaseBankSchema(), opts)
	cb := &CaseBank{
		base:      newBase(sourceName(src, "case-bank"), domain.CASE_BANK, logger),
		byTerm:    make(map[string][]int),
		byDisease: make(map[string][]int),
		maxCases:  o.maxCases,
	}

	cb.cases = loadRows(&cb.base, src, *o.schema, func(r *corpus.Resolved, rec corpus.Record) (caseRow, bool) {
		raw := r.String(rec, corpus.FieldPathology)
		label := vocab.Canonical(raw)
		terms := fuzzy.NormalizeAll(r.Terms(rec, corpus.FieldEvidences))
		if label == "" && len(terms) == 0 {
			return caseRow{}, false
		}
		var diff []corpus.Vote
		for _, v := range corpus.AsDifferential(r.Value(rec, corpus.FieldDifferential)) {
			if name := vocab.Canonical(v.Name); name != "" {
				diff = append(diff, corpus.Vote{Name: name, Probability: v.Probability})
			}
		}
		return caseRow{rawLabel: raw, label: label, terms: terms, differential: diff}, true
	})

	for idx, c := range cb.cases {
		if c.label != "" {
			key := domain.CandidateKey(c.label)
			cb.byDisease[key] = append(cb.byDisease[key], idx)
		}
		for _, term := range c.terms {
			if len([]rune(term)) < minIndexedTermLen {
				continue
			}
			if n := len(cb.byTerm[term]); n > 0 && cb.byTerm[term][n-1] == idx {
				continue
			}
			cb.byTerm[term] = append(cb.byTerm[term], idx)
		}
	}
	cb.terms = make([]string, 0, len(cb.byTerm))
	for term := range cb.byTerm {
		cb.terms = append(cb.terms, term)
	}
	sort.Strings(cb.terms)

	if cb.Available() {
		cb.logger.WithFields(logrus.Fields{
			"source":   cb.name,
			"diseases": len(cb.byDisease),
			"terms":    len(cb.terms),
		}).Debug("Case bank indexed")
	}
	return cb
}

// Diseases returns the number of distinct primary diagnoses indexed
func (cb *CaseBank) Diseases() int {
	return len(cb.byDisease)
}

type scoredCase struct {
	idx     int
	score   float64
	matched []string
}

type tally struct {
	name    string
	raw     string
	votes   []float64
	matched []string
}

// Generate returns up to topK diagnoses whose scores sum to 1 when any is
// nonzero
func (cb *CaseBank) Generate(q domain.Query, topK int) []*domain.DiagnosisCandidate {
	if !cb.Available() || topK <= 0 || !q.HasSymptoms() {
		return nil
	}
	symptoms := fuzzy.NormalizeAll(q.Symptoms)
	negations := fuzzy.NormalizeAll(q.Negations)

	cases := cb.scoreCases(symptoms, negations, cb.gatherCases(symptoms))
	if len(cases) == 0 {
		cb.logger.WithField("source", cb.name).Debug("No cases matched symptoms")
		return nil
	}
	if len(cases) > cb.maxCases {
		cases = cases[:cb.maxCases]
	}

	tallies := cb.tallyVotes(cases)
	type ranked struct {
		t     *tally
		score float64
	}
	out := make([]ranked, 0, len(tallies))
	for _, t := range tallies {
		sum := 0.0
		for _, v := range t.votes {
			sum += v
		}
		avg := sum / float64(len(t.votes))
		weight := float64(len(t.votes)) / 10
		if weight > 1 {
			weight = 1
		}
		out = append(out, ranked{t: t, score: avg * (0.7 + 0.3*weight)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].t.name < out[j].t.name
	})
	if len(out) > topK {
		out = out[:topK]
	}

	total := 0.0
	for _, r := range out {
		total += r.score
	}
	if total == 0 {
		cb.logger.WithFields(logrus.Fields{
			"source":     cb.name,
			"candidates": len(out),
		}).Debug("Case-bank scores sum to zero, leaving them unnormalized")
	}

	candidates := make([]*domain.DiagnosisCandidate, 0, len(out))
	for _, r := range out {
		score := r.score
		if total > 0 {
			score /= total
		}
		candidates = append(candidates, &domain.DiagnosisCandidate{
			CanonicalName:   r.t.name,
			RawSourceID:     r.t.raw,
			Score:           score,
			Status:          domain.STATUS_ACTIVE,
			EvidenceType:    domain.CASE_BANK,
			Provenance:      domain.Provenance{SourceKind: domain.SOURCE_EVIDENCE},
			MatchedSymptoms: r.t.matched,
			Reasoning: fmt.Sprintf("%s suggested by symptom pattern analysis of %d similar cases (probability %.1f%%, %d votes).",
				r.t.name, len(cases), score*100, len(r.t.votes)),
		})
	}
	domain.AssignRanks(candidates)
	return candidates
}

// gatherCases collects every case sharing an exact or fuzzy evidence term
// with the patient
func (cb *CaseBank) gatherCases(symptoms []string) []int {
	seen := make(map[int]struct{})
	for _, s := range symptoms {
		for _, idx := range cb.byTerm[s] {
			seen[idx] = struct{}{}
		}
		for _, term := range cb.terms {
			if fuzzy.SimilarityNormalized(s, term, caseGatherThreshold) >= caseGatherThreshold {
				for _, idx := range cb.byTerm[term] {
					seen[idx] = struct{}{}
				}
			}
		}
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// scoreCases scores each case as the matched share of patient symptoms minus
// a penalty for every case term the patient denies. Cases scoring zero are
// dropped and the rest are ordered by score, then corpus position.
func (cb *CaseBank) scoreCases(symptoms, negations []string, indices []int) []scoredCase {
	out := make([]scoredCase, 0, len(indices))
	for _, idx := range indices {
		terms := cb.cases[idx].terms
		if len(terms) == 0 {
			continue
		}
		var matched []string
		for _, s := range symptoms {
			for _, term := range terms {
				if fuzzy.SimilarityNormalized(s, term, caseMatchThreshold) >= caseMatchThreshold {
					matched = append(matched, s)
					break
				}
			}
		}
		penalty := 0.0
		for _, term := range terms {
			for _, n := range negations {
				if fuzzy.SimilarityNormalized(term, n, caseMatchThreshold) >= caseMatchThreshold {
					penalty += caseNegationPenalty
				}
			}
		}
		score := float64(len(matched))/float64(len(symptoms)) - caseNegationWeight*penalty
		if score <= 0 {
			continue
		}
		out = append(out, scoredCase{idx: idx, score: score, matched: matched})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].idx < out[j].idx
	})
	return out
}

// tallyVotes counts the primary label of each case as a full vote and each
// differential entry as a vote of its stated probability
func (cb *CaseBank) tallyVotes(cases []scoredCase) []*tally {
	byKey := make(map[string]*tally)
	var order []*tally
	vote := func(name, raw string, weight float64, matched []string) {
		key := domain.CandidateKey(name)
		t, ok := byKey[key]
		if !ok {
			t = &tally{name: name, raw: raw}
			byKey[key] = t
			order = append(order, t)
		}
		t.votes = append(t.votes, weight)
		t.matched = mergeTerms(t.matched, matched)
	}

	for _, sc := range cases {
		c := cb.cases[sc.idx]
		if c.label != "" {
			vote(c.label, c.rawLabel, primaryVoteWeight, sc.matched)
		}
		for _, d := range c.differential {
			vote(d.Name, d.Name, clamp01(d.Probability), sc.matched)
		}
	}
	return order
}

func mergeTerms(into, add []string) []string {
	for _, a := range add {
		found := false
		for _, existing := range into {
			if existing == a {
				found = true
				break
			}
		}
		if !found {
			into = append(into, a)
		}
	}
	return into
}

func sourceName(src corpus.Source, fallback string) string {
	if src == nil || src.Name() == "" {
		return fallback
	}
	return src.Name()
}
