package sources

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/corpus"
	"github.com/ddx-ranking-engine/internal/domain"
	"github.com/ddx-ranking-engine/internal/vocabulary"
	"github.com/ddx-ranking-engine/pkg/fuzzy"
)

const (
	guidelineNoteWords     = 50
	guidelineDocWords      = 100
	guidelineOverlapWeight = 0.1
	guidelineMinScore      = 0.5
	guidelineFallbackLen   = 20
)

var ignoredConditions = map[string]struct{}{
	"unknown": {},
	"none":    {},
	"n/a":     {},
	"general": {},
}

type guidelineRow struct {
	idx     int
	content string
	words   map[string]struct{}
	name    string
	raw     string
	grade   domain.EvidenceLevel
}

// Guideline matches clinical practice guideline documents against the
// patient's symptoms and note and grades the diagnoses they address
type Guideline struct {
	base
	rows []guidelineRow
}

// NewGuideline loads a guideline corpus. Records without a content column
// fall back to their long free-text values.
func NewGuideline(src corpus.Source, vocab *vocabulary.Vocabulary, logger *logrus.Logger, opts ...Option) *Guideline {
	o := buildOptions(corpus.GuidelineSchema(), opts)
	g := &Guideline{base: newBase(sourceName(src, "guideline"), domain.CLINICAL_GUIDELINE, logger)}

	idx := 0
	g.rows = loadRows(&g.base, src, *o.schema, func(r *corpus.Resolved, rec corpus.Record) (guidelineRow, bool) {
		content := r.String(rec, corpus.FieldContent)
		if content == "" {
			content = corpus.LongText(rec, guidelineFallbackLen)
		}
		if content == "" {
			return guidelineRow{}, false
		}
		lower := strings.ToLower(content)

		raw := r.String(rec, corpus.FieldCondition)
		name := ""
		if _, ignored := ignoredConditions[strings.ToLower(raw)]; raw != "" && !ignored {
			name = vocab.Canonical(raw)
		} else if entry, ok := vocab.Scan(content); ok {
			name = entry.Name
		}

		words := make(map[string]struct{})
		for i, w := range strings.Fields(lower) {
			if i == guidelineDocWords {
				break
			}
			words[w] = struct{}{}
		}

		row := guidelineRow{
			idx:     idx,
			content: lower,
			words:   words,
			name:    name,
			raw:     raw,
			grade:   NormalizeGrade(r.String(rec, corpus.FieldGrade)),
		}
		idx++
		return row, true
	})
	return g
}

// NormalizeGrade maps a free-form evidence grade onto A, B, C or UNKNOWN.
// A standalone letter wins; otherwise the words high/strong, moderate and
// low/weak decide.
func NormalizeGrade(raw string) domain.EvidenceLevel {
	up := strings.ToUpper(strings.TrimSpace(raw))
	if up == "" {
		return domain.LEVEL_UNKNOWN
	}
	tokens := strings.FieldsFunc(up, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		switch strings.TrimLeft(tok, "0123456789") {
		case "A":
			return domain.LEVEL_A
		case "B":
			return domain.LEVEL_B
		case "C":
			return domain.LEVEL_C
		}
	}
	switch {
	case strings.Contains(up, "HIGH"), strings.Contains(up, "STRONG"):
		return domain.LEVEL_A
	case strings.Contains(up, "MODERATE"):
		return domain.LEVEL_B
	case strings.Contains(up, "LOW"), strings.Contains(up, "WEAK"):
		return domain.LEVEL_C
	}
	return domain.LEVEL_UNKNOWN
}

type guidelineMatch struct {
	row     *guidelineRow
	raw     float64
	matched []string
}

// Generate returns up to topK graded diagnoses ordered by grade, then score.
// The raw document score is unbounded; it is exposed as raw/(raw+1).
func (g *Guideline) Generate(q domain.Query, topK int) []*domain.DiagnosisCandidate {
	if !g.Available() || topK <= 0 {
		return nil
	}
	symptoms := fuzzy.NormalizeAll(q.Symptoms)
	noteWords := make(map[string]struct{})
	for i, w := range strings.Fields(strings.ToLower(q.ClinicalText)) {
		if i == guidelineNoteWords {
			break
		}
		noteWords[w] = struct{}{}
	}
	if len(symptoms) == 0 && len(noteWords) == 0 {
		return nil
	}

	var matches []guidelineMatch
	for i := range g.rows {
		row := &g.rows[i]
		var matched []string
		for _, s := range symptoms {
			if strings.Contains(row.content, s) {
				matched = append(matched, s)
			}
		}
		overlap := 0
		for w := range noteWords {
			if _, ok := row.words[w]; ok {
				overlap++
			}
		}
		raw := float64(len(matched)) + guidelineOverlapWeight*float64(overlap)
		if raw > guidelineMinScore {
			matches = append(matches, guidelineMatch{row: row, raw: raw, matched: matched})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].raw != matches[j].raw {
			return matches[i].raw > matches[j].raw
		}
		return matches[i].row.idx < matches[j].row.idx
	})
	if len(matches) > 2*topK {
		matches = matches[:2*topK]
	}

	best := make(map[string]*guidelineMatch)
	var order []string
	for i := range matches {
		m := &matches[i]
		if m.row.name == "" {
			continue
		}
		key := domain.CandidateKey(m.row.name)
		cur, ok := best[key]
		if !ok {
			best[key] = m
			order = append(order, key)
			continue
		}
		if better(m, cur) {
			best[key] = m
		}
	}

	candidates := make([]*domain.DiagnosisCandidate, 0, len(order))
	for _, key := range order {
		m := best[key]
		candidates = append(candidates, &domain.DiagnosisCandidate{
			CanonicalName:   m.row.name,
			RawSourceID:     m.row.raw,
			Score:           m.raw / (m.raw + 1),
			Status:          domain.STATUS_ACTIVE,
			EvidenceType:    domain.CLINICAL_GUIDELINE,
			EvidenceLevel:   m.row.grade,
			Provenance:      domain.Provenance{SourceKind: domain.SOURCE_RULE, RuleApplied: true},
			MatchedSymptoms: m.matched,
			Reasoning: fmt.Sprintf("%s identified from clinical practice guidelines with evidence level %s (match score %.1f).",
				m.row.name, m.row.grade, m.raw),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := candidates[i].EvidenceLevel.Rank(), candidates[j].EvidenceLevel.Rank()
		if ri != rj {
			return ri > rj
		}
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

// better prefers the higher evidence grade, then the higher score
func better(a, b *guidelineMatch) bool {
	if a.row.grade.Rank() != b.row.grade.Rank() {
		return a.row.grade.Rank() > b.row.grade.Rank()
	}
	return a.raw > b.raw
}
