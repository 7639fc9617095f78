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
	qaPrefixRunes     = 500
	qaMinSimilarity   = 0.15
	qaMaxContexts     = 15
	qaExcerptRunes    = 200
	qaReasoningPrefix = 100
)

type qaRow struct {
	idx      int
	prefix   string
	context  string
	question string
	answer   string
}

// QAContext finds question/answer records whose passage resembles the
// clinical note and reads a diagnosis out of them
type QAContext struct {
	base
	rows  []qaRow
	vocab *vocabulary.Vocabulary
}

// NewQAContext loads a question/answer corpus keyed by clinical passages
func NewQAContext(src corpus.Source, vocab *vocabulary.Vocabulary, logger *logrus.Logger, opts ...Option) *QAContext {
	o := buildOptions(corpus.QAContextSchema(), opts)
	qa := &QAContext{base: newBase(sourceName(src, "qa-context"), domain.QA_CONTEXT, logger), vocab: vocab}

	idx := 0
	qa.rows = loadRows(&qa.base, src, *o.schema, func(r *corpus.Resolved, rec corpus.Record) (qaRow, bool) {
		context := r.String(rec, corpus.FieldContext)
		if context == "" {
			return qaRow{}, false
		}
		row := qaRow{
			idx:      idx,
			prefix:   prefix(strings.ToLower(context), qaPrefixRunes),
			context:  context,
			question: r.String(rec, corpus.FieldQuestion),
			answer:   corpus.AsAnswer(r.Value(rec, corpus.FieldAnswer)),
		}
		idx++
		return row, true
	})
	return qa
}

type qaMatch struct {
	row   *qaRow
	score float64
}

// Generate returns up to topK diagnoses ordered by passage similarity. It
// needs clinical text; without it nothing is returned.
func (qa *QAContext) Generate(q domain.Query, topK int) []*domain.DiagnosisCandidate {
	note := strings.TrimSpace(q.ClinicalText)
	if !qa.Available() || topK <= 0 || note == "" {
		return nil
	}
	note = prefix(strings.ToLower(note), qaPrefixRunes)

	var matches []qaMatch
	for i := range qa.rows {
		score := fuzzy.RatioAtLeast(note, qa.rows[i].prefix, qaMinSimilarity)
		if score > qaMinSimilarity {
			matches = append(matches, qaMatch{row: &qa.rows[i], score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].row.idx < matches[j].row.idx
	})
	if len(matches) > qaMaxContexts {
		matches = matches[:qaMaxContexts]
	}

	seen := make(map[string]*domain.DiagnosisCandidate)
	var candidates []*domain.DiagnosisCandidate
	for _, m := range matches {
		entry, ok := qa.vocab.Scan(m.row.question, m.row.answer, m.row.context)
		if !ok {
			continue
		}
		key := domain.CandidateKey(entry.Name)
		if existing, dup := seen[key]; dup {
			if m.score > existing.Score {
				existing.Score = m.score
			}
			continue
		}
		c := &domain.DiagnosisCandidate{
			CanonicalName: entry.Name,
			RawSourceID:   fmt.Sprintf("qa:%d", m.row.idx),
			Score:         m.score,
			Status:        domain.STATUS_ACTIVE,
			EvidenceType:  domain.QA_CONTEXT,
			Provenance:    domain.Provenance{SourceKind: domain.SOURCE_EVIDENCE},
			SourceExcerpt: fmt.Sprintf("Q: %s | A: %s", prefix(m.row.question, qaExcerptRunes), prefix(m.row.answer, qaExcerptRunes)),
			Reasoning: fmt.Sprintf("%s identified from a similar clinical QA context (similarity %.2f). Q: %s",
				entry.Name, m.score, prefix(m.row.question, qaReasoningPrefix)),
		}
		seen[key] = c
		candidates = append(candidates, c)
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	domain.AssignRanks(candidates)
	qa.logger.WithFields(logrus.Fields{
		"source":     qa.name,
		"contexts":   len(matches),
		"candidates": len(candidates),
	}).Debug("QA context scan complete")
	return candidates
}
