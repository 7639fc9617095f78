package service

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/domain"
)

const (
	// probabilistic scores are compared on a 0-100 scale
	highConfidenceThreshold = 50.0
	narrowMatchLimit        = 2
	limitedMatchLimit       = 3
	narrowMatchFactor       = 0.4
	limitedMatchFactor      = 0.7
)

// Reranker downweights label-mapping candidates backed by few symptoms when
// the probabilistic case bank already has a confident answer
type Reranker struct {
	logger *logrus.Logger
}

// NewReranker creates a new Reranker
func NewReranker(logger *logrus.Logger) *Reranker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reranker{logger: logger}
}

// Rerank adjusts scores in place and returns the candidates sorted by score
// descending with ranks recomputed. Candidates are never removed.
func (r *Reranker) Rerank(candidates []*domain.DiagnosisCandidate) []*domain.DiagnosisCandidate {
	if len(candidates) == 0 {
		return candidates
	}

	var probabilistic, labelMapping, freeText, other []*domain.DiagnosisCandidate
	for _, c := range candidates {
		switch c.EvidenceType {
		case domain.CASE_BANK:
			probabilistic = append(probabilistic, c)
		case domain.LABEL_MAPPING:
			labelMapping = append(labelMapping, c)
		case domain.FREE_TEXT:
			freeText = append(freeText, c)
		default:
			other = append(other, c)
		}
	}

	maxScore := 0.0
	for _, c := range probabilistic {
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}

	downranked := 0
	if maxScore*100 > highConfidenceThreshold {
		for _, c := range labelMapping {
			original := c.Score
			switch n := len(c.MatchedSymptoms); {
			case n <= narrowMatchLimit:
				c.Score = original * narrowMatchFactor
			case n <= limitedMatchLimit:
				c.Score = original * limitedMatchFactor
			default:
				continue
			}
			downranked++
			r.logger.WithFields(logrus.Fields{
				"diagnosis":      c.CanonicalName,
				"original_score": original,
				"score":          c.Score,
			}).Debug("Downranked label-mapping candidate")
		}
	}

	out := make([]*domain.DiagnosisCandidate, 0, len(candidates))
	out = append(out, probabilistic...)
	out = append(out, labelMapping...)
	out = append(out, freeText...)
	out = append(out, other...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	domain.AssignRanks(out)

	r.logger.WithFields(logrus.Fields{
		"candidates":        len(out),
		"probabilistic_max": maxScore,
		"downranked":        downranked,
	}).Debug("Reranking complete")

	return out
}
