package service

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/domain"
)

// Aggregator merges the candidate lists of all evidence sources into a single
// deduplicated, ranked list
type Aggregator struct {
	logger *logrus.Logger
}

// NewAggregator creates a new Aggregator
func NewAggregator(logger *logrus.Logger) *Aggregator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Aggregator{logger: logger}
}

// Aggregate merges lists in the order given. Candidates are deduplicated on
// their case-insensitive canonical name; the higher score wins and an equal
// score keeps the earlier candidate. The losing source is recorded on the
// winner as corroborating evidence. Inputs are not modified.
func (a *Aggregator) Aggregate(lists ...[]*domain.DiagnosisCandidate) []*domain.DiagnosisCandidate {
	merged := make([]*domain.DiagnosisCandidate, 0)
	byKey := make(map[string]int)
	total := 0

	for _, list := range lists {
		for _, c := range list {
			if c == nil {
				continue
			}
			total++
			key := c.Key()
			if key == "" {
				continue
			}

			idx, seen := byKey[key]
			if !seen {
				byKey[key] = len(merged)
				merged = append(merged, c.Clone())
				continue
			}

			current := merged[idx]
			if c.Score > current.Score {
				winner := c.Clone()
				winner.CorroboratingSources = appendSource(current.CorroboratingSources, current.EvidenceType, winner.EvidenceType)
				for _, src := range c.CorroboratingSources {
					winner.CorroboratingSources = appendSource(winner.CorroboratingSources, src, winner.EvidenceType)
				}
				merged[idx] = winner
			} else {
				current.CorroboratingSources = appendSource(current.CorroboratingSources, c.EvidenceType, current.EvidenceType)
			}
		}
	}

	sortByScore(merged)
	domain.AssignRanks(merged)

	a.logger.WithFields(logrus.Fields{
		"input_candidates":  total,
		"merged_candidates": len(merged),
	}).Debug("Aggregated candidates")

	return merged
}

// appendSource adds src to the corroborating list unless it is the winner's
// own evidence type or already present
func appendSource(list []domain.EvidenceType, src, own domain.EvidenceType) []domain.EvidenceType {
	if src == "" || src == own {
		return list
	}
	for _, existing := range list {
		if existing == src {
			return list
		}
	}
	return append(list, src)
}

// sortByScore orders candidates by score descending, then canonical name
func sortByScore(candidates []*domain.DiagnosisCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].CanonicalName < candidates[j].CanonicalName
	})
}
