// Package service implements the ranking pipeline: evidence sources fan out
// in parallel, their candidates are aggregated, filtered, reranked and
// justified, and the run is cached and audited.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/domain"
)

const (
	defaultTopK     = 5
	defaultPoolSize = 4
)

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithTopK sets the list length used when a caller passes topK <= 0
func WithTopK(k int) EngineOption {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithPoolSize sets the number of workers that run evidence sources
func WithPoolSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.poolSize = n
		}
	}
}

// WithExclusionMode selects whether excluded candidates are removed or retained
func WithExclusionMode(mode ExclusionMode) EngineOption {
	return func(e *Engine) {
		e.mode = mode
	}
}

// WithCache memoises results by input hash
func WithCache(cache domain.ResultCache) EngineOption {
	return func(e *Engine) {
		e.cache = cache
	}
}

// WithAuditStore persists every computed run
func WithAuditStore(store domain.AuditStore) EngineOption {
	return func(e *Engine) {
		e.audit = store
	}
}

// Engine is the differential diagnosis ranking pipeline
type Engine struct {
	logger     *logrus.Logger
	sources    []domain.CandidateSource
	aggregator *Aggregator
	filter     *ExclusionFilter
	reranker   *Reranker
	spans      *SpanExtractor
	redFlags   *RedFlagDetector
	pool       *ants.Pool
	cache      domain.ResultCache
	audit      domain.AuditStore
	mode       ExclusionMode
	topK       int
	poolSize   int
}

// NewEngine creates a new ranking engine over the given evidence sources.
// Sources are queried in parallel but merged in the order given.
func NewEngine(sources []domain.CandidateSource, logger *logrus.Logger, opts ...EngineOption) (*Engine, error) {
	if logger == nil {
		logger = logrus.New()
	}
	e := &Engine{
		logger:   logger,
		sources:  sources,
		mode:     EXCLUSION_REMOVE,
		topK:     defaultTopK,
		poolSize: defaultPoolSize,
	}
	for _, opt := range opts {
		opt(e)
	}

	pool, err := ants.NewPool(e.poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create source worker pool: %w", err)
	}
	e.pool = pool
	e.aggregator = NewAggregator(logger)
	e.filter = NewExclusionFilter(e.mode, logger)
	e.reranker = NewReranker(logger)
	e.spans = NewSpanExtractor()
	e.redFlags = NewRedFlagDetector(logger)

	logger.WithFields(logrus.Fields{
		"sources":        len(sources),
		"pool_size":      e.poolSize,
		"default_top_k":  e.topK,
		"exclusion_mode": string(e.filter.Mode()),
	}).Info("Ranking engine initialized")

	return e, nil
}

// Close releases the worker pool
func (e *Engine) Close() {
	e.pool.Release()
}

// Rank returns the top-K ranked, non-excluded diagnoses for a profile
func (e *Engine) Rank(ctx context.Context, profile *domain.PatientProfile, topK int) ([]*domain.DiagnosisCandidate, error) {
	result, err := e.RankDetailed(ctx, profile, topK)
	if err != nil {
		return nil, err
	}
	return result.Candidates, nil
}

// RankDetailed runs the full pipeline and returns the ranked list together
// with the excluded partition, red flags and per-source statistics. It only
// fails for a missing or structurally invalid profile, or when ctx is done.
func (e *Engine) RankDetailed(ctx context.Context, profile *domain.PatientProfile, topK int) (*domain.RankResult, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = e.topK
	}

	hash, err := HashInput(profile, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to hash profile: %w", err)
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, hash); ok {
			out := cloneResult(cached)
			out.Cached = true
			e.logger.WithField("input_hash", hash).Debug("Ranking served from cache")
			return out, nil
		}
	}

	start := time.Now()
	lists, stats, err := e.generate(ctx, profile.Query(), topK)
	if err != nil {
		return nil, err
	}

	merged := e.aggregator.Aggregate(lists...)
	kept, excluded := e.filter.Partition(profile, merged)
	ranked := e.reranker.Rerank(kept)

	if e.filter.Mode() == EXCLUSION_RETAIN {
		ranked = append(ranked, excluded...)
	}
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	for _, c := range ranked {
		c.Score = clamp01(c.Score)
		if c.Justification == "" {
			c.Justification = e.spans.Extract(profile.ClinicalText, justificationTerms(c, profile))
		}
	}
	domain.AssignRanks(ranked)

	result := &domain.RankResult{
		RunID:      uuid.New().String(),
		InputHash:  hash,
		TopK:       topK,
		Candidates: ranked,
		Excluded:   excluded,
		RedFlags:   e.redFlags.Detect(profile, activeOnly(ranked)),
		Sources:    stats,
		DurationMs: time.Since(start).Milliseconds(),
	}

	e.logger.WithFields(logrus.Fields{
		"run_id":      result.RunID,
		"candidates":  len(result.Candidates),
		"excluded":    len(result.Excluded),
		"red_flags":   len(result.RedFlags),
		"duration_ms": result.DurationMs,
	}).Info("Ranking complete")

	if e.cache != nil {
		if err := e.cache.Set(ctx, hash, cloneResult(result)); err != nil {
			e.logger.WithError(err).Warn("Failed to cache ranking result")
		}
	}
	if e.audit != nil {
		if err := e.audit.Save(ctx, domain.NewAuditRecord(result, time.Now())); err != nil {
			e.logger.WithError(err).WithField("run_id", result.RunID).Warn("Failed to record audit trail")
		}
	}

	return result, nil
}

// generate runs every source on the worker pool and joins the results in
// source order
func (e *Engine) generate(ctx context.Context, q domain.Query, topK int) ([][]*domain.DiagnosisCandidate, []domain.SourceStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	lists := make([][]*domain.DiagnosisCandidate, len(e.sources))
	var wg sync.WaitGroup
	for i, src := range e.sources {
		if !src.Available() {
			continue
		}
		i, src := i, src
		task := func() {
			defer wg.Done()
			lists[i] = src.Generate(q, topK)
		}
		wg.Add(1)
		if err := e.pool.Submit(task); err != nil {
			e.logger.WithError(err).WithField("source", src.Name()).Warn("Worker pool rejected source, running inline")
			task()
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	stats := make([]domain.SourceStat, len(e.sources))
	for i, src := range e.sources {
		stats[i] = domain.SourceStat{
			Name:         src.Name(),
			EvidenceType: src.EvidenceType(),
			Available:    src.Available(),
			Candidates:   len(lists[i]),
		}
		e.logger.WithFields(logrus.Fields{
			"source":     src.Name(),
			"available":  src.Available(),
			"candidates": len(lists[i]),
		}).Debug("Source finished")
	}
	return lists, stats, nil
}

// Sources reports the configured evidence sources and their availability
func (e *Engine) Sources() []domain.SourceStat {
	stats := make([]domain.SourceStat, len(e.sources))
	for i, src := range e.sources {
		stats[i] = domain.SourceStat{
			Name:         src.Name(),
			EvidenceType: src.EvidenceType(),
			Available:    src.Available(),
		}
	}
	return stats
}

// Aggregate merges candidate lists into one deduplicated ranked list
func (e *Engine) Aggregate(lists ...[]*domain.DiagnosisCandidate) []*domain.DiagnosisCandidate {
	return e.aggregator.Aggregate(lists...)
}

// Exclude applies the clinical exclusion rules using the configured mode
func (e *Engine) Exclude(profile *domain.PatientProfile, candidates []*domain.DiagnosisCandidate) []*domain.DiagnosisCandidate {
	return e.filter.Exclude(profile, candidates)
}

// Rerank downweights weakly supported label-mapping candidates and re-sorts
func (e *Engine) Rerank(candidates []*domain.DiagnosisCandidate) []*domain.DiagnosisCandidate {
	return e.reranker.Rerank(candidates)
}

// Justify extracts the note sentences supporting the given terms
func (e *Engine) Justify(clinicalText string, terms []string) string {
	return e.spans.Extract(clinicalText, terms)
}

// HashInput returns the SHA-256 hex digest identifying a (profile, topK) run
func HashInput(profile *domain.PatientProfile, topK int) (string, error) {
	payload, err := json.Marshal(struct {
		Profile *domain.PatientProfile `json:"profile"`
		TopK    int                    `json:"top_k"`
	}{profile, topK})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// justificationTerms prefers the candidate's own supporting terms, then the
// symptoms its source matched, then the patient's symptoms
func justificationTerms(c *domain.DiagnosisCandidate, profile *domain.PatientProfile) []string {
	switch {
	case len(c.SupportingSymptoms) > 0:
		return c.SupportingSymptoms
	case len(c.MatchedSymptoms) > 0:
		return c.MatchedSymptoms
	default:
		return profile.Symptoms
	}
}

func activeOnly(candidates []*domain.DiagnosisCandidate) []*domain.DiagnosisCandidate {
	out := make([]*domain.DiagnosisCandidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Excluded {
			out = append(out, c)
		}
	}
	return out
}

func cloneResult(r *domain.RankResult) *domain.RankResult {
	out := *r
	out.Candidates = domain.CloneCandidates(r.Candidates)
	out.Excluded = domain.CloneCandidates(r.Excluded)
	out.RedFlags = append([]domain.RedFlag(nil), r.RedFlags...)
	out.Sources = append([]domain.SourceStat(nil), r.Sources...)
	return &out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
