package domain

import (
	"context"
	"time"
)

// AuditRecord is the persisted trace of one ranking run
type AuditRecord struct {
	RunID      string                `json:"run_id"`
	InputHash  string                `json:"input_hash"`
	TopK       int                   `json:"top_k"`
	Candidates []*DiagnosisCandidate `json:"candidates"`
	Excluded   []*DiagnosisCandidate `json:"excluded"`
	RedFlags   []RedFlag             `json:"red_flags"`
	Sources    []SourceStat          `json:"sources"`
	DurationMs int64                 `json:"duration_ms"`
	CreatedAt  time.Time             `json:"created_at"`
}

// NewAuditRecord builds an audit record from a finished ranking run
func NewAuditRecord(result *RankResult, at time.Time) *AuditRecord {
	return &AuditRecord{
		RunID:      result.RunID,
		InputHash:  result.InputHash,
		TopK:       result.TopK,
		Candidates: CloneCandidates(result.Candidates),
		Excluded:   CloneCandidates(result.Excluded),
		RedFlags:   append([]RedFlag(nil), result.RedFlags...),
		Sources:    append([]SourceStat(nil), result.Sources...),
		DurationMs: result.DurationMs,
		CreatedAt:  at.UTC(),
	}
}

// AuditStore persists ranking runs for later review
type AuditStore interface {
	Save(ctx context.Context, record *AuditRecord) error
	Get(ctx context.Context, runID string) (*AuditRecord, error)
	List(ctx context.Context, limit, offset int) ([]*AuditRecord, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}
