package domain

import (
	"context"
)

// CandidateSource turns a patient query into scored diagnosis candidates
// drawn from one corpus. Generate never fails: a source whose corpus could
// not be loaded reports Available() == false and returns nothing.
type CandidateSource interface {
	Name() string
	EvidenceType() EvidenceType
	Available() bool
	Generate(q Query, topK int) []*DiagnosisCandidate
}

// DiagnosisRanker is the produced interface of the engine
type DiagnosisRanker interface {
	Rank(ctx context.Context, profile *PatientProfile, topK int) ([]*DiagnosisCandidate, error)
	RankDetailed(ctx context.Context, profile *PatientProfile, topK int) (*RankResult, error)
	Sources() []SourceStat
	Justify(clinicalText string, terms []string) string
}

// ResultCache memoises ranking results by input hash
type ResultCache interface {
	Get(ctx context.Context, key string) (*RankResult, bool)
	Set(ctx context.Context, key string, result *RankResult) error
}

// ConfigManager defines configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetEngineConfig() *EngineConfig
	Reload() error
	Validate() error
	IsProduction() bool
	IsDevelopment() bool
}
