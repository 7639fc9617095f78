package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Corpora CorporaConfig `mapstructure:"corpora"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
}

// EngineConfig controls the ranking pipeline
type EngineConfig struct {
	TopK          int    `mapstructure:"top_k"`
	PoolSize      int    `mapstructure:"pool_size"`
	ExclusionMode string `mapstructure:"exclusion_mode"`
	MaxCases      int    `mapstructure:"max_cases"`
}

// CorpusConfig locates one corpus on local disk
type CorpusConfig struct {
	Path string `mapstructure:"path"`
}

// LabelMappingConfig locates the label-mapping corpus and its ID table
type LabelMappingConfig struct {
	Path    string `mapstructure:"path"`
	IDTable string `mapstructure:"id_table"`
}

// CorporaConfig locates every corpus consumed by the evidence sources.
// An empty path leaves the corresponding source disabled.
type CorporaConfig struct {
	CaseBank     CorpusConfig       `mapstructure:"case_bank"`
	LabelMapping LabelMappingConfig `mapstructure:"label_mapping"`
	QAContext    CorpusConfig       `mapstructure:"qa_context"`
	Guideline    CorpusConfig       `mapstructure:"guideline"`
	SchemaFile   string             `mapstructure:"schema_file"`
}

// CacheConfig represents result cache configuration
type CacheConfig struct {
	MaxItems int           `mapstructure:"max_items"`
	TTL      time.Duration `mapstructure:"ttl"`
	RedisURL string        `mapstructure:"redis_url"`
}

// AuditConfig selects the audit trail backend
type AuditConfig struct {
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	AuditDriverNone     = "none"
	AuditDriverSQLite   = "sqlite"
	AuditDriverPostgres = "postgres"
)
