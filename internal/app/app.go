// Package app wires configuration, corpora, evidence sources and the ranking
// engine into one unit shared by every binary.
package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/audit"
	"github.com/ddx-ranking-engine/internal/cache"
	"github.com/ddx-ranking-engine/internal/corpus"
	"github.com/ddx-ranking-engine/internal/domain"
	"github.com/ddx-ranking-engine/internal/service"
	"github.com/ddx-ranking-engine/internal/sources"
	"github.com/ddx-ranking-engine/internal/vocabulary"
)

// App holds the long-lived components built from a configuration
type App struct {
	Config *domain.Config
	Logger *logrus.Logger
	Engine *service.Engine
	Cache  *cache.TieredCache
	Audit  domain.AuditStore
}

// NewLogger builds a logger from logging configuration. Unknown levels fall
// back to info.
func NewLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if strings.EqualFold(cfg.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// New builds the application. A nil logger is built from cfg.Logging.
func New(cfg *domain.Config, logger *logrus.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		logger = NewLogger(cfg.Logging)
	}

	srcs, err := BuildSources(cfg.Corpora, cfg.Engine.MaxCases, logger)
	if err != nil {
		return nil, err
	}

	store, err := audit.Open(cfg.Audit, logger)
	if err != nil {
		return nil, err
	}

	resultCache := cache.New(cfg.Cache, logger)

	opts := []service.EngineOption{
		service.WithTopK(cfg.Engine.TopK),
		service.WithPoolSize(cfg.Engine.PoolSize),
		service.WithExclusionMode(service.ExclusionMode(strings.ToLower(cfg.Engine.ExclusionMode))),
		service.WithCache(resultCache),
	}
	if store != nil {
		opts = append(opts, service.WithAuditStore(store))
	}

	engine, err := service.NewEngine(srcs, logger, opts...)
	if err != nil {
		resultCache.Close()
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	return &App{
		Config: cfg,
		Logger: logger,
		Engine: engine,
		Cache:  resultCache,
		Audit:  store,
	}, nil
}

// BuildSources creates the four evidence sources in merge order: case bank,
// label mapping, QA context, guideline. A source whose corpus is missing or
// unreadable is still returned, reporting itself unavailable.
func BuildSources(cfg domain.CorporaConfig, maxCases int, logger *logrus.Logger) ([]domain.CandidateSource, error) {
	schemas, err := corpus.LoadSchemas(cfg.SchemaFile)
	if err != nil {
		return nil, err
	}

	vocab := loadVocabulary(cfg.LabelMapping.IDTable, logger)

	return []domain.CandidateSource{
		sources.NewCaseBank(fileSource("case-bank", cfg.CaseBank.Path), vocab, logger,
			sources.WithSchema(schemas["case-bank"]), sources.WithMaxCases(maxCases)),
		sources.NewLabelMapping(fileSource("label-mapping", cfg.LabelMapping.Path), vocab, logger,
			sources.WithSchema(schemas["label-mapping"])),
		sources.NewQAContext(fileSource("qa-context", cfg.QAContext.Path), vocab, logger,
			sources.WithSchema(schemas["qa-context"])),
		sources.NewGuideline(fileSource("guideline", cfg.Guideline.Path), vocab, logger,
			sources.WithSchema(schemas["guideline"])),
	}, nil
}

// Close releases the engine, cache and audit store
func (a *App) Close() error {
	a.Engine.Close()
	if err := a.Cache.Close(); err != nil {
		a.Logger.WithError(err).Warn("Failed to close result cache")
	}
	if a.Audit != nil {
		return a.Audit.Close()
	}
	return nil
}

func fileSource(name, path string) corpus.Source {
	if path == "" {
		return nil
	}
	return corpus.NewFileSource(name, path)
}

func loadVocabulary(idTable string, logger *logrus.Logger) *vocabulary.Vocabulary {
	if idTable == "" {
		return vocabulary.Default()
	}
	table, err := vocabulary.LoadIDTable(idTable)
	if err == nil {
		var vocab *vocabulary.Vocabulary
		if vocab, err = vocabulary.New(vocabulary.WithIDTable(table)); err == nil {
			logger.WithField("ids", vocab.IDCount()).Info("Disease ID table loaded")
			return vocab
		}
	}
	logger.WithError(err).WithField("path", idTable).Warn("Disease ID table unavailable, opaque labels stay unresolved")
	return vocabulary.Default()
}
