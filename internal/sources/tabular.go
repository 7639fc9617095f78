// Package sources implements the evidence source adapters. Each adapter is a
// thin parametrization of one tabular corpus loader: a schema is resolved
// once against the loaded records, rows are built into a read-only index,
// and queries scan that index without further I/O.
package sources

import (
	"errors"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/corpus"
	"github.com/ddx-ranking-engine/internal/domain"
)

// Option configures an evidence source
type Option func(*options)

type options struct {
	schema   *corpus.Schema
	maxCases int
}

// WithSchema overrides the default field-alias schema of a source
func WithSchema(schema corpus.Schema) Option {
	return func(o *options) {
		o.schema = &schema
	}
}

// WithMaxCases sets how many top-scoring cases the case bank votes with
func WithMaxCases(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxCases = n
		}
	}
}

func buildOptions(defaultSchema corpus.Schema, opts []Option) options {
	o := options{maxCases: defaultMaxCases}
	for _, opt := range opts {
		opt(&o)
	}
	if o.schema == nil {
		o.schema = &defaultSchema
	}
	return o
}

// base carries what every adapter shares: identity, logger and load state
type base struct {
	name     string
	evidence domain.EvidenceType
	logger   *logrus.Logger
	err      error
}

// Name returns the source name
func (b *base) Name() string { return b.name }

// EvidenceType returns the tag attached to every candidate of this source
func (b *base) EvidenceType() domain.EvidenceType { return b.evidence }

// Available reports whether the corpus loaded. An unavailable source returns
// no candidates for its whole lifetime.
func (b *base) Available() bool { return b.err == nil }

// Err returns the load failure of an unavailable source
func (b *base) Err() error { return b.err }

func newBase(name string, evidence domain.EvidenceType, logger *logrus.Logger) base {
	if logger == nil {
		logger = logrus.New()
	}
	return base{name: name, evidence: evidence, logger: logger}
}

// loadRows loads src, resolves schema against it and builds one row per
// usable record. Any failure disables the source and is logged here, once.
func loadRows[T any](b *base, src corpus.Source, schema corpus.Schema, build func(*corpus.Resolved, corpus.Record) (T, bool)) []T {
	rows, err := func() ([]T, error) {
		if src == nil {
			return nil, domain.NewCorpusUnavailable(schema.Corpus, "no corpus configured", nil)
		}
		records, err := src.Load()
		if err != nil {
			return nil, domain.NewCorpusUnavailable(schema.Corpus, "load failed", err)
		}
		resolved, err := schema.Resolve(records)
		if err != nil {
			return nil, err
		}
		rows := make([]T, 0, len(records))
		for _, rec := range records {
			if row, ok := build(resolved, rec); ok {
				rows = append(rows, row)
			}
		}
		if len(rows) == 0 {
			return nil, domain.NewCorpusUnavailable(schema.Corpus, "no usable records", nil)
		}
		return rows, nil
	}()

	if err != nil {
		b.err = err
		var unavailable *domain.CorpusUnavailableError
		code := domain.ErrInternalServer
		if errors.As(err, &unavailable) {
			code = domain.ErrCorpusUnavailable
		}
		b.logger.WithError(err).WithFields(logrus.Fields{
			"source": b.name,
			"code":   code,
		}).Error("Evidence source disabled")
		return nil
	}

	b.logger.WithFields(logrus.Fields{
		"source": b.name,
		"rows":   len(rows),
	}).Info("Evidence source loaded")
	return rows
}

// prefix returns at most n runes of s
func prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
