// Package corpus holds the read-only record sequences consumed by the
// evidence sources and the declarative field-alias schemas that describe
// them. Aliases are resolved once per corpus at load time.
package corpus

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ddx-ranking-engine/internal/domain"
)

// Record is one row of a corpus as decoded from its source
type Record map[string]any

// Field declares a logical field and the column names it may appear under,
// in priority order
type Field struct {
	Name     string   `yaml:"name"`
	Aliases  []string `yaml:"aliases"`
	Required bool     `yaml:"required"`
}

// Schema is the field-alias table for one corpus
type Schema struct {
	Corpus string  `yaml:"corpus"`
	Fields []Field `yaml:"fields"`
}

// Logical field names shared by the default schemas
const (
	FieldPathology    = "pathology"
	FieldEvidences    = "evidences"
	FieldDifferential = "differential"
	FieldLabel        = "label"
	FieldText         = "text"
	FieldContext      = "context"
	FieldQuestion     = "question"
	FieldAnswer       = "answer"
	FieldContent      = "content"
	FieldCondition    = "condition"
	FieldGrade        = "grade"
)

// CaseBankSchema describes a probabilistic case corpus
func CaseBankSchema() Schema {
	return Schema{
		Corpus: "case-bank",
		Fields: []Field{
			{Name: FieldPathology, Aliases: []string{"PATHOLOGY", "pathology", "label", "disease"}, Required: true},
			{Name: FieldEvidences, Aliases: []string{"EVIDENCES", "evidences", "symptoms", "features"}, Required: true},
			{Name: FieldDifferential, Aliases: []string{"DIFFERENTIAL_DIAGNOSIS", "differential_diagnosis", "differential"}},
		},
	}
}

// LabelMappingSchema describes a symptom to disease classification corpus
func LabelMappingSchema() Schema {
	return Schema{
		Corpus: "label-mapping",
		Fields: []Field{
			{Name: FieldLabel, Aliases: []string{"label", "Label", "disease", "Disease", "prognosis"}, Required: true},
			{Name: FieldText, Aliases: []string{"text", "Text", "symptom", "Symptom"}, Required: true},
		},
	}
}

// QAContextSchema describes a question/answer corpus keyed by passages
func QAContextSchema() Schema {
	return Schema{
		Corpus: "qa-context",
		Fields: []Field{
			{Name: FieldContext, Aliases: []string{"context", "clinical_note", "text", "passage", "document"}, Required: true},
			{Name: FieldQuestion, Aliases: []string{"question", "Question"}},
			{Name: FieldAnswer, Aliases: []string{"answer", "answers", "Answer"}},
		},
	}
}

// GuidelineSchema describes a clinical practice guideline corpus. Content is
// optional because long free-text columns are used when no alias matches.
func GuidelineSchema() Schema {
	return Schema{
		Corpus: "guideline",
		Fields: []Field{
			{Name: FieldContent, Aliases: []string{"content", "text", "guideline", "recommendation", "description"}},
			{Name: FieldCondition, Aliases: []string{"condition", "disease", "diagnosis", "topic", "title"}},
			{Name: FieldGrade, Aliases: []string{"evidence_level", "grade", "strength", "quality", "level"}},
		},
	}
}

// DefaultSchemas returns the built-in schemas keyed by corpus name
func DefaultSchemas() map[string]Schema {
	out := map[string]Schema{}
	for _, s := range []Schema{CaseBankSchema(), LabelMappingSchema(), QAContextSchema(), GuidelineSchema()} {
		out[s.Corpus] = s
	}
	return out
}

// LoadSchemas reads schema overrides from a YAML file and merges them over
// the defaults. A file entry replaces the default schema of the same corpus.
func LoadSchemas(path string) (map[string]Schema, error) {
	schemas := DefaultSchemas()
	if path == "" {
		return schemas, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	var overrides []Schema
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}
	for _, s := range overrides {
		if s.Corpus == "" {
			return nil, fmt.Errorf("schema without corpus name in %s", path)
		}
		schemas[s.Corpus] = s
	}
	return schemas, nil
}

// Resolved binds each logical field of a schema to the concrete column
// found in a particular corpus
type Resolved struct {
	corpus string
	keys   map[string]string
}

// Resolve picks, for every field, the highest-priority alias present in any
// record. A required field with no alias present, or an empty corpus, makes
// the corpus unavailable.
func (s Schema) Resolve(records []Record) (*Resolved, error) {
	if len(records) == 0 {
		return nil, domain.NewCorpusUnavailable(s.Corpus, "corpus is empty", nil)
	}
	r := &Resolved{corpus: s.Corpus, keys: make(map[string]string, len(s.Fields))}
	for _, f := range s.Fields {
		key, ok := firstPresent(records, f.Aliases)
		if !ok {
			if f.Required {
				return nil, domain.NewCorpusUnavailable(s.Corpus,
					fmt.Sprintf("missing required field %s (tried %s)", f.Name, strings.Join(f.Aliases, ", ")), nil)
			}
			continue
		}
		r.keys[f.Name] = key
	}
	return r, nil
}

func firstPresent(records []Record, aliases []string) (string, bool) {
	for _, alias := range aliases {
		for _, rec := range records {
			if v, ok := rec[alias]; ok && !isEmpty(v) {
				return alias, true
			}
		}
	}
	return "", false
}

// Corpus returns the corpus name the binding was resolved for
func (r *Resolved) Corpus() string {
	return r.corpus
}

// Key returns the concrete column bound to a logical field
func (r *Resolved) Key(field string) (string, bool) {
	k, ok := r.keys[field]
	return k, ok
}

// Has reports whether the logical field is bound
func (r *Resolved) Has(field string) bool {
	_, ok := r.keys[field]
	return ok
}

// Value returns the raw value of a logical field in rec
func (r *Resolved) Value(rec Record, field string) any {
	k, ok := r.keys[field]
	if !ok {
		return nil
	}
	return rec[k]
}

// String returns a logical field of rec coerced to a trimmed string
func (r *Resolved) String(rec Record, field string) string {
	return strings.TrimSpace(AsString(r.Value(rec, field)))
}

// Terms returns a logical field of rec coerced to a term list
func (r *Resolved) Terms(rec Record, field string) []string {
	return AsTerms(r.Value(rec, field))
}
