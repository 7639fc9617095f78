// Package vocabulary maps raw corpus labels to canonical diagnosis names.
//
// It holds the single keyword list used to recognise diagnoses in free text
// and the external disease-ID table. Both are read-only after construction
// and safe for concurrent use.
package vocabulary

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Entry maps a recognised keyword to its canonical display name
type Entry struct {
	Term string `yaml:"term" json:"term"`
	Name string `yaml:"name" json:"name"`
}

// DefaultEntries is the built-in keyword list. More specific terms come
// before the generic terms they contain so that the first hit is the best one.
var DefaultEntries = []Entry{
	{"acute myocardial infarction", "Acute Myocardial Infarction"},
	{"myocardial infarction", "Myocardial Infarction"},
	{"acute coronary syndrome", "Acute Coronary Syndrome"},
	{"acs", "Acute Coronary Syndrome"},
	{"aortic dissection", "Aortic Dissection"},
	{"pulmonary embolism", "Pulmonary Embolism"},
	{"deep vein thrombosis", "Deep Vein Thrombosis"},
	{"dvt", "Deep Vein Thrombosis"},
	{"congestive heart failure", "Congestive Heart Failure"},
	{"chf", "Congestive Heart Failure"},
	{"heart failure", "Heart Failure"},
	{"atrial fibrillation", "Atrial Fibrillation"},
	{"gastroesophageal reflux disease", "Gastroesophageal Reflux Disease"},
	{"gastroesophageal reflux", "Gastroesophageal Reflux Disease"},
	{"gerd", "Gastroesophageal Reflux Disease"},
	{"chronic obstructive pulmonary disease", "COPD"},
	{"copd", "COPD"},
	{"chronic kidney disease", "Chronic Kidney Disease"},
	{"acute kidney injury", "Acute Kidney Injury"},
	{"aki", "Acute Kidney Injury"},
	{"renal failure", "Renal Failure"},
	{"urinary tract infection", "Urinary Tract Infection"},
	{"uti", "Urinary Tract Infection"},
	{"diabetes mellitus", "Diabetes Mellitus"},
	{"diabetes", "Diabetes Mellitus"},
	{"hypertension", "Hypertension"},
	{"pneumonia", "Pneumonia"},
	{"asthma", "Asthma"},
	{"stroke", "Stroke"},
	{"sepsis", "Sepsis"},
	{"bronchitis", "Bronchitis"},
	{"influenza", "Influenza"},
	{"appendicitis", "Appendicitis"},
	{"cholecystitis", "Cholecystitis"},
	{"acute pancreatitis", "Acute Pancreatitis"},
	{"pancreatitis", "Pancreatitis"},
	{"hepatitis", "Hepatitis"},
	{"cirrhosis", "Cirrhosis"},
	{"anemia", "Anemia"},
	{"thrombocytopenia", "Thrombocytopenia"},
}

type keyword struct {
	Entry
	pattern *regexp.Regexp
}

// Vocabulary is the canonical diagnosis vocabulary
type Vocabulary struct {
	keywords []keyword
	byTerm   map[string]string
	ids      map[string]string
}

// Option configures a Vocabulary
type Option func(*Vocabulary) error

// WithEntries replaces the built-in keyword list
func WithEntries(entries []Entry) Option {
	return func(v *Vocabulary) error {
		return v.setEntries(entries)
	}
}

// WithIDTable installs the external disease-ID to name table
func WithIDTable(table map[string]string) Option {
	return func(v *Vocabulary) error {
		v.ids = make(map[string]string, len(table))
		for id, name := range table {
			id, name = strings.TrimSpace(id), strings.TrimSpace(name)
			if id == "" || name == "" {
				continue
			}
			v.ids[id] = name
		}
		return nil
	}
}

// New creates a vocabulary with the built-in keyword list and no ID table
func New(opts ...Option) (*Vocabulary, error) {
	v := &Vocabulary{ids: map[string]string{}}
	if err := v.setEntries(DefaultEntries); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Default returns a vocabulary with the built-in keyword list
func Default() *Vocabulary {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

func (v *Vocabulary) setEntries(entries []Entry) error {
	keywords := make([]keyword, 0, len(entries))
	byTerm := make(map[string]string, len(entries))
	for _, e := range entries {
		term := strings.ToLower(strings.TrimSpace(e.Term))
		if term == "" || strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("invalid vocabulary entry %q -> %q", e.Term, e.Name)
		}
		pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			return fmt.Errorf("failed to compile keyword %q: %w", term, err)
		}
		keywords = append(keywords, keyword{Entry: Entry{Term: term, Name: strings.TrimSpace(e.Name)}, pattern: pattern})
		if _, ok := byTerm[term]; !ok {
			byTerm[term] = strings.TrimSpace(e.Name)
		}
		byTerm[strings.ToLower(strings.TrimSpace(e.Name))] = strings.TrimSpace(e.Name)
	}
	v.keywords = keywords
	v.byTerm = byTerm
	return nil
}

// Entries returns a copy of the keyword list in match order
func (v *Vocabulary) Entries() []Entry {
	out := make([]Entry, len(v.keywords))
	for i, k := range v.keywords {
		out[i] = k.Entry
	}
	return out
}

// IDCount returns the size of the ID table
func (v *Vocabulary) IDCount() int {
	return len(v.ids)
}

// Placeholder is the canonical name used for an unresolvable identifier
func Placeholder(id string) string {
	return fmt.Sprintf("Unknown Disease (%s)", strings.TrimSpace(id))
}

// Resolve maps an external identifier through the ID table. A miss yields
// the placeholder name rather than an error.
func (v *Vocabulary) Resolve(id string) string {
	if name, ok := v.ids[strings.TrimSpace(id)]; ok {
		return name
	}
	return Placeholder(id)
}

// Canonical turns a raw corpus label into a canonical diagnosis name. ID
// table hits win, opaque identifiers become placeholders, known keywords
// take their canonical spelling, and other free text is returned trimmed.
func (v *Vocabulary) Canonical(label string) string {
	label = strings.Join(strings.Fields(label), " ")
	if label == "" {
		return ""
	}
	if name, ok := v.ids[label]; ok {
		return name
	}
	if IsOpaque(label) {
		return Placeholder(label)
	}
	if name, ok := v.byTerm[strings.ToLower(label)]; ok {
		return name
	}
	return label
}

// Scan returns the first keyword found in texts, checking each text in
// order against the whole keyword list before moving to the next text.
func (v *Vocabulary) Scan(texts ...string) (Entry, bool) {
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		for _, k := range v.keywords {
			if k.pattern.MatchString(text) {
				return k.Entry, true
			}
		}
	}
	return Entry{}, false
}

// codes such as D001, C0011849 or ICD:I21.9
var codePattern = regexp.MustCompile(`^[A-Za-z]{1,4}[-_:.]?[A-Za-z]?\d+[A-Za-z0-9.]*$`)

// IsOpaque reports whether a label is an identifier rather than a name a
// clinician could read
func IsOpaque(label string) bool {
	label = strings.TrimSpace(label)
	if codePattern.MatchString(label) {
		return true
	}
	for _, r := range label {
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
