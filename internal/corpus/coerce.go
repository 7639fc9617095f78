package corpus

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DefaultVoteProbability is used for differential entries without a stated
// probability
const DefaultVoteProbability = 0.5

// Vote is one entry of a case's ranked differential list
type Vote struct {
	Name        string
	Probability float64
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// AsString coerces a decoded value to a string. Lists yield their first
// element and nil yields the empty string.
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case []any:
		if len(t) == 0 {
			return ""
		}
		return AsString(t[0])
	case []string:
		if len(t) == 0 {
			return ""
		}
		return t[0]
	default:
		return fmt.Sprint(t)
	}
}

// AsFloat coerces a decoded value to a float
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// AsTerms coerces a term field that may be a list, a map of term to value,
// or a comma-delimited string. Map keys are returned in sorted order,
// each followed by its value when the value is a non-empty string.
func AsTerms(v any) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	switch t := v.(type) {
	case nil:
	case []string:
		for _, s := range t {
			add(s)
		}
	case []any:
		for _, e := range t {
			add(AsString(e))
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			add(k)
			if s, ok := t[k].(string); ok {
				add(s)
			}
		}
	case string:
		if list, ok := parseListLiteral(t); ok {
			return AsTerms(list)
		}
		for _, s := range strings.Split(t, ",") {
			add(s)
		}
	default:
		add(AsString(t))
	}
	return out
}

// AsAnswer extracts answer text from a plain string, a list of strings, or
// a {"text": [...]} object
func AsAnswer(v any) string {
	switch t := v.(type) {
	case map[string]any:
		return AsAnswer(t["text"])
	default:
		return strings.TrimSpace(AsString(t))
	}
}

// AsDifferential coerces a ranked differential list. Entries may be objects
// with disease/pathology and probability/prob keys or [name, probability]
// pairs. A string holding a list literal is decoded first.
func AsDifferential(v any) []Vote {
	if s, ok := v.(string); ok {
		list, ok := parseListLiteral(s)
		if !ok {
			return nil
		}
		v = list
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	var votes []Vote
	for _, item := range items {
		switch e := item.(type) {
		case map[string]any:
			name := firstString(e, "disease", "pathology", "PATHOLOGY", "name")
			if name == "" {
				continue
			}
			prob, ok := firstFloat(e, "probability", "prob")
			if !ok {
				prob = DefaultVoteProbability
			}
			votes = append(votes, Vote{Name: name, Probability: prob})
		case []any:
			if len(e) == 0 {
				continue
			}
			name := strings.TrimSpace(AsString(e[0]))
			if name == "" {
				continue
			}
			prob := DefaultVoteProbability
			if len(e) > 1 {
				if f, ok := AsFloat(e[1]); ok {
					prob = f
				}
			}
			votes = append(votes, Vote{Name: name, Probability: prob})
		}
	}
	return votes
}

// LongText joins every string value longer than minLen, in sorted key order
func LongText(rec Record, minLen int) string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		if s, ok := rec[k].(string); ok && len(s) > minLen {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(AsString(m[k])); s != "" {
			return s
		}
	}
	return ""
}

func firstFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if f, ok := AsFloat(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// parseListLiteral decodes list columns exported as text, including the
// single-quoted form produced by some dataset dumps
func parseListLiteral(s string) ([]any, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, false
	}
	var list []any
	if err := json.Unmarshal([]byte(s), &list); err == nil {
		return list, true
	}
	if err := json.Unmarshal([]byte(strings.ReplaceAll(s, "'", `"`)), &list); err == nil {
		return list, true
	}
	return nil, false
}
