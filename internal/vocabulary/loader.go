package vocabulary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// idTableFile accepts both the wrapped layout and a flat id -> name map
type idTableFile struct {
	DiseaseIDToName map[string]string `yaml:"disease_id_to_name" json:"disease_id_to_name"`
}

// LoadIDTable reads a disease-ID table from a local JSON or YAML file
func LoadIDTable(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read id table: %w", err)
	}
	return ParseIDTable(data, filepath.Ext(path))
}

// ParseIDTable decodes an ID table. ext selects the decoder; anything other
// than .json is treated as YAML.
func ParseIDTable(data []byte, ext string) (map[string]string, error) {
	unmarshal := yaml.Unmarshal
	if strings.EqualFold(ext, ".json") {
		unmarshal = json.Unmarshal
	}

	var wrapped idTableFile
	if err := unmarshal(data, &wrapped); err == nil && len(wrapped.DiseaseIDToName) > 0 {
		return wrapped.DiseaseIDToName, nil
	}

	var flat map[string]any
	if err := unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("failed to parse id table: %w", err)
	}
	table := make(map[string]string, len(flat))
	for id, v := range flat {
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("id table entry %q is not a string", id)
		}
		table[id] = name
	}
	return table, nil
}

// LoadEntries reads a replacement keyword list from a YAML or JSON file
func LoadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	return entries, nil
}
