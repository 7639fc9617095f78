package corpus

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source yields an already-materialized record sequence. Loading is the only
// I/O a corpus performs; records are read-only afterwards.
type Source interface {
	Name() string
	Load() ([]Record, error)
}

// StaticSource serves records that are already in memory
type StaticSource struct {
	name    string
	records []Record
}

// NewStaticSource creates a source over in-memory records
func NewStaticSource(name string, records []Record) *StaticSource {
	return &StaticSource{name: name, records: records}
}

// Name returns the source name
func (s *StaticSource) Name() string { return s.name }

// Load returns the in-memory records
func (s *StaticSource) Load() ([]Record, error) { return s.records, nil }

// FileSource reads a local corpus file. The format follows the extension:
// .jsonl/.ndjson (one object per line), .json (an array, or an object with
// a "train" or "data" array), .csv (header row), .yaml/.yml (a list).
type FileSource struct {
	name string
	path string
}

// NewFileSource creates a source for a local corpus file
func NewFileSource(name, path string) *FileSource {
	return &FileSource{name: name, path: path}
}

// Name returns the source name
func (s *FileSource) Name() string { return s.name }

// Path returns the file path
func (s *FileSource) Path() string { return s.path }

// Load reads and decodes the file
func (s *FileSource) Load() ([]Record, error) {
	if s.path == "" {
		return nil, errors.New("no corpus path configured")
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".jsonl", ".ndjson":
		return decodeJSONLines(f)
	case ".json":
		return decodeJSON(f)
	case ".csv":
		return decodeCSV(f)
	case ".yaml", ".yml":
		return decodeYAML(f)
	default:
		return nil, fmt.Errorf("unsupported corpus format %q", filepath.Ext(s.path))
	}
}

func decodeJSONLines(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return records, nil
}

func decodeJSON(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var records []Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to decode corpus: %w", err)
		}
		return records, nil
	}

	var split map[string][]Record
	if err := json.Unmarshal(data, &split); err != nil {
		return nil, fmt.Errorf("failed to decode corpus: %w", err)
	}
	for _, key := range []string{"train", "data", "records"} {
		if records, ok := split[key]; ok {
			return records, nil
		}
	}
	return nil, errors.New("json corpus has no train, data or records array")
}

func decodeCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var records []Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}
		rec := make(Record, len(header))
		for i, col := range header {
			if i < len(row) && row[i] != "" {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeYAML(r io.Reader) ([]Record, error) {
	var records []Record
	if err := yaml.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode corpus: %w", err)
	}
	return records, nil
}
