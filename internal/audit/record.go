// Package audit persists a trace of every ranking run: the ranked output,
// the excluded candidates with their reasons, red flags and per-source
// statistics, keyed by run ID and input hash.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ddx-ranking-engine/internal/domain"
)

const (
	// maxExportLimit is the maximum number of runs exported at once
	maxExportLimit = 1000000
	exportVersion  = "1.0"
)

// Export is the JSON document written by ExportJSON
type Export struct {
	Version    string                `json:"version"`
	ExportedAt time.Time             `json:"exported_at"`
	Count      int                   `json:"count"`
	Runs       []*domain.AuditRecord `json:"runs"`
}

// payload holds the JSON-encoded columns of an audit row
type payload struct {
	candidates []byte
	excluded   []byte
	redFlags   []byte
	sources    []byte
}

func encodePayload(r *domain.AuditRecord) (*payload, error) {
	var p payload
	var err error
	if p.candidates, err = marshalList(r.Candidates); err != nil {
		return nil, fmt.Errorf("failed to encode candidates: %w", err)
	}
	if p.excluded, err = marshalList(r.Excluded); err != nil {
		return nil, fmt.Errorf("failed to encode excluded candidates: %w", err)
	}
	if p.redFlags, err = marshalList(r.RedFlags); err != nil {
		return nil, fmt.Errorf("failed to encode red flags: %w", err)
	}
	if p.sources, err = marshalList(r.Sources); err != nil {
		return nil, fmt.Errorf("failed to encode source stats: %w", err)
	}
	return &p, nil
}

// marshalList encodes nil slices as [] so every column holds a JSON array
func marshalList[T any](list []T) ([]byte, error) {
	if list == nil {
		list = []T{}
	}
	return json.Marshal(list)
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*domain.AuditRecord, error) {
	rec := &domain.AuditRecord{}
	var candidates, excluded, redFlags, sources []byte

	err := s.Scan(
		&rec.RunID, &rec.InputHash, &rec.TopK,
		&candidates, &excluded, &redFlags, &sources,
		&rec.DurationMs, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, col := range []struct {
		name string
		data []byte
		dest any
	}{
		{"candidates", candidates, &rec.Candidates},
		{"excluded", excluded, &rec.Excluded},
		{"red_flags", redFlags, &rec.RedFlags},
		{"sources", sources, &rec.Sources},
	} {
		if len(col.data) == 0 {
			continue
		}
		if err := json.Unmarshal(col.data, col.dest); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", col.name, err)
		}
	}
	return rec, nil
}

// ExportJSON writes every stored run, newest first, as one JSON document
func ExportJSON(ctx context.Context, store domain.AuditStore, writer io.Writer) error {
	runs, err := store.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list audit runs: %w", err)
	}
	if runs == nil {
		runs = []*domain.AuditRecord{}
	}

	export := &Export{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(runs),
		Runs:       runs,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
