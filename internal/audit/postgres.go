package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/ddx-ranking-engine/internal/domain"
)

// PostgresStore implements domain.AuditStore using PostgreSQL.
// It expects the schema to exist already (created via migrations).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL audit store
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL audit store from a connection URL
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Save upserts a run keyed by run ID
func (s *PostgresStore) Save(ctx context.Context, record *domain.AuditRecord) error {
	p, err := encodePayload(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_runs (
			run_id, input_hash, top_k, candidates, excluded, red_flags, sources, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			input_hash = EXCLUDED.input_hash,
			top_k = EXCLUDED.top_k,
			candidates = EXCLUDED.candidates,
			excluded = EXCLUDED.excluded,
			red_flags = EXCLUDED.red_flags,
			sources = EXCLUDED.sources,
			duration_ms = EXCLUDED.duration_ms
	`
	_, err = s.db.ExecContext(ctx, query,
		record.RunID,
		record.InputHash,
		record.TopK,
		string(p.candidates),
		string(p.excluded),
		string(p.redFlags),
		string(p.sources),
		record.DurationMs,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert audit run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID
func (s *PostgresStore) Get(ctx context.Context, runID string) (*domain.AuditRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM audit_runs WHERE run_id = $1`, runID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audit run %s: %w", runID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rec, nil
}

// List returns runs newest first with pagination
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*domain.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM audit_runs ORDER BY created_at DESC, run_id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*domain.AuditRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Count returns the number of stored runs
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_runs").Scan(&count)
	return count, err
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
