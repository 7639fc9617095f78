package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/ddx-ranking-engine/internal/domain"
)

const selectColumns = `run_id, input_hash, top_k, candidates, excluded, red_flags, sources, duration_ms, created_at`

// SQLiteStore implements domain.AuditStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite audit store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_runs (
		run_id TEXT PRIMARY KEY,
		input_hash TEXT NOT NULL,
		top_k INTEGER NOT NULL,
		candidates TEXT NOT NULL DEFAULT '[]',
		excluded TEXT NOT NULL DEFAULT '[]',
		red_flags TEXT NOT NULL DEFAULT '[]',
		sources TEXT NOT NULL DEFAULT '[]',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_input_hash ON audit_runs(input_hash);
	CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_runs(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Save inserts a run. Saving the same run ID twice replaces the earlier row.
func (s *SQLiteStore) Save(ctx context.Context, record *domain.AuditRecord) error {
	p, err := encodePayload(record)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO audit_runs (
			run_id, input_hash, top_k, candidates, excluded, red_flags, sources, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
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
		return fmt.Errorf("failed to insert audit run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID
func (s *SQLiteStore) Get(ctx context.Context, runID string) (*domain.AuditRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM audit_runs WHERE run_id = ?`, runID)

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
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*domain.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM audit_runs ORDER BY created_at DESC, run_id LIMIT ? OFFSET ?`,
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_runs").Scan(&count)
	return count, err
}

// Close closes the store and releases resources
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
