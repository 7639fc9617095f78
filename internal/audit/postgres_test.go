package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddx-ranking-engine/internal/domain"
)

var auditColumns = []string{
	"run_id", "input_hash", "top_k", "candidates", "excluded", "red_flags", "sources", "duration_ms", "created_at",
}

func setupMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestNewPostgresStoreRequiresDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := setupMockStore(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := sampleRecord("run-1", at)

	mock.ExpectExec("INSERT INTO audit_runs").
		WithArgs("run-1", "hash-run-1", 5, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(12), at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveError(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec("INSERT INTO audit_runs").WillReturnError(errors.New("connection reset"))

	err := store.Save(context.Background(), sampleRecord("run-1", time.Now()))
	assert.ErrorContains(t, err, "failed to upsert audit run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := setupMockStore(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(auditColumns).AddRow(
		"run-1", "hash", 5,
		[]byte(`[{"canonical_name":"Pneumonia","rank":1,"score":0.6,"status":"active","evidence_type":"case-bank-probabilistic","provenance":{"source_kind":"evidence","rule_applied":false,"llm_used":false},"excluded":false}]`),
		[]byte(`[]`), []byte(`[]`),
		[]byte(`[{"name":"cases","evidence_type":"case-bank-probabilistic","available":true,"candidates":1}]`),
		int64(7), at,
	)
	mock.ExpectQuery(`SELECT (.+) FROM audit_runs WHERE run_id = \$1`).
		WithArgs("run-1").
		WillReturnRows(rows)

	got, err := store.Get(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, "Pneumonia", got.Candidates[0].CanonicalName)
	assert.Equal(t, domain.CASE_BANK, got.Candidates[0].EvidenceType)
	assert.Empty(t, got.Excluded)
	assert.Equal(t, "cases", got.Sources[0].Name)
	assert.Equal(t, int64(7), got.DurationMs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM audit_runs WHERE run_id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(auditColumns))

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresStore_GetCorruptPayload(t *testing.T) {
	store, mock := setupMockStore(t)

	rows := sqlmock.NewRows(auditColumns).AddRow(
		"run-1", "hash", 5, []byte(`{not json`), []byte(`[]`), []byte(`[]`), []byte(`[]`), int64(1), time.Now(),
	)
	mock.ExpectQuery(`SELECT (.+) FROM audit_runs`).WillReturnRows(rows)

	_, err := store.Get(context.Background(), "run-1")
	assert.ErrorContains(t, err, "failed to decode candidates")
}

func TestPostgresStore_ListAndCount(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows(auditColumns).
		AddRow("run-2", "h2", 5, []byte(`[]`), []byte(`[]`), []byte(`[]`), []byte(`[]`), int64(2), now).
		AddRow("run-1", "h1", 5, []byte(`[]`), []byte(`[]`), []byte(`[]`), []byte(`[]`), int64(1), now.Add(-time.Minute))
	mock.ExpectQuery(`SELECT (.+) FROM audit_runs ORDER BY created_at DESC`).
		WithArgs(10, 0).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_runs`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))

	list, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "run-2", list[0].RunID)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
