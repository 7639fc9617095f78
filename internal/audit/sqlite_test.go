package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddx-ranking-engine/internal/domain"
)

func sampleRecord(runID string, at time.Time) *domain.AuditRecord {
	return &domain.AuditRecord{
		RunID:     runID,
		InputHash: "hash-" + runID,
		TopK:      5,
		Candidates: []*domain.DiagnosisCandidate{
			{CanonicalName: "Acute Coronary Syndrome", Rank: 1, Score: 0.5, EvidenceType: domain.CASE_BANK,
				CorroboratingSources: []domain.EvidenceType{domain.LABEL_MAPPING}},
		},
		Excluded: []*domain.DiagnosisCandidate{
			{CanonicalName: "Prostate Cancer", Score: 0.9, Excluded: true, Status: domain.STATUS_EXCLUDED,
				ExclusionReason: "Patient is female, cannot have prostate cancer"},
		},
		RedFlags:   []domain.RedFlag{{Severity: domain.SEVERITY_WARNING, Flag: "Chest pain with diaphoresis"}},
		Sources:    []domain.SourceStat{{Name: "cases", EvidenceType: domain.CASE_BANK, Available: true, Candidates: 3}},
		DurationMs: 12,
		CreatedAt:  at,
	}
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sampleRecord("run-1", at)))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "hash-run-1", got.InputHash)
	assert.Equal(t, 5, got.TopK)
	assert.Equal(t, int64(12), got.DurationMs)
	assert.True(t, got.CreatedAt.Equal(at))
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, []domain.EvidenceType{domain.LABEL_MAPPING}, got.Candidates[0].CorroboratingSources)
	require.Len(t, got.Excluded, 1)
	assert.Equal(t, "Patient is female, cannot have prostate cancer", got.Excluded[0].ExclusionReason)
	assert.Len(t, got.RedFlags, 1)
	assert.Equal(t, 3, got.Sources[0].Candidates)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := newSQLiteStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	rec := sampleRecord("run-1", time.Now().UTC())

	require.NoError(t, store.Save(ctx, rec))
	rec.DurationMs = 99
	require.NoError(t, store.Save(ctx, rec))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(99), got.DurationMs)
}

func TestSQLiteStore_EmptyListsRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	rec := &domain.AuditRecord{RunID: "empty", InputHash: "h", TopK: 3, CreatedAt: time.Now().UTC()}

	require.NoError(t, store.Save(ctx, rec))
	got, err := store.Get(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, got.Candidates)
	assert.Empty(t, got.Excluded)
}

func TestSQLiteStore_ListAndExport(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, store.Save(ctx, sampleRecord(id, base.Add(time.Duration(i)*time.Minute))))
	}

	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "run-c", page[0].RunID)
	assert.Equal(t, "run-b", page[1].RunID)

	rest, err := store.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "run-a", rest[0].RunID)

	var buf bytes.Buffer
	require.NoError(t, ExportJSON(ctx, store, &buf))

	var export Export
	require.NoError(t, json.Unmarshal(buf.Bytes(), &export))
	assert.Equal(t, exportVersion, export.Version)
	assert.Equal(t, 3, export.Count)
	assert.Equal(t, "run-c", export.Runs[0].RunID)
}

func TestExportJSONEmptyStore(t *testing.T) {
	store := newSQLiteStore(t)

	var buf bytes.Buffer
	require.NoError(t, ExportJSON(context.Background(), store, &buf))
	assert.Contains(t, buf.String(), `"runs": []`)
	assert.Contains(t, buf.String(), `"count": 0`)
}

func TestOpen(t *testing.T) {
	logger := quietLogger()

	store, err := Open(domain.AuditConfig{Driver: domain.AuditDriverNone}, logger)
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = Open(domain.AuditConfig{Driver: domain.AuditDriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "a.db")}, logger)
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.IsType(t, &SQLiteStore{}, store)
	assert.NoError(t, store.Close())

	_, err = Open(domain.AuditConfig{Driver: "mongo"}, logger)
	assert.Error(t, err)
}
