package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxpack/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	return storage
}

func delivery(session, symbol, etag string) types.DeliveryRecord {
	return types.DeliveryRecord{
		SessionID:      session,
		SymbolID:       symbol,
		ETag:           etag,
		Representation: types.RepFull,
		TokenEstimate:  12,
	}
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	assert.NotNil(t, storage.db)

	version, err := currentSchemaVersion(context.Background(), storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())
}

func TestNewSQLiteStorage_CreatesDirectory(t *testing.T) {
	root := t.TempDir()
	path := DefaultPath(root)
	assert.Equal(t, filepath.Join(root, ".ctxpack", "state.db"), path)

	storage, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, storage.Close())

	// Reopening applies no migrations and keeps data
	storage, err = NewSQLiteStorage(path)
	require.NoError(t, err)
	defer storage.Close()
}

func TestOpenSession(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	sess, err := storage.OpenSession(ctx, "s1", "fp-1", "python")
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.SessionID)
	assert.Equal(t, "fp-1", sess.RepoFingerprint)
	assert.Equal(t, "python", sess.Language)
	assert.False(t, sess.CreatedAt.IsZero())

	require.NoError(t, storage.RecordDelivery(ctx, &types.DeliveryRecord{
		SessionID: "s1", SymbolID: "a.py:f", ETag: "e1", Representation: types.RepFull,
	}))

	// Reopening with a new fingerprint keeps the session and its deliveries
	again, err := storage.OpenSession(ctx, "s1", "fp-2", "python")
	require.NoError(t, err)
	assert.Equal(t, "fp-1", again.RepoFingerprint)
	assert.Equal(t, sess.CreatedAt, again.CreatedAt)

	recs, err := storage.ListDeliveries(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestOpenSession_EmptyID(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	_, err := storage.OpenSession(context.Background(), "", "fp", "go")
	assert.ErrorIs(t, err, types.ErrEmptySessionID)
}

func TestGetSession_NotFound(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	_, err := storage.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckDelta(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	_, err := storage.OpenSession(ctx, "s1", "fp", "go")
	require.NoError(t, err)

	require.NoError(t, storage.RecordDeliveriesBatch(ctx, []types.DeliveryRecord{
		delivery("s1", "a", "e-a"),
		delivery("s1", "b", "e-b"),
	}))

	delta, err := storage.CheckDelta(ctx, "s1", map[string]string{
		"a": "e-a",     // same etag
		"b": "e-b-new", // content changed
		"c": "e-c",     // never delivered
	})
	require.NoError(t, err)

	assert.True(t, delta.IsUnchanged("a"))
	assert.False(t, delta.IsUnchanged("b"))
	assert.False(t, delta.IsUnchanged("c"))
	assert.Len(t, delta.Unchanged, 1)
	assert.Len(t, delta.Changed, 2)
}

func TestCheckDelta_SessionIsolation(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	for _, id := range []string{"s1", "s2"} {
		_, err := storage.OpenSession(ctx, id, "fp", "go")
		require.NoError(t, err)
	}
	require.NoError(t, storage.RecordDeliveriesBatch(ctx, []types.DeliveryRecord{delivery("s1", "a", "e")}))

	delta, err := storage.CheckDelta(ctx, "s2", map[string]string{"a": "e"})
	require.NoError(t, err)
	assert.False(t, delta.IsUnchanged("a"))
}

func TestCheckDelta_LargeBatch(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	_, err := storage.OpenSession(ctx, "s1", "fp", "go")
	require.NoError(t, err)

	n := deltaBatchSize*2 + 7
	recs := make([]types.DeliveryRecord, 0, n)
	etags := make(map[string]string, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("sym%04d", i)
		recs = append(recs, delivery("s1", id, "e"))
		etags[id] = "e"
	}
	require.NoError(t, storage.RecordDeliveriesBatch(ctx, recs))

	delta, err := storage.CheckDelta(ctx, "s1", etags)
	require.NoError(t, err)
	assert.Len(t, delta.Unchanged, n)
	assert.Empty(t, delta.Changed)
}

func TestCheckDelta_Empty(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	delta, err := storage.CheckDelta(context.Background(), "s1", nil)
	require.NoError(t, err)
	assert.Empty(t, delta.Unchanged)
	assert.Empty(t, delta.Changed)
}

func TestRecordDelivery_Upsert(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	_, err := storage.OpenSession(ctx, "s1", "fp", "go")
	require.NoError(t, err)

	first := delivery("s1", "a", "e1")
	first.DeliveredAt = time.UnixMilli(1_700_000_000_000)
	require.NoError(t, storage.RecordDelivery(ctx, &first))

	second := delivery("s1", "a", "e2")
	second.Representation = types.RepElided
	require.NoError(t, storage.RecordDelivery(ctx, &second))
	assert.False(t, second.DeliveredAt.IsZero())

	got, err := storage.GetDelivery(ctx, "s1", "a")
	require.NoError(t, err)
	assert.Equal(t, "e2", got.ETag)
	assert.Equal(t, types.RepElided, got.Representation)
	assert.True(t, got.DeliveredAt.After(first.DeliveredAt))

	recs, err := storage.ListDeliveries(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRecordDelivery_Idempotent(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	_, err := storage.OpenSession(ctx, "s1", "fp", "go")
	require.NoError(t, err)

	batch := []types.DeliveryRecord{delivery("s1", "a", "e"), delivery("s1", "b", "e")}
	require.NoError(t, storage.RecordDeliveriesBatch(ctx, batch))
	require.NoError(t, storage.RecordDeliveriesBatch(ctx, batch))

	recs, err := storage.ListDeliveries(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].SymbolID)
	assert.Equal(t, "b", recs[1].SymbolID)
}

func TestRecordDelivery_UnknownSession(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	rec := delivery("nope", "a", "e")
	err := storage.RecordDelivery(context.Background(), &rec)
	assert.Error(t, err) // foreign key violation
}

func TestRecordDeliveriesBatch_Atomic(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	_, err := storage.OpenSession(ctx, "s1", "fp", "go")
	require.NoError(t, err)

	err = storage.RecordDeliveriesBatch(ctx, []types.DeliveryRecord{
		delivery("s1", "a", "e"),
		delivery("", "b", "e"),
	})
	assert.ErrorIs(t, err, types.ErrEmptySessionID)

	_, err = storage.GetDelivery(ctx, "s1", "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetDelivery_NotFound(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	_, err := storage.GetDelivery(context.Background(), "s1", "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBeginTx_CommitRollback(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()

	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.OpenSession(ctx, "rolled-back", "fp", "go")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	_, err = storage.GetSession(ctx, "rolled-back")
	assert.ErrorIs(t, err, ErrNotFound)

	tx, err = storage.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.OpenSession(ctx, "committed", "fp", "go")
	require.NoError(t, err)
	rec := delivery("committed", "a", "e")
	require.NoError(t, tx.RecordDelivery(ctx, &rec))

	delta, err := tx.CheckDelta(ctx, "committed", map[string]string{"a": "e"})
	require.NoError(t, err)
	assert.True(t, delta.IsUnchanged("a"))

	_, err = tx.BeginTx(ctx)
	assert.Error(t, err)
	require.NoError(t, tx.Commit())

	sess, err := storage.GetSession(ctx, "committed")
	require.NoError(t, err)
	assert.Equal(t, "committed", sess.SessionID)
}

func TestMigrations_Rollback(t *testing.T) {
	db, err := openDatabase(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, ApplyMigrations(ctx, db))

	// v1.1.0 down drops last_seen_at
	require.NoError(t, RollbackMigration(ctx, db))
	version, err := currentSchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version.String())
	assert.False(t, hasColumn(t, db, "sessions", "last_seen_at"))

	// Reapplying restores it
	require.NoError(t, ApplyMigrations(ctx, db))
	assert.True(t, hasColumn(t, db, "sessions", "last_seen_at"))

	require.NoError(t, RollbackMigration(ctx, db))
	require.NoError(t, RollbackMigration(ctx, db))
	version, err = currentSchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", version.String())
	assert.Error(t, RollbackMigration(ctx, db))
}

func hasColumn(t *testing.T, db *sql.DB, table, column string) bool {
	t.Helper()
	rows, err := db.Query(fmt.Sprintf("SELECT name FROM pragma_table_info('%s')", table))
	require.NoError(t, err)
	defer rows.Close()

	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		if name == column {
			return true
		}
	}
	require.NoError(t, rows.Err())
	return false
}
