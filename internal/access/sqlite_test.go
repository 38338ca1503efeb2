package access

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"embed-delivery/internal/media"
	"embed-delivery/internal/platform/database"
	"embed-delivery/internal/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "access.sqlite"), database.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func TestSQLitePolicyStore_FindAndUpsert(t *testing.T) {
	store := NewSQLitePolicyStore(openDB(t))
	ctx := context.Background()

	_, err := store.FindPolicy(ctx, "example.com")
	assert.ErrorIs(t, err, ErrNoPolicy)

	created, err := store.UpsertPolicy(ctx, Policy{Domain: "example.com", Disposition: Deny})
	require.NoError(t, err)
	assert.NotEmpty(t, created.RecordID)
	assert.Equal(t, Deny, created.Disposition)

	updated, err := store.UpsertPolicy(ctx, Policy{Domain: "example.com", Disposition: Allow})
	require.NoError(t, err)
	assert.Equal(t, created.RecordID, updated.RecordID, "record id is stable across updates")
	assert.Equal(t, Allow, updated.Disposition)
}

func TestSQLitePolicyStore_ClosedDBFailsOpenThroughGate(t *testing.T) {
	db := openDB(t)
	store := NewSQLitePolicyStore(db)
	_, err := store.UpsertPolicy(context.Background(), Policy{Domain: "blocked.com", Disposition: Deny})
	require.NoError(t, err)
	db.Close()

	_, err = store.FindPolicy(context.Background(), "blocked.com")
	assert.ErrorIs(t, err, media.ErrStoreUnavailable)

	d := NewGate(store, nil, logger.Discard(), nil, time.Second).Check(context.Background(), "https://blocked.com/", "")
	assert.True(t, d.Allowed)
	assert.Equal(t, ReasonLookupFailed, d.Reason)
}

func TestAsyncAuditor_WritesToSQLite(t *testing.T) {
	db := openDB(t)
	aud := NewAsyncAuditor(NewSQLiteAuditSink(db), 16, logger.Discard(), nil)

	aud.Record(NewEvent(Decision{Allowed: false, Domain: "blocked.com", RecordID: "rec-1", Reason: ReasonDenied}, "res-1"))
	aud.Record(NewEvent(Decision{Allowed: true, Domain: "other.com", Reason: ReasonNoPolicy}, ""))
	aud.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM access_log").Scan(&n))
	assert.Equal(t, 2, n)

	var recordID sql.NullString
	require.NoError(t, db.QueryRow("SELECT record_id FROM access_log WHERE domain = 'other.com'").Scan(&recordID))
	assert.False(t, recordID.Valid)

	// Recording after Close is ignored rather than panicking.
	aud.Record(NewEvent(Decision{Domain: "late.com"}, ""))
	aud.Close()
}
