package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLite_KV(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Set(ctx, "k", []byte("v1")))
	require.NoError(t, db.Set(ctx, "k", []byte("v2")))
	got, err := db.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))
}

func TestSQLite_MigrationsRerun(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "again.db")

	db, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Set(ctx, "k", []byte("kept")))
	require.NoError(t, db.Close())

	db, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	got, err := db.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "kept", string(got))
}

func TestSQLite_PendingLifecycle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	base := time.Date(2025, 5, 5, 10, 0, 0, 0, time.UTC)

	require.NoError(t, db.UpsertPending(ctx, PendingRequest{
		Identifier: "timesignal.everyHour.15", Content: []byte(`{}`), Cron: "15 * * * *", NextFireAt: base.Add(15 * time.Minute),
	}))
	require.NoError(t, db.UpsertPending(ctx, PendingRequest{
		Identifier: "timesignal.everyHour.0", Content: []byte(`{}`), Cron: "0 * * * *", NextFireAt: base,
	}))
	require.NoError(t, db.UpsertPending(ctx, PendingRequest{
		Identifier: "other.app", Content: []byte(`{}`), NextFireAt: base.Add(time.Hour),
	}))

	ids, err := db.ListPendingIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"other.app", "timesignal.everyHour.0", "timesignal.everyHour.15"}, ids)

	due, err := db.ListDue(ctx, base.Add(20*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "timesignal.everyHour.0", due[0].Identifier)
	assert.False(t, due[0].OneShot())

	require.NoError(t, db.SetNextFire(ctx, "timesignal.everyHour.0", base.Add(time.Hour)))
	due, err = db.ListDue(ctx, base.Add(20*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "timesignal.everyHour.15", due[0].Identifier)

	require.NoError(t, db.DeletePending(ctx, []string{"timesignal.everyHour.0", "timesignal.everyHour.15", "nope"}))
	ids, err = db.ListPendingIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"other.app"}, ids)

	due, err = db.ListDue(ctx, base.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.True(t, due[0].OneShot())
}
