package coreloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/taskctl/pkg/migrate"
	"github.com/taskorch/taskctl/pkg/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(dir, storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = migrate.New(db).Apply(context.Background())
	require.NoError(t, err)

	_, err = db.SQL().Exec(`INSERT INTO tasks (id, title, status, priority, created_at, updated_at)
		VALUES ('T1', 'task', 'pending', 'medium', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`)
	require.NoError(t, err)
	return db
}

func TestAppendAndListProgress(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := AppendProgress(ctx, db.SQL(), "T1", "alice", "started investigating")
	require.NoError(t, err)
	_, err = AppendProgress(ctx, db.SQL(), "T1", "alice", "found the root cause")
	require.NoError(t, err)

	entries, err := ListProgress(ctx, db.SQL(), "T1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "started investigating", entries[0].Message)
	assert.Equal(t, "found the root cause", entries[1].Message)
}

func TestListProgressEmptyForUnknownTask(t *testing.T) {
	db := openTestDB(t)
	entries, err := ListProgress(context.Background(), db.SQL(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
