package migrate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/taskctl/pkg/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(dir, storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStatusInitiallyAllPending(t *testing.T) {
	db := openTestDB(t)
	m := New(db)
	status, err := m.Status(context.Background())
	require.NoError(t, err)
	assert.Empty(t, status.Applied)
	assert.Len(t, status.Pending, len(Versions))
}

func TestApplyRunsAllPending(t *testing.T) {
	db := openTestDB(t)
	m := New(db)
	ctx := context.Background()

	applied, err := m.Apply(ctx)
	require.NoError(t, err)
	assert.Len(t, applied, len(Versions))

	status, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, status.Pending)
	assert.Len(t, status.Applied, len(Versions))

	var name string
	err = db.SQL().QueryRow("SELECT name FROM sqlite_master WHERE name = 'tasks'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "tasks", name)
}

func TestApplyIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	m := New(db)
	ctx := context.Background()

	_, err := m.Apply(ctx)
	require.NoError(t, err)

	second, err := m.Apply(ctx)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestApplyWritesBackup(t *testing.T) {
	db := openTestDB(t)
	m := New(db)
	ctx := context.Background()

	_, err := m.Apply(ctx)
	require.NoError(t, err)

	backupDir := filepath.Join(db.StateDir(), BackupDirName)
	entries, err := filepathGlobAny(backupDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestRollbackRestoresPriorSchema(t *testing.T) {
	db := openTestDB(t)
	m := New(db)
	ctx := context.Background()

	// Apply only the first migration's worth of schema by applying all,
	// then add a marker table representing "new" work, then roll back to
	// the backup taken before the last migration.
	_, err := m.Apply(ctx)
	require.NoError(t, err)

	_, err = db.SQL().Exec(`CREATE TABLE marker (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)

	restored, err := m.Rollback(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, restored)

	require.NoError(t, db.Close())

	reopened, err := storage.Open(db.StateDir(), storage.Options{})
	require.NoError(t, err)
	defer reopened.Close()

	var name string
	err = reopened.SQL().QueryRow("SELECT name FROM sqlite_master WHERE name = 'marker'").Scan(&name)
	assert.True(t, storage.IsNoRows(err), "marker table should not survive rollback to pre-last-migration backup")
}

func filepathGlobAny(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*"))
}
