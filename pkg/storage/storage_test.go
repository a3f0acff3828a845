package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir, Options{LockTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenCreatesDBFile(t *testing.T) {
	db := openTestDB(t)
	assert.FileExists(t, db.Path())
}

func TestTxCommitsOnSuccess(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.Tx(ctx, func(tx *sql.Tx) error {
		_, execErr := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS probe (id INTEGER PRIMARY KEY)")
		return execErr
	})
	require.NoError(t, err)

	var name string
	err = db.SQL().QueryRow("SELECT name FROM sqlite_master WHERE name = 'probe'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "probe", name)
}

func TestTxRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	wantErr := errors.New("boom")
	err := db.Tx(ctx, func(tx *sql.Tx) error {
		if _, execErr := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS rollback_probe (id INTEGER PRIMARY KEY)"); execErr != nil {
			return execErr
		}
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	var name string
	err = db.SQL().QueryRow("SELECT name FROM sqlite_master WHERE name = 'rollback_probe'").Scan(&name)
	assert.True(t, IsNoRows(err))
}

func TestWithLockSerializes(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var order []int
	err := db.WithLock(ctx, func() error {
		order = append(order, 1)
		return nil
	})
	require.NoError(t, err)

	err = db.WithLock(ctx, func() error {
		order = append(order, 2)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, order)
}

func TestWithLockTimesOutWhenHeld(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, Options{LockTimeout: 150 * time.Millisecond})
	require.NoError(t, err)
	defer db.Close()

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = db.WithLock(context.Background(), func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	err = db.WithLock(context.Background(), func() error { return nil })
	assert.Error(t, err)
}

func TestLockFilePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LockFileName)
	assert.Equal(t, path, NewLock(path).path)
}
