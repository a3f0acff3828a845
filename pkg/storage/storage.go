// Package storage provides the embedded, file-backed relational store that
// backs every other component: tasks, dependency edges, collaboration
// records, notifications, and the core-loop tables all live in one SQLite
// database file, opened in WAL mode for concurrent readers. Compound writes
// that must see a consistent view across multiple rows serialize through a
// single cross-process advisory file lock (see lock.go); single-row reads
// and writes rely on SQLite's own transaction semantics.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/taskorch/taskctl/pkg/apperrors"
	"github.com/taskorch/taskctl/pkg/log"
)

// DBFileName is the SQLite database file inside the state directory.
const DBFileName = "tasks.db"

// LockFileName is the advisory-lock sentinel inside the state directory.
const LockFileName = ".lock"

// DefaultLockTimeout is the bounded wait for the advisory lock per §4.1/§5.
const DefaultLockTimeout = 5 * time.Second

// Retry parameters for transient BUSY/LOCKED conditions (§4.1).
const (
	retryInitialDelay = 50 * time.Millisecond
	retryMaxDelay      = 2 * time.Second
	retryMaxAttempts    = 5
)

// DB is a handle onto the embedded store plus its advisory lock.
type DB struct {
	sql         *sql.DB
	path        string
	stateDir    string
	lock        *Lock
	lockTimeout time.Duration
}

// Options configures Open.
type Options struct {
	// LockTimeout overrides DefaultLockTimeout.
	LockTimeout time.Duration
}

// Open opens (creating if necessary) the SQLite store under stateDir and
// acquires nothing yet — the advisory lock is taken per compound operation
// via WithLock. Open runs a PRAGMA integrity_check and fails with
// CorruptStore if it reports anything other than "ok".
func Open(stateDir string, opts Options) (*DB, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, &apperrors.StorageUnavailable{Path: stateDir, Reason: err.Error()}
	}

	path := filepath.Join(stateDir, DBFileName)
	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)",
		path,
	)

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &apperrors.StorageUnavailable{Path: path, Reason: err.Error()}
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, &apperrors.StorageUnavailable{Path: path, Reason: err.Error()}
	}

	var integrity string
	if err := sqlDB.QueryRow("PRAGMA integrity_check").Scan(&integrity); err != nil {
		sqlDB.Close()
		return nil, &apperrors.CorruptStore{Path: path, Reason: err.Error()}
	}
	if !strings.EqualFold(integrity, "ok") {
		sqlDB.Close()
		return nil, &apperrors.CorruptStore{Path: path, Reason: integrity}
	}

	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	lock := NewLock(filepath.Join(stateDir, LockFileName))

	return &DB{
		sql:         sqlDB,
		path:        path,
		stateDir:    stateDir,
		lock:        lock,
		lockTimeout: timeout,
	}, nil
}

// Path returns the underlying database file path.
func (d *DB) Path() string { return d.path }

// StateDir returns the state directory this store was opened under.
func (d *DB) StateDir() string { return d.stateDir }

// SQL exposes the raw *sql.DB for packages that need read-only queries
// outside a compound operation (e.g. list/show).
func (d *DB) SQL() *sql.DB { return d.sql }

// Close releases the database handle.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Tx runs fn inside a single SQLite transaction: commits on success, rolls
// back on error or panic. It does not take the advisory lock; callers that
// need cross-row consistency across a compound operation should wrap the
// call in WithLock first.
func (d *DB) Tx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	return withRetry(func() error {
		tx, beginErr := d.sql.BeginTx(ctx, nil)
		if beginErr != nil {
			return beginErr
		}
		defer func() {
			if p := recover(); p != nil {
				tx.Rollback()
				panic(p)
			}
		}()
		if err = fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// WithLock acquires the cross-process advisory lock (bounded by the store's
// configured lock timeout), runs fn, and releases the lock. Use this around
// compound operations that must see a consistent view across multiple rows:
// add (cycle check), complete (cascade), migrate.
func (d *DB) WithLock(ctx context.Context, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, d.lockTimeout)
	defer cancel()

	// A fresh Lock per call opens its own descriptor on the sentinel, so
	// concurrent calls within one process exclude each other as well.
	lock := NewLock(d.lock.path)
	heldBy, ok, err := lock.Acquire(lockCtx)
	if err != nil {
		return err
	}
	if !ok {
		return &apperrors.LockTimeout{HeldBy: heldBy}
	}
	defer lock.Release()

	return fn()
}

// withRetry retries fn on transient BUSY/LOCKED conditions with exponential
// backoff (50ms -> 2s, 5 attempts), per §4.1/§5.
func withRetry(fn func() error) error {
	delay := retryInitialDelay
	var lastErr error
	for attempt := 0; attempt < retryMaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		lastErr = err
		log.Debug(fmt.Sprintf("store busy, retrying in %s (attempt %d)", delay, attempt+1))
		time.Sleep(delay)
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
	return &apperrors.Busy{Attempts: retryMaxAttempts}
}

// isBusy reports whether err looks like a SQLite BUSY/LOCKED condition. The
// ncruces driver surfaces these as errors whose text mentions "busy" or
// "locked"; we match defensively on substring since the exact error type
// isn't exported identically across driver versions.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "busy") || strings.Contains(msg, "locked")
}

// ErrNoRows re-exports sql.ErrNoRows so callers need not import database/sql
// just to compare against it.
var ErrNoRows = sql.ErrNoRows

// IsNoRows reports whether err is (or wraps) sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
