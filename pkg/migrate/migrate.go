// Package migrate applies the ordered, forward-only schema migrations in
// versions.go, taking a point-in-time backup of the database file before
// each apply and recording applied versions in schema_migrations. Rollback
// restores the most recent backup atomically rather than running a
// symmetric down-migration.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/taskorch/taskctl/pkg/apperrors"
	"github.com/taskorch/taskctl/pkg/log"
	"github.com/taskorch/taskctl/pkg/storage"
)

// BackupDirName is the subdirectory of the state dir holding timestamped
// pre-migration backups.
const BackupDirName = "backups"

var logger = log.WithComponent("migrate")

// Status reports, for a given store, which versions are applied and which
// are still pending.
type Status struct {
	Applied []int
	Pending []int
}

// Manager owns migration status/apply/rollback for one store.
type Manager struct {
	db *storage.DB
}

// New creates a Manager bound to db.
func New(db *storage.DB) *Manager {
	return &Manager{db: db}
}

func (m *Manager) ensureMigrationsTable(ctx context.Context) error {
	_, err := m.db.SQL().ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`)
	return err
}

func (m *Manager) appliedVersions(ctx context.Context) ([]int, error) {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return nil, err
	}
	rows, err := m.db.SQL().QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var applied []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied = append(applied, v)
	}
	return applied, rows.Err()
}

// Status returns applied and pending migration versions.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return Status{}, err
	}
	appliedSet := make(map[int]bool, len(applied))
	for _, v := range applied {
		appliedSet[v] = true
	}

	var pending []int
	for _, mig := range Versions {
		if !appliedSet[mig.Version] {
			pending = append(pending, mig.Version)
		}
	}
	return Status{Applied: applied, Pending: pending}, nil
}

// Apply runs every pending migration in order: backup, transactional apply,
// record, commit. It serializes against other Apply/complete/add callers
// via the store's advisory lock. Applying an already-applied version is a
// no-op; running Apply with nothing pending is a no-op.
func (m *Manager) Apply(ctx context.Context) ([]int, error) {
	var applied []int
	err := m.db.WithLock(ctx, func() error {
		status, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, version := range status.Pending {
			mig := findMigration(version)
			if mig == nil {
				continue
			}
			backupPath, err := m.backup(ctx)
			if err != nil {
				return &apperrors.MigrationFailed{Version: version, Reason: fmt.Sprintf("backup failed: %v", err)}
			}
			logger.Info().Int("version", version).Str("backup", backupPath).Msg("applying migration")

			if err := m.applyOne(ctx, *mig); err != nil {
				return &apperrors.MigrationFailed{Version: version, Reason: err.Error()}
			}
			applied = append(applied, version)
		}
		return nil
	})
	return applied, err
}

func (m *Manager) applyOne(ctx context.Context, mig Migration) error {
	return m.db.Tx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range mig.Statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %03d: %w", mig.Version, err)
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			mig.Version, time.Now().UTC().Format(time.RFC3339),
		)
		return err
	})
}

// backup checkpoints the WAL and copies the database file to
// <state-dir>/backups/tasks_backup_<timestamp>.db, returning the backup
// path.
func (m *Manager) backup(ctx context.Context) (string, error) {
	if _, err := m.db.SQL().ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		logger.Warn().Err(err).Msg("wal checkpoint before backup failed, continuing")
	}

	backupDir := filepath.Join(m.db.StateDir(), BackupDirName)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", err
	}

	ts := time.Now().UTC().Format("20060102T150405.000000000")
	dest := filepath.Join(backupDir, fmt.Sprintf("tasks_backup_%s.db", ts))
	if err := copyFile(m.db.Path(), dest); err != nil {
		return "", err
	}
	return dest, nil
}

// Rollback restores the most recent backup over the live database file via
// an atomic rename. The caller must reopen the store afterward.
func (m *Manager) Rollback(ctx context.Context) (string, error) {
	var restored string
	err := m.db.WithLock(ctx, func() error {
		backupDir := filepath.Join(m.db.StateDir(), BackupDirName)
		latest, err := latestBackup(backupDir)
		if err != nil {
			return err
		}
		if latest == "" {
			return fmt.Errorf("no backups found in %s", backupDir)
		}

		tmp := m.db.Path() + ".rollback-tmp"
		if err := copyFile(latest, tmp); err != nil {
			return err
		}
		if err := os.Rename(tmp, m.db.Path()); err != nil {
			return err
		}
		// Drop now-stale WAL/SHM sidecars so the restored file is read fresh.
		os.Remove(m.db.Path() + "-wal")
		os.Remove(m.db.Path() + "-shm")
		restored = latest
		return nil
	})
	return restored, err
}

func latestBackup(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

func findMigration(version int) *Migration {
	for i := range Versions {
		if Versions[i].Version == version {
			return &Versions[i]
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
