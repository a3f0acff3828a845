/*
Package storage provides the embedded relational store backing Task
Orchestrator's task graph, collaboration records, and core-loop data.

The store is a single SQLite database file opened in WAL mode, giving
concurrent readers a consistent snapshot without blocking the writer:

	┌──────────────────── STORAGE ENGINE ───────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │                 DB                          │          │
	│  │  - File: <state-dir>/tasks.db               │          │
	│  │  - Driver: ncruces/go-sqlite3 (pure Go)      │          │
	│  │  - Mode: WAL + busy_timeout + foreign_keys   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Table Groups                    │          │
	│  │  tasks, dependencies, file_refs, tags        │          │
	│  │  context_entries, private_notes, participants│          │
	│  │  notifications, notification_counts          │          │
	│  │  progress_entries, feedback                  │          │
	│  │  schema_migrations                           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │        Transaction Management                │          │
	│  │  - Tx(): single SQLite transaction           │          │
	│  │  - Rollback: automatic on error or panic     │          │
	│  │  - Retry: BUSY/LOCKED, 50ms..2s, 5 attempts  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │       Advisory Lock (.lock sentinel)         │          │
	│  │  - gofrs/flock cross-process file lock       │          │
	│  │  - WithLock(): bounded wait, default 5s      │          │
	│  │  - Guards compound multi-row operations      │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Concurrency model

Single-row reads and writes use SQLite's own MVCC-style WAL semantics and
need no external coordination. Operations that must observe and mutate a
consistent view across multiple rows in one logical step — adding a task
with a cycle check, completing a task and cascading the unblock scan,
running a migration — wrap their work in DB.WithLock so concurrent taskctl
processes serialize on that step specifically, not on every read.

# Failure semantics

Open fails with apperrors.StorageUnavailable for an unwritable path, and
apperrors.CorruptStore if PRAGMA integrity_check reports anything other
than "ok". Neither case is silently repaired; the caller must run
`taskctl migrate --rollback` or otherwise intervene.
*/
package storage
