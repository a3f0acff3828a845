// Package collab implements the Collaboration Store: per-task shared
// context, per-agent private notes, join/sync checkpoints, and discovery
// events. Private notes are isolated by (task_id, agent_id): the read path
// filters by the calling agent and never returns another agent's notes.
package collab

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/taskorch/taskctl/pkg/apperrors"
	"github.com/taskorch/taskctl/pkg/notify"
	"github.com/taskorch/taskctl/pkg/sink"
	"github.com/taskorch/taskctl/pkg/storage"
	"github.com/taskorch/taskctl/pkg/types"
)

// Store is the Collaboration Store, backed by the shared DB and wired to
// the Notification Bus for sync/discover broadcasts.
type Store struct {
	db     *storage.DB
	notify *notify.Bus
	sink   sink.Sink
}

// New creates a Store.
func New(db *storage.DB, bus *notify.Bus, sk sink.Sink) *Store {
	if sk == nil {
		sk = sink.Noop{}
	}
	return &Store{db: db, notify: bus, sink: sk}
}

func (s *Store) taskExists(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, taskID string) error {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM tasks WHERE id = ?`, taskID).Scan(&id)
	if err == sql.ErrNoRows {
		return &apperrors.NotFound{Kind: "task", ID: taskID}
	}
	return err
}

// Join records that agentID is participating on taskID, with an optional
// role. Idempotent: joining twice just updates the role.
func (s *Store) Join(ctx context.Context, taskID, agentID, role string) error {
	if err := s.taskExists(ctx, s.db.SQL(), taskID); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.SQL().ExecContext(ctx, `
		INSERT INTO participants (task_id, agent_id, role, joined_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(task_id, agent_id) DO UPDATE SET role = excluded.role`,
		taskID, agentID, role, now)
	return err
}

// Share appends a shared-context entry of the given kind, authored by
// agentID, and returns its id and timestamp.
func (s *Store) Share(ctx context.Context, taskID, agentID string, kind types.ContextKind, message string) (int64, time.Time, error) {
	if err := s.taskExists(ctx, s.db.SQL(), taskID); err != nil {
		return 0, time.Time{}, err
	}
	now := time.Now().UTC()
	res, err := s.db.SQL().ExecContext(ctx, `
		INSERT INTO context_entries (task_id, agent_id, kind, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		taskID, agentID, string(kind), message, now.Format(time.RFC3339))
	if err != nil {
		return 0, time.Time{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, time.Time{}, err
	}
	s.sink.Publish(sink.Event{EventID: uuid.NewString(), Type: "context", TaskID: taskID, AgentID: agentID, Kind: string(kind), Message: message, Timestamp: now})
	return id, now, nil
}

// Note appends to agentID's private note log for taskID. Only agentID can
// ever read it back via Context.
func (s *Store) Note(ctx context.Context, taskID, agentID, message string) (int64, time.Time, error) {
	if err := s.taskExists(ctx, s.db.SQL(), taskID); err != nil {
		return 0, time.Time{}, err
	}
	now := time.Now().UTC()
	res, err := s.db.SQL().ExecContext(ctx, `
		INSERT INTO private_notes (task_id, agent_id, message, created_at) VALUES (?, ?, ?, ?)`,
		taskID, agentID, message, now.Format(time.RFC3339))
	if err != nil {
		return 0, time.Time{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, time.Time{}, err
	}
	s.sink.Publish(sink.Event{EventID: uuid.NewString(), Type: "private_note", TaskID: taskID, AgentID: agentID, Timestamp: now})
	return id, now, nil
}

// Sync appends a sync context entry for checkpointName and broadcasts a
// sync_point notification, atomically.
func (s *Store) Sync(ctx context.Context, taskID, agentID, checkpointName string) error {
	if err := s.taskExists(ctx, s.db.SQL(), taskID); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	message := "sync checkpoint: " + checkpointName

	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO context_entries (task_id, agent_id, kind, message, created_at) VALUES (?, ?, ?, ?, ?)`,
			taskID, agentID, string(types.ContextSync), message, now); err != nil {
			return err
		}
		_, err := s.notify.Emit(ctx, tx, "", taskID, types.NotifySyncPoint, message)
		return err
	})
	if err == nil {
		s.sink.Publish(sink.Event{EventID: uuid.NewString(), Type: "context", TaskID: taskID, AgentID: agentID, Kind: string(types.ContextSync), Message: message})
	}
	return err
}

// DiscoverOptions carries the optional fields accepted by Discover.
type DiscoverOptions struct {
	Impact string
	Tags   []string
}

// Discover appends a discovery context entry and broadcasts a discovery
// notification, atomically. Impact/tags are folded into the stored message
// since the shared context log has no structured columns of its own.
func (s *Store) Discover(ctx context.Context, taskID, agentID, message string, opts DiscoverOptions) error {
	if err := s.taskExists(ctx, s.db.SQL(), taskID); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	full := message
	if opts.Impact != "" {
		full += " [impact: " + opts.Impact + "]"
	}

	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO context_entries (task_id, agent_id, kind, message, created_at) VALUES (?, ?, ?, ?, ?)`,
			taskID, agentID, string(types.ContextDiscovery), full, now); err != nil {
			return err
		}
		for _, tag := range opts.Tags {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO tags (task_id, tag) VALUES (?, ?) ON CONFLICT DO NOTHING`, taskID, tag); err != nil {
				return err
			}
		}
		_, err := s.notify.Emit(ctx, tx, "", taskID, types.NotifyDiscovery, full)
		return err
	})
	if err == nil {
		s.sink.Publish(sink.Event{EventID: uuid.NewString(), Type: "context", TaskID: taskID, AgentID: agentID, Kind: string(types.ContextDiscovery), Message: full})
	}
	return err
}

// Context is the aggregate read view returned by `taskctl context`: the
// full shared log, the calling agent's own private notes, and the set of
// participants.
type Context struct {
	Shared       []types.ContextEntry
	PrivateMine  []types.PrivateNote
	Participants []types.Participant
}

// GetContext loads the shared context, agentID's own private notes, and the
// participant list for taskID.
func (s *Store) GetContext(ctx context.Context, taskID, agentID string) (*Context, error) {
	if err := s.taskExists(ctx, s.db.SQL(), taskID); err != nil {
		return nil, err
	}

	shared, err := s.sharedEntries(ctx, taskID)
	if err != nil {
		return nil, err
	}
	mine, err := s.privateNotes(ctx, taskID, agentID)
	if err != nil {
		return nil, err
	}
	participants, err := s.participants(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &Context{Shared: shared, PrivateMine: mine, Participants: participants}, nil
}

func (s *Store) sharedEntries(ctx context.Context, taskID string) ([]types.ContextEntry, error) {
	rows, err := s.db.SQL().QueryContext(ctx, `
		SELECT id, task_id, agent_id, kind, message, created_at FROM context_entries
		WHERE task_id = ? ORDER BY created_at ASC, id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ContextEntry
	for rows.Next() {
		var e types.ContextEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.TaskID, &e.AgentID, &e.Kind, &e.Message, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// privateNotes filters strictly by (task_id, agent_id): this is the
// isolation boundary that keeps one agent's notes invisible to another.
func (s *Store) privateNotes(ctx context.Context, taskID, agentID string) ([]types.PrivateNote, error) {
	rows, err := s.db.SQL().QueryContext(ctx, `
		SELECT id, task_id, agent_id, message, created_at FROM private_notes
		WHERE task_id = ? AND agent_id = ? ORDER BY created_at ASC, id ASC`, taskID, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.PrivateNote
	for rows.Next() {
		var n types.PrivateNote
		var createdAt string
		if err := rows.Scan(&n.ID, &n.TaskID, &n.AgentID, &n.Message, &createdAt); err != nil {
			return nil, err
		}
		n.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) participants(ctx context.Context, taskID string) ([]types.Participant, error) {
	rows, err := s.db.SQL().QueryContext(ctx, `
		SELECT task_id, agent_id, role, joined_at FROM participants
		WHERE task_id = ? ORDER BY joined_at ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Participant
	for rows.Next() {
		var p types.Participant
		var joinedAt string
		if err := rows.Scan(&p.TaskID, &p.AgentID, &p.Role, &joinedAt); err != nil {
			return nil, err
		}
		p.JoinedAt, _ = time.Parse(time.RFC3339, joinedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}
