// Package notify implements the Notification Bus: unicast or broadcast
// messages with read-state, a watch-and-mark-seen read path, and per-task
// generation caps to prevent runaway notification volume.
package notify

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/taskorch/taskctl/pkg/coremetrics"
	"github.com/taskorch/taskctl/pkg/sink"
	"github.com/taskorch/taskctl/pkg/types"
)

// PerTaskKindCap bounds how many notifications of a given kind a single
// task may generate before further ones collapse into a single truncation
// marker, per §4.7's per-task cap decision (spec.md §9 open question #4).
const PerTaskKindCap = 50

// Queryer is satisfied by both *sql.DB and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Bus writes and reads notification rows. Emit publishes to the EventSink
// (if any) right after its insert, best-effort. When Emit runs inside a
// caller's transaction that is before the transaction commits, so an event
// is published even for a notification whose transaction later rolls back.
type Bus struct {
	sink sink.Sink
}

// New creates a Bus. sk may be nil, in which case sink.Noop is used.
func New(sk sink.Sink) *Bus {
	if sk == nil {
		sk = sink.Noop{}
	}
	return &Bus{sink: sk}
}

// Emit writes a notification row addressed to recipient (empty for
// broadcast), optionally scoped to taskID, of the given kind. When the
// per-task cap for (taskID, kind) has already been reached, this collapses
// into a single notifications_truncated marker instead of growing without
// bound; repeated calls past the cap are no-ops beyond ensuring that one
// marker exists. Emit returns any write error to its caller; the callers in
// the repository and collab packages return that error from their
// transaction, so a failed notification write rolls back and fails the
// operation that emitted it.
func (b *Bus) Emit(ctx context.Context, q Queryer, recipient, taskID string, kind types.NotificationKind, message string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	if taskID != "" {
		capped, err := b.overCap(ctx, q, taskID, string(kind))
		if err != nil {
			return 0, err
		}
		if capped {
			id, err := b.ensureTruncationMarker(ctx, q, taskID, now)
			if err != nil {
				return 0, err
			}
			coremetrics.NotificationsEmittedTotal.WithLabelValues(string(types.NotifyTruncated)).Inc()
			return id, nil
		}
		if err := b.bumpCount(ctx, q, taskID, string(kind)); err != nil {
			return 0, err
		}
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO notifications (recipient, task_id, kind, message, created_at, read_flag)
		VALUES (?, ?, ?, ?, ?, 0)`, recipient, taskID, string(kind), message, now)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	coremetrics.NotificationsEmittedTotal.WithLabelValues(string(kind)).Inc()

	b.sink.Publish(sink.Event{
		EventID:   uuid.NewString(),
		Type:      "notification",
		TaskID:    taskID,
		Kind:      string(kind),
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	return id, nil
}

func (b *Bus) overCap(ctx context.Context, q Queryer, taskID, kind string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT count FROM notification_counts WHERE task_id = ? AND kind = ?`, taskID, kind).Scan(&count)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return count >= PerTaskKindCap, nil
}

func (b *Bus) bumpCount(ctx context.Context, q Queryer, taskID, kind string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO notification_counts (task_id, kind, count) VALUES (?, ?, 1)
		ON CONFLICT(task_id, kind) DO UPDATE SET count = count + 1`, taskID, kind)
	return err
}

func (b *Bus) ensureTruncationMarker(ctx context.Context, q Queryer, taskID, now string) (int64, error) {
	var existing int64
	err := q.QueryRowContext(ctx, `
		SELECT id FROM notifications WHERE task_id = ? AND kind = ? LIMIT 1`,
		taskID, string(types.NotifyTruncated)).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO notifications (recipient, task_id, kind, message, created_at, read_flag)
		VALUES ('', ?, ?, 'further notifications for this task have been suppressed', ?, 0)`,
		taskID, string(types.NotifyTruncated), now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Watch returns notifications addressed to agentID plus all broadcasts that
// agentID has not yet read, ordered by created_at then id, marking each one
// read for agentID in the same call. A broadcast read by one agent stays
// unread for every other agent, since read state is tracked per (notification,
// agent) rather than as a single shared flag. limit <= 0 means unbounded.
func (b *Bus) Watch(ctx context.Context, db Queryer, agentID string, limit int) ([]types.Notification, error) {
	query := `
		SELECT n.id, n.recipient, n.task_id, n.kind, n.message, n.created_at
		FROM notifications n
		WHERE (n.recipient = ? OR n.recipient = '')
		  AND NOT EXISTS (
		      SELECT 1 FROM notification_reads r
		      WHERE r.notification_id = n.id AND r.agent_id = ?
		  )
		ORDER BY n.created_at ASC, n.id ASC`
	args := []any{agentID, agentID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var out []types.Notification
	for rows.Next() {
		var n types.Notification
		var createdAt string
		if err := rows.Scan(&n.ID, &n.Recipient, &n.TaskID, &n.Kind, &n.Message, &createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		n.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for i := range out {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO notification_reads (notification_id, agent_id, read_at) VALUES (?, ?, ?)
			ON CONFLICT(notification_id, agent_id) DO NOTHING`, out[i].ID, agentID, now); err != nil {
			return nil, err
		}
		if out[i].Recipient != "" {
			if _, err := db.ExecContext(ctx, `UPDATE notifications SET read_flag = 1 WHERE id = ?`, out[i].ID); err != nil {
				return nil, err
			}
		}
		out[i].Read = true
	}
	return out, nil
}
