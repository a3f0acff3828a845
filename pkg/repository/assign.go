package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/taskorch/taskctl/pkg/apperrors"
	"github.com/taskorch/taskctl/pkg/types"
)

// Assign sets a task's assignee and notifies them.
func (r *Repo) Assign(ctx context.Context, id, agentID string) error {
	return r.db.Tx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, id).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return &apperrors.NotFound{Kind: "task", ID: id}
			}
			return err
		}

		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET assignee = ?, updated_at = ? WHERE id = ?`, agentID, now, id); err != nil {
			return err
		}

		_, err := r.bus.Emit(ctx, tx, agentID, id, types.NotifyAssignment, "assigned to task "+id)
		return err
	})
}
