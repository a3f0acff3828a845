package repository

import (
	"context"
	"database/sql"

	"github.com/taskorch/taskctl/pkg/apperrors"
	"github.com/taskorch/taskctl/pkg/depgraph"
)

// Delete removes a task and everything hung off it: edges in both
// directions, file refs, tags, context entries, private notes, progress
// entries, feedback, and notifications referencing it. If the task has
// dependents and cascade is false, it refuses with DependentsExist rather
// than silently orphaning them. With cascade=true, dependents are deleted
// too (recursively, since a dependent may itself have dependents) rather
// than merely unlinked: leaving a dependent's edges removed while the
// dependent survives would otherwise strand it blocked forever if it had
// other unmet deps, or silently unblock it if this was its last one.
func (r *Repo) Delete(ctx context.Context, id string, cascade bool) error {
	return r.db.WithLock(ctx, func() error {
		return r.db.Tx(ctx, func(tx *sql.Tx) error {
			var exists int
			if err := tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, id).Scan(&exists); err != nil {
				if err == sql.ErrNoRows {
					return &apperrors.NotFound{Kind: "task", ID: id}
				}
				return err
			}
			return deleteTaskAndDependents(ctx, tx, id, cascade, map[string]bool{})
		})
	})
}

// deleteTaskAndDependents deletes id and, when cascade is true, everything
// that transitively depends on it. visited guards against revisiting a
// dependent reached through more than one path (a diamond in the DAG).
func deleteTaskAndDependents(ctx context.Context, tx *sql.Tx, id string, cascade bool, visited map[string]bool) error {
	if visited[id] {
		return nil
	}
	visited[id] = true

	dependents, err := depgraph.Dependents(ctx, tx, id)
	if err != nil {
		return err
	}
	if len(dependents) > 0 {
		if !cascade {
			return &apperrors.DependentsExist{IDs: dependents}
		}
		for _, dep := range dependents {
			if err := deleteTaskAndDependents(ctx, tx, dep, cascade, visited); err != nil {
				return err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM dependencies WHERE task_id = ? OR depends_on_id = ?`, id, id); err != nil {
		return err
	}
	singleArgStmts := []string{
		`DELETE FROM file_refs WHERE task_id = ?`,
		`DELETE FROM tags WHERE task_id = ?`,
		`DELETE FROM context_entries WHERE task_id = ?`,
		`DELETE FROM private_notes WHERE task_id = ?`,
		`DELETE FROM participants WHERE task_id = ?`,
		`DELETE FROM progress_entries WHERE task_id = ?`,
		`DELETE FROM feedback WHERE task_id = ?`,
		`DELETE FROM notifications WHERE task_id = ?`,
		`DELETE FROM notification_counts WHERE task_id = ?`,
	}
	for _, stmt := range singleArgStmts {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return err
}
