package coreloop

import (
	"context"
	"time"

	"github.com/taskorch/taskctl/pkg/types"
)

// AppendProgress writes one advisory, append-only progress-log entry for
// taskID. The log is never validated against task status; it's a running
// commentary an agent leaves for itself and others, not a state machine.
func AppendProgress(ctx context.Context, q Queryer, taskID, agentID, message string) (types.ProgressEntry, error) {
	now := time.Now().UTC()
	res, err := q.ExecContext(ctx, `
		INSERT INTO progress_entries (task_id, agent_id, message, created_at) VALUES (?, ?, ?, ?)`,
		taskID, agentID, message, now.Format(time.RFC3339))
	if err != nil {
		return types.ProgressEntry{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.ProgressEntry{}, err
	}
	return types.ProgressEntry{ID: id, TaskID: taskID, AgentID: agentID, Message: message, CreatedAt: now}, nil
}

// ListProgress returns taskID's progress log in chronological order.
func ListProgress(ctx context.Context, q Queryer, taskID string) ([]types.ProgressEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, task_id, agent_id, message, created_at FROM progress_entries
		WHERE task_id = ? ORDER BY created_at ASC, id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ProgressEntry
	for rows.Next() {
		var p types.ProgressEntry
		var createdAt string
		if err := rows.Scan(&p.ID, &p.TaskID, &p.AgentID, &p.Message, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}
