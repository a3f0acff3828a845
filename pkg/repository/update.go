package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/taskorch/taskctl/pkg/apperrors"
	"github.com/taskorch/taskctl/pkg/types"
)

// MaxCancelReasonLen bounds the optional note accepted alongside a
// transition to cancelled.
const MaxCancelReasonLen = 500

// UpdateInput carries the optional fields accepted by Update. A nil pointer
// means "leave this field alone".
type UpdateInput struct {
	Status   *types.TaskStatus
	Priority *types.Priority
	Assignee *string
	// CancelReason is stored alongside the status change only when Status
	// transitions the task to cancelled; ignored otherwise.
	CancelReason *string
	// Reopen authorizes the one disallowed-by-default transition: moving a
	// completed task back to pending.
	Reopen bool
}

// manualTransitions is the allowed-transition table for Update. `blocked`
// is never a manual source: a task leaves blocked only via the dependency
// engine's cascade-unblock. The one manual way into blocked is from
// in_progress; otherwise a task enters blocked at creation (unmet deps).
var manualTransitions = map[types.TaskStatus]map[types.TaskStatus]bool{
	types.StatusPending: {
		types.StatusInProgress: true,
		types.StatusCancelled:  true,
	},
	types.StatusInProgress: {
		types.StatusPending:   true,
		types.StatusCancelled: true,
		types.StatusBlocked:   true,
	},
	types.StatusCancelled: {
		types.StatusPending: true,
	},
}

// Update applies a status/priority/assignee change to an existing task.
// Manual transitions to `completed` are always rejected; use Complete.
func (r *Repo) Update(ctx context.Context, id string, in UpdateInput) error {
	return r.db.Tx(ctx, func(tx *sql.Tx) error {
		var currentStatus string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&currentStatus); err != nil {
			if err == sql.ErrNoRows {
				return &apperrors.NotFound{Kind: "task", ID: id}
			}
			return err
		}
		current := types.TaskStatus(currentStatus)

		var sets []string
		var args []any

		if in.Status != nil {
			next := *in.Status
			if next == types.StatusCompleted {
				return &apperrors.InvalidTransition{From: string(current), To: string(next)}
			}
			if current == types.StatusCompleted {
				if !in.Reopen || next != types.StatusPending {
					return &apperrors.InvalidTransition{From: string(current), To: string(next)}
				}
			} else if !manualTransitions[current][next] {
				return &apperrors.InvalidTransition{From: string(current), To: string(next)}
			}
			sets = append(sets, "status = ?")
			args = append(args, string(next))

			if next == types.StatusCancelled && in.CancelReason != nil {
				if len(*in.CancelReason) > MaxCancelReasonLen {
					return &apperrors.ValidationError{Field: "cancel_reason", Reason: "must be at most 500 characters"}
				}
				sets = append(sets, "cancel_reason = ?")
				args = append(args, *in.CancelReason)
			}
		}
		if in.Priority != nil {
			if !validPriorities[*in.Priority] {
				return &apperrors.ValidationError{Field: "priority", Reason: "must be one of low, medium, high, critical"}
			}
			sets = append(sets, "priority = ?")
			args = append(args, string(*in.Priority))
		}
		if in.Assignee != nil {
			sets = append(sets, "assignee = ?")
			args = append(args, *in.Assignee)
		}
		if len(sets) == 0 {
			return nil
		}

		sets = append(sets, "updated_at = ?")
		args = append(args, time.Now().UTC().Format(time.RFC3339))
		args = append(args, id)

		query := "UPDATE tasks SET "
		for i, s := range sets {
			if i > 0 {
				query += ", "
			}
			query += s
		}
		query += " WHERE id = ?"

		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
}
