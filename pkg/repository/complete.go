package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/taskorch/taskctl/pkg/apperrors"
	"github.com/taskorch/taskctl/pkg/coreloop"
	"github.com/taskorch/taskctl/pkg/coremetrics"
	"github.com/taskorch/taskctl/pkg/depgraph"
	"github.com/taskorch/taskctl/pkg/types"
)

// CompleteInput carries the optional fields accepted by Complete.
type CompleteInput struct {
	Validate     bool
	Answers      map[string]bool // caller-supplied per-criterion truthiness, keyed by criterion text
	Override     bool            // bypasses a failed/unresolved criteria report
	Summary      string
	ActualHours  *float64
	ImpactReview bool
}

// Complete transitions a pending or in_progress task to completed, runs
// success-criteria validation when requested, cascades dependency unblocks,
// and emits completion (and optionally impact_review) notifications, all in
// one transaction.
func (r *Repo) Complete(ctx context.Context, id string, in CompleteInput) (*types.CompletionResult, error) {
	if in.Summary != "" && (len(in.Summary) < MinSummaryLen || len(in.Summary) > MaxSummaryLen) {
		return nil, &apperrors.ValidationError{Field: "summary", Reason: "must be between 20 and 2000 characters when present"}
	}

	timer := coremetrics.NewTimer()
	defer timer.ObserveDuration(coremetrics.CompletionDuration)

	var result *types.CompletionResult
	err := r.db.WithLock(ctx, func() error {
		return r.db.Tx(ctx, func(tx *sql.Tx) error {
			var status, assignee, criteriaJSON string
			var fileRefCount int
			err := tx.QueryRowContext(ctx, `SELECT status, assignee, COALESCE(success_criteria, '') FROM tasks WHERE id = ?`, id).
				Scan(&status, &assignee, &criteriaJSON)
			if err == sql.ErrNoRows {
				return &apperrors.NotFound{Kind: "task", ID: id}
			}
			if err != nil {
				return err
			}
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_refs WHERE task_id = ?`, id).Scan(&fileRefCount); err != nil {
				return err
			}

			current := types.TaskStatus(status)
			if current == types.StatusCompleted {
				// Idempotent per §8: re-completing an already-completed task is a
				// no-op, not an error, and must not re-emit notifications or
				// re-run the cascade.
				result = &types.CompletionResult{TaskID: id}
				return nil
			}
			if current != types.StatusPending && current != types.StatusInProgress {
				return &apperrors.InvalidTransition{From: string(current), To: string(types.StatusCompleted)}
			}

			var report []types.CriterionReport
			if criteriaJSON != "" {
				criteria, derr := coreloop.DecodeCriteria(criteriaJSON)
				if derr != nil {
					return derr
				}
				if in.Validate && len(criteria) > 0 {
					r := coreloop.Validate(criteria, in.Answers)
					for _, cr := range r {
						coremetrics.CriteriaValidationsTotal.WithLabelValues(cr.Status).Inc()
					}
					if coreloop.Unresolved(r) && !in.Override {
						converted := make([]apperrors.CriterionReport, len(r))
						for i, cr := range r {
							converted[i] = apperrors.CriterionReport{Criterion: cr.Criterion, Status: cr.Status, Detail: cr.Detail}
						}
						return &apperrors.CriteriaUnmet{Report: converted}
					}
					report = r
				}
			}

			now := time.Now().UTC().Format(time.RFC3339)
			var actHours any
			if in.ActualHours != nil {
				actHours = *in.ActualHours
			}
			var summary any
			if in.Summary != "" {
				summary = in.Summary
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE tasks SET status = ?, updated_at = ?, completion_summary = ?, actual_hours = ? WHERE id = ?`,
				string(types.StatusCompleted), now, summary, actHours, id); err != nil {
				return err
			}

			unblocked, err := depgraph.CascadeUnblock(ctx, tx, id)
			if err != nil {
				return err
			}
			for _, unb := range unblocked {
				var unbAssignee string
				if qerr := tx.QueryRowContext(ctx, `SELECT assignee FROM tasks WHERE id = ?`, unb).Scan(&unbAssignee); qerr == nil && unbAssignee != "" {
					if _, nerr := r.bus.Emit(ctx, tx, unbAssignee, unb, types.NotifyTaskUnblocked, "unblocked: dependency "+id+" completed"); nerr != nil {
						return nerr
					}
				}
				if _, nerr := r.bus.Emit(ctx, tx, "", unb, types.NotifyTaskUnblocked, "task "+unb+" is now unblocked"); nerr != nil {
					return nerr
				}
			}

			if in.ImpactReview && fileRefCount > 0 {
				if _, nerr := r.bus.Emit(ctx, tx, "", id, types.NotifyImpactReview, "task "+id+" touched files that may need review"); nerr != nil {
					return nerr
				}
			}
			if assignee != "" {
				if _, nerr := r.bus.Emit(ctx, tx, assignee, id, types.NotifyCompletion, "task "+id+" completed"); nerr != nil {
					return nerr
				}
			}

			result = &types.CompletionResult{TaskID: id, Unblocked: unblocked, Report: report}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
