package repository

import (
	"context"
	"database/sql"

	"github.com/taskorch/taskctl/pkg/apperrors"
	"github.com/taskorch/taskctl/pkg/coreloop"
	"github.com/taskorch/taskctl/pkg/depgraph"
	"github.com/taskorch/taskctl/pkg/types"
)

// Show returns the full aggregate view of a single task: the task itself,
// its dependency edges in both directions, its progress log, its feedback
// record, and (when it reworks another task) that task's resolved title.
func (r *Repo) Show(ctx context.Context, id string) (*types.TaskDetail, error) {
	row := r.db.SQL().QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, &apperrors.NotFound{Kind: "task", ID: id}
	}
	if err != nil {
		return nil, err
	}
	if err := r.hydrateTask(ctx, &task); err != nil {
		return nil, err
	}

	deps, err := depgraph.DependsOn(ctx, r.db.SQL(), id)
	if err != nil {
		return nil, err
	}
	dependents, err := depgraph.Dependents(ctx, r.db.SQL(), id)
	if err != nil {
		return nil, err
	}
	progress, err := coreloop.ListProgress(ctx, r.db.SQL(), id)
	if err != nil {
		return nil, err
	}
	feedback, err := coreloop.GetFeedback(ctx, r.db.SQL(), id)
	if err != nil {
		return nil, err
	}

	detail := &types.TaskDetail{
		Task:       task,
		Deps:       deps,
		Dependents: dependents,
		Progress:   progress,
		Feedback:   feedback,
	}

	if task.ReworkOf != "" {
		var title string
		err := r.db.SQL().QueryRowContext(ctx, `SELECT title FROM tasks WHERE id = ?`, task.ReworkOf).Scan(&title)
		if err == nil {
			detail.ReworkOfTitle = title
		}
	}
	return detail, nil
}
