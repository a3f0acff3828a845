package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/taskorch/taskctl/pkg/coreloop"
	"github.com/taskorch/taskctl/pkg/types"
)

// ListFilter narrows List's results. Zero-value fields mean "don't filter
// on this".
type ListFilter struct {
	Status   types.TaskStatus
	Assignee string
	HasDeps  *bool
	Limit    int
}

// List returns tasks matching filter, ordered by created_at ascending.
func (r *Repo) List(ctx context.Context, filter ListFilter) ([]types.Task, error) {
	var where []string
	var args []any

	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Assignee != "" {
		where = append(where, "assignee = ?")
		args = append(args, filter.Assignee)
	}
	if filter.HasDeps != nil {
		if *filter.HasDeps {
			where = append(where, "EXISTS (SELECT 1 FROM dependencies d WHERE d.task_id = tasks.id)")
		} else {
			where = append(where, "NOT EXISTS (SELECT 1 FROM dependencies d WHERE d.task_id = tasks.id)")
		}
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if err := r.hydrateTask(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CountsByStatus returns the current number of tasks in each status,
// omitting statuses with zero tasks. Backs the taskctl_tasks_total gauge.
func (r *Repo) CountsByStatus(ctx context.Context) (map[types.TaskStatus]int, error) {
	rows, err := r.db.SQL().QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[types.TaskStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[types.TaskStatus(status)] = n
	}
	return counts, rows.Err()
}

const taskColumns = `id, title, description, status, priority, assignee, created_at, updated_at,
	success_criteria, deadline, estimated_hours, actual_hours, completion_summary,
	feedback_quality, feedback_timeliness, feedback_notes, rework_of, cancel_reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (types.Task, error) {
	var t types.Task
	var createdAt, updatedAt string
	var criteriaJSON, deadline, completionSummary, feedbackNotes, reworkOf, cancelReason sql.NullString
	var estHours, actHours sql.NullFloat64
	var feedbackQuality, feedbackTimeliness sql.NullInt64

	if err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Assignee, &createdAt, &updatedAt,
		&criteriaJSON, &deadline, &estHours, &actHours, &completionSummary,
		&feedbackQuality, &feedbackTimeliness, &feedbackNotes, &reworkOf, &cancelReason,
	); err != nil {
		return t, err
	}

	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	if criteriaJSON.Valid {
		criteria, err := coreloop.DecodeCriteria(criteriaJSON.String)
		if err != nil {
			return t, err
		}
		t.SuccessCriteria = criteria
	}
	if deadline.Valid {
		d, err := time.Parse(time.RFC3339, deadline.String)
		if err == nil {
			t.Deadline = &d
		}
	}
	if estHours.Valid {
		v := estHours.Float64
		t.EstimatedHours = &v
	}
	if actHours.Valid {
		v := actHours.Float64
		t.ActualHours = &v
	}
	t.CompletionSummary = completionSummary.String
	if feedbackQuality.Valid {
		v := int(feedbackQuality.Int64)
		t.FeedbackQuality = &v
	}
	if feedbackTimeliness.Valid {
		v := int(feedbackTimeliness.Int64)
		t.FeedbackTimeliness = &v
	}
	t.FeedbackNotes = feedbackNotes.String
	t.ReworkOf = reworkOf.String
	t.CancelReason = cancelReason.String
	return t, nil
}

// hydrateTask fills in FileRefs and Tags, which live in side tables.
func (r *Repo) hydrateTask(ctx context.Context, t *types.Task) error {
	refs, err := r.fileRefs(ctx, t.ID)
	if err != nil {
		return err
	}
	t.FileRefs = refs

	tags, err := r.tags(ctx, t.ID)
	if err != nil {
		return err
	}
	t.Tags = tags
	return nil
}

func (r *Repo) fileRefs(ctx context.Context, taskID string) ([]types.FileRef, error) {
	rows, err := r.db.SQL().QueryContext(ctx, `SELECT path, line_start, line_end FROM file_refs WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.FileRef
	for rows.Next() {
		var fr types.FileRef
		if err := rows.Scan(&fr.Path, &fr.LineStart, &fr.LineEnd); err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

func (r *Repo) tags(ctx context.Context, taskID string) ([]string, error) {
	rows, err := r.db.SQL().QueryContext(ctx, `SELECT tag FROM tags WHERE task_id = ? ORDER BY tag`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}
