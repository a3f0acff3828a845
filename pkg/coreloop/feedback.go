package coreloop

import (
	"context"
	"database/sql"
	"time"

	"github.com/taskorch/taskctl/pkg/apperrors"
	"github.com/taskorch/taskctl/pkg/types"
)

const MaxFeedbackNotesLen = 500

// FeedbackInput carries the optional fields accepted by `feedback`. A nil
// pointer means "leave the existing value alone" on an update.
type FeedbackInput struct {
	Quality    *int
	Timeliness *int
	Notes      *string
}

func validateScore(field string, v *int) error {
	if v == nil {
		return nil
	}
	if *v < 1 || *v > 5 {
		return &apperrors.ValidationError{Field: field, Reason: "must be between 1 and 5"}
	}
	return nil
}

// SubmitFeedback writes or updates the single feedback record for taskID.
// Rejected unless the task is currently completed: feedback evaluates
// finished work, not work in progress.
func SubmitFeedback(ctx context.Context, q Queryer, taskID string, status types.TaskStatus, in FeedbackInput) error {
	if status != types.StatusCompleted {
		return &apperrors.ValidationError{Field: "status", Reason: "feedback may only be recorded for completed tasks"}
	}
	if err := validateScore("quality", in.Quality); err != nil {
		return err
	}
	if err := validateScore("timeliness", in.Timeliness); err != nil {
		return err
	}
	if in.Notes != nil && len(*in.Notes) > MaxFeedbackNotesLen {
		return &apperrors.ValidationError{Field: "notes", Reason: "must be at most 500 characters"}
	}

	existing, err := GetFeedback(ctx, q, taskID)
	if err != nil {
		return err
	}

	quality := in.Quality
	timeliness := in.Timeliness
	notes := ""
	if existing != nil {
		if quality == nil {
			quality = existing.Quality
		}
		if timeliness == nil {
			timeliness = existing.Timeliness
		}
		notes = existing.Notes
	}
	if in.Notes != nil {
		notes = *in.Notes
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = q.ExecContext(ctx, `
		INSERT INTO feedback (task_id, quality, timeliness, notes, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET quality = excluded.quality, timeliness = excluded.timeliness, notes = excluded.notes`,
		taskID, quality, timeliness, notes, now)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		UPDATE tasks SET feedback_quality = ?, feedback_timeliness = ?, feedback_notes = ? WHERE id = ?`,
		quality, timeliness, notes, taskID)
	return err
}

// GetFeedback returns taskID's feedback record, or nil if none has been
// recorded yet.
func GetFeedback(ctx context.Context, q Queryer, taskID string) (*types.Feedback, error) {
	var f types.Feedback
	var quality, timeliness sql.NullInt64
	var notes sql.NullString
	var createdAt string
	err := q.QueryRowContext(ctx, `
		SELECT task_id, quality, timeliness, notes, created_at FROM feedback WHERE task_id = ?`, taskID).
		Scan(&f.TaskID, &quality, &timeliness, &notes, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if quality.Valid {
		v := int(quality.Int64)
		f.Quality = &v
	}
	if timeliness.Valid {
		v := int(timeliness.Int64)
		f.Timeliness = &v
	}
	f.Notes = notes.String
	f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &f, nil
}
