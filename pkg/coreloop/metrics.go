package coreloop

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/taskorch/taskctl/pkg/types"
)

// Aggregate is the metrics view computed over the whole task store.
type Aggregate struct {
	CompletedCount     int
	FeedbackCount      int
	MeanQuality        float64
	MeanTimeliness     float64
	EstimationAccuracy float64 // NaN when no task has both estimated and actual hours
	ReworkCorrelation  float64 // NaN when no low-quality feedback exists to correlate
}

// Period selects the time window Compute aggregates over, relative to "now"
// at the call site. PeriodAll is the default (all-time, no lower bound).
type Period string

const (
	PeriodAll   Period = "all"
	PeriodMonth Period = "month"
	PeriodWeek  Period = "week"
)

// since returns the lower bound (RFC3339, UTC) for p measured back from now,
// or "" for PeriodAll / an unrecognized value.
func (p Period) since(now time.Time) string {
	switch p {
	case PeriodMonth:
		return now.AddDate(0, -1, 0).UTC().Format(time.RFC3339)
	case PeriodWeek:
		return now.AddDate(0, 0, -7).UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

// Compute aggregates completion counts, feedback means, estimation
// accuracy, and rework correlation across tasks completed/fed-back-on
// within period (PeriodAll, the default, considers the whole store).
// Completion is windowed on tasks.updated_at (set when a task completes),
// feedback on feedback.created_at.
func Compute(ctx context.Context, q Queryer, period Period) (Aggregate, error) {
	var agg Aggregate
	since := period.since(time.Now())

	completedQuery := `SELECT COUNT(*) FROM tasks WHERE status = ?`
	completedArgs := []any{string(types.StatusCompleted)}
	if since != "" {
		completedQuery += ` AND updated_at >= ?`
		completedArgs = append(completedArgs, since)
	}
	if err := q.QueryRowContext(ctx, completedQuery, completedArgs...).Scan(&agg.CompletedCount); err != nil {
		return agg, err
	}

	if err := computeFeedbackMeans(ctx, q, &agg, since); err != nil {
		return agg, err
	}
	if err := computeEstimationAccuracy(ctx, q, &agg, since); err != nil {
		return agg, err
	}
	if err := computeReworkCorrelation(ctx, q, &agg, since); err != nil {
		return agg, err
	}
	return agg, nil
}

func computeFeedbackMeans(ctx context.Context, q Queryer, agg *Aggregate, since string) error {
	query := `SELECT quality, timeliness FROM feedback`
	var args []any
	if since != "" {
		query += ` WHERE created_at >= ?`
		args = append(args, since)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	var qualitySum, timelinessSum float64
	var qualityN, timelinessN int
	count := 0
	for rows.Next() {
		var quality, timeliness sql.NullInt64
		if err := rows.Scan(&quality, &timeliness); err != nil {
			return err
		}
		count++
		if quality.Valid {
			qualitySum += float64(quality.Int64)
			qualityN++
		}
		if timeliness.Valid {
			timelinessSum += float64(timeliness.Int64)
			timelinessN++
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	agg.FeedbackCount = count
	if qualityN > 0 {
		agg.MeanQuality = qualitySum / float64(qualityN)
	}
	if timelinessN > 0 {
		agg.MeanTimeliness = timelinessSum / float64(timelinessN)
	}
	return nil
}

// computeEstimationAccuracy implements 1 - mean(|est - act| / max(est, act))
// over tasks with both estimated_hours and actual_hours set.
func computeEstimationAccuracy(ctx context.Context, q Queryer, agg *Aggregate, since string) error {
	query := `SELECT estimated_hours, actual_hours FROM tasks
		WHERE estimated_hours IS NOT NULL AND actual_hours IS NOT NULL`
	var args []any
	if since != "" {
		query += ` AND updated_at >= ?`
		args = append(args, since)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	var sum float64
	var n int
	for rows.Next() {
		var est, act float64
		if err := rows.Scan(&est, &act); err != nil {
			return err
		}
		denom := math.Max(est, act)
		if denom == 0 {
			n++
			continue
		}
		sum += math.Abs(est-act) / denom
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if n == 0 {
		agg.EstimationAccuracy = math.NaN()
		return nil
	}
	agg.EstimationAccuracy = 1 - sum/float64(n)
	return nil
}

// computeReworkCorrelation is the share of tasks with feedback_quality <= 2
// whose id appears as some other task's rework_of.
func computeReworkCorrelation(ctx context.Context, q Queryer, agg *Aggregate, since string) error {
	query := `SELECT id FROM tasks WHERE feedback_quality IS NOT NULL AND feedback_quality <= 2`
	var args []any
	if since != "" {
		query += ` AND updated_at >= ?`
		args = append(args, since)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	var lowQuality []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		lowQuality = append(lowQuality, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if len(lowQuality) == 0 {
		agg.ReworkCorrelation = math.NaN()
		return nil
	}

	reworked := 0
	for _, id := range lowQuality {
		var reworkOf string
		err := q.QueryRowContext(ctx, `SELECT id FROM tasks WHERE rework_of = ? LIMIT 1`, id).Scan(&reworkOf)
		if err == nil {
			reworked++
		} else if err != sql.ErrNoRows {
			return err
		}
	}
	agg.ReworkCorrelation = float64(reworked) / float64(len(lowQuality))
	return nil
}
