package coreloop

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/taskctl/pkg/types"
)

func TestComputeCountsAndMeans(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.SQL().Exec(`UPDATE tasks SET status = 'completed' WHERE id = 'T1'`)
	require.NoError(t, err)

	require.NoError(t, SubmitFeedback(ctx, db.SQL(), "T1", types.StatusCompleted, FeedbackInput{Quality: intPtr(4), Timeliness: intPtr(2)}))

	agg, err := Compute(ctx, db.SQL(), PeriodAll)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.CompletedCount)
	assert.Equal(t, 1, agg.FeedbackCount)
	assert.InDelta(t, 4.0, agg.MeanQuality, 0.001)
	assert.InDelta(t, 2.0, agg.MeanTimeliness, 0.001)
}

func TestComputeEstimationAccuracy(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	est, act := 10.0, 8.0
	_, err := db.SQL().Exec(`UPDATE tasks SET estimated_hours = ?, actual_hours = ? WHERE id = 'T1'`, est, act)
	require.NoError(t, err)

	agg, err := Compute(ctx, db.SQL(), PeriodAll)
	require.NoError(t, err)
	want := 1 - math.Abs(est-act)/math.Max(est, act)
	assert.InDelta(t, want, agg.EstimationAccuracy, 0.001)
}

func TestComputeEstimationAccuracyNaNWithNoData(t *testing.T) {
	db := openTestDB(t)
	agg, err := Compute(context.Background(), db.SQL(), PeriodAll)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(agg.EstimationAccuracy))
}

func TestComputeReworkCorrelation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.SQL().Exec(`UPDATE tasks SET status = 'completed', feedback_quality = 1 WHERE id = 'T1'`)
	require.NoError(t, err)
	_, err = db.SQL().Exec(`INSERT INTO tasks (id, title, status, priority, created_at, updated_at, rework_of)
		VALUES ('T2', 'redo', 'pending', 'medium', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z', 'T1')`)
	require.NoError(t, err)

	agg, err := Compute(ctx, db.SQL(), PeriodAll)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, agg.ReworkCorrelation, 0.001)
}

func TestComputeReworkCorrelationNaNWithNoLowQuality(t *testing.T) {
	db := openTestDB(t)
	agg, err := Compute(context.Background(), db.SQL(), PeriodAll)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(agg.ReworkCorrelation))
}

func TestComputeWindowedByPeriodExcludesOldCompletions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// T1's updated_at is fixed at 2026-01-01 by openTestDB, well outside any
	// week/month window measured from now.
	_, err := db.SQL().Exec(`UPDATE tasks SET status = 'completed' WHERE id = 'T1'`)
	require.NoError(t, err)

	all, err := Compute(ctx, db.SQL(), PeriodAll)
	require.NoError(t, err)
	assert.Equal(t, 1, all.CompletedCount)

	week, err := Compute(ctx, db.SQL(), PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, 0, week.CompletedCount)

	month, err := Compute(ctx, db.SQL(), PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, 0, month.CompletedCount)
}
