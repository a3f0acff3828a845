package coreloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/taskctl/pkg/types"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestSubmitFeedbackRejectedOutsideCompleted(t *testing.T) {
	db := openTestDB(t)
	err := SubmitFeedback(context.Background(), db.SQL(), "T1", types.StatusInProgress, FeedbackInput{Quality: intPtr(4)})
	assert.Error(t, err)
}

func TestSubmitFeedbackRejectsOutOfRangeScore(t *testing.T) {
	db := openTestDB(t)
	err := SubmitFeedback(context.Background(), db.SQL(), "T1", types.StatusCompleted, FeedbackInput{Quality: intPtr(6)})
	assert.Error(t, err)
}

func TestSubmitFeedbackRejectsLongNotes(t *testing.T) {
	db := openTestDB(t)
	long := make([]byte, 501)
	for i := range long {
		long[i] = 'x'
	}
	note := string(long)
	err := SubmitFeedback(context.Background(), db.SQL(), "T1", types.StatusCompleted, FeedbackInput{Notes: &note})
	assert.Error(t, err)
}

func TestSubmitAndGetFeedback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := SubmitFeedback(ctx, db.SQL(), "T1", types.StatusCompleted, FeedbackInput{
		Quality:    intPtr(4),
		Timeliness: intPtr(5),
		Notes:      strPtr("solid work"),
	})
	require.NoError(t, err)

	fb, err := GetFeedback(ctx, db.SQL(), "T1")
	require.NoError(t, err)
	require.NotNil(t, fb)
	assert.Equal(t, 4, *fb.Quality)
	assert.Equal(t, 5, *fb.Timeliness)
	assert.Equal(t, "solid work", fb.Notes)
}

func TestSubmitFeedbackTwiceUpdatesExisting(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, SubmitFeedback(ctx, db.SQL(), "T1", types.StatusCompleted, FeedbackInput{Quality: intPtr(3)}))
	require.NoError(t, SubmitFeedback(ctx, db.SQL(), "T1", types.StatusCompleted, FeedbackInput{Timeliness: intPtr(2)}))

	fb, err := GetFeedback(ctx, db.SQL(), "T1")
	require.NoError(t, err)
	require.NotNil(t, fb)
	assert.Equal(t, 3, *fb.Quality, "prior quality score must survive a partial update")
	assert.Equal(t, 2, *fb.Timeliness)
}

func TestGetFeedbackNoneYet(t *testing.T) {
	db := openTestDB(t)
	fb, err := GetFeedback(context.Background(), db.SQL(), "T1")
	require.NoError(t, err)
	assert.Nil(t, fb)
}
