package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/taskctl/pkg/migrate"
	"github.com/taskorch/taskctl/pkg/storage"
	"github.com/taskorch/taskctl/pkg/types"
)

func setupDB(t *testing.T) *storage.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(dir, storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = migrate.New(db).Apply(context.Background())
	require.NoError(t, err)
	return db
}

func TestEmitAndWatchUnicast(t *testing.T) {
	db := setupDB(t)
	bus := New(nil)
	ctx := context.Background()

	_, err := bus.Emit(ctx, db.SQL(), "alice", "T1", types.NotifyAssignment, "assigned to you")
	require.NoError(t, err)

	notes, err := bus.Watch(ctx, db.SQL(), "alice", 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "assigned to you", notes[0].Message)

	// Second watch call returns nothing new.
	notes, err = bus.Watch(ctx, db.SQL(), "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestBroadcastVisibleToEachAgentIndependently(t *testing.T) {
	db := setupDB(t)
	bus := New(nil)
	ctx := context.Background()

	_, err := bus.Emit(ctx, db.SQL(), "", "T1", types.NotifyTaskUnblocked, "T1 unblocked")
	require.NoError(t, err)

	aliceNotes, err := bus.Watch(ctx, db.SQL(), "alice", 0)
	require.NoError(t, err)
	require.Len(t, aliceNotes, 1)

	bobNotes, err := bus.Watch(ctx, db.SQL(), "bob", 0)
	require.NoError(t, err)
	require.Len(t, bobNotes, 1, "broadcast read by alice must remain visible to bob")

	// Alice has now read it; a second watch for alice returns nothing.
	aliceAgain, err := bus.Watch(ctx, db.SQL(), "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, aliceAgain)
}

func TestWatchOrdersByCreatedAtThenID(t *testing.T) {
	db := setupDB(t)
	bus := New(nil)
	ctx := context.Background()

	_, err := bus.Emit(ctx, db.SQL(), "alice", "T1", types.NotifyAssignment, "first")
	require.NoError(t, err)
	_, err = bus.Emit(ctx, db.SQL(), "alice", "T2", types.NotifyAssignment, "second")
	require.NoError(t, err)

	notes, err := bus.Watch(ctx, db.SQL(), "alice", 0)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "first", notes[0].Message)
	assert.Equal(t, "second", notes[1].Message)
}

func TestPerTaskCapCollapsesIntoTruncationMarker(t *testing.T) {
	db := setupDB(t)
	bus := New(nil)
	ctx := context.Background()

	for i := 0; i < PerTaskKindCap+5; i++ {
		_, err := bus.Emit(ctx, db.SQL(), "alice", "T1", types.NotifyDiscovery, "discovery event")
		require.NoError(t, err)
	}

	notes, err := bus.Watch(ctx, db.SQL(), "alice", 0)
	require.NoError(t, err)

	truncated := 0
	for _, n := range notes {
		if types.NotificationKind(n.Kind) == types.NotifyTruncated {
			truncated++
		}
	}
	assert.Equal(t, 1, truncated)
	assert.Less(t, len(notes), PerTaskKindCap+5)
}

func TestWatchRespectsLimit(t *testing.T) {
	db := setupDB(t)
	bus := New(nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := bus.Emit(ctx, db.SQL(), "alice", "T1", types.NotifyAssignment, "msg")
		require.NoError(t, err)
	}

	notes, err := bus.Watch(ctx, db.SQL(), "alice", 2)
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}
