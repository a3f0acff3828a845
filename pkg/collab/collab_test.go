package collab

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/taskctl/pkg/migrate"
	"github.com/taskorch/taskctl/pkg/notify"
	"github.com/taskorch/taskctl/pkg/storage"
	"github.com/taskorch/taskctl/pkg/types"
)

func setupStore(t *testing.T) (*Store, *storage.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(dir, storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = migrate.New(db).Apply(context.Background())
	require.NoError(t, err)

	insertTask(t, db, "T1")
	return New(db, notify.New(nil), nil), db
}

func insertTask(t *testing.T, db *storage.DB, id string) {
	t.Helper()
	_, err := db.SQL().Exec(`INSERT INTO tasks (id, title, status, priority, created_at, updated_at)
		VALUES (?, ?, 'pending', 'medium', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`, id, "task "+id)
	require.NoError(t, err)
}

func TestJoinRecordsParticipant(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Join(ctx, "T1", "alice", "implementer"))

	c, err := s.GetContext(ctx, "T1", "alice")
	require.NoError(t, err)
	require.Len(t, c.Participants, 1)
	assert.Equal(t, "alice", c.Participants[0].AgentID)
	assert.Equal(t, "implementer", c.Participants[0].Role)
}

func TestJoinTwiceUpdatesRole(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Join(ctx, "T1", "alice", "reviewer"))
	require.NoError(t, s.Join(ctx, "T1", "alice", "implementer"))

	c, err := s.GetContext(ctx, "T1", "alice")
	require.NoError(t, err)
	require.Len(t, c.Participants, 1)
	assert.Equal(t, "implementer", c.Participants[0].Role)
}

func TestShareAppearsInSharedContext(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	_, _, err := s.Share(ctx, "T1", "alice", types.ContextUpdate, "made progress on parser")
	require.NoError(t, err)

	c, err := s.GetContext(ctx, "T1", "bob")
	require.NoError(t, err)
	require.Len(t, c.Shared, 1)
	assert.Equal(t, "made progress on parser", c.Shared[0].Message)
	assert.Equal(t, types.ContextUpdate, c.Shared[0].Kind)
}

// TestPrivateNoteIsolation locks in the isolation invariant: a note authored
// by one agent must never surface in another agent's view of the task.
func TestPrivateNoteIsolation(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	_, _, err := s.Note(ctx, "T1", "alice", "i suspect the retry logic is flaky")
	require.NoError(t, err)

	aliceCtx, err := s.GetContext(ctx, "T1", "alice")
	require.NoError(t, err)
	require.Len(t, aliceCtx.PrivateMine, 1)
	assert.Equal(t, "i suspect the retry logic is flaky", aliceCtx.PrivateMine[0].Message)

	bobCtx, err := s.GetContext(ctx, "T1", "bob")
	require.NoError(t, err)
	assert.Empty(t, bobCtx.PrivateMine, "bob must never see alice's private note")

	// Alice's note must not leak into the shared log either.
	assert.Empty(t, bobCtx.Shared)
}

func TestSyncBroadcastsNotification(t *testing.T) {
	s, db := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Sync(ctx, "T1", "alice", "checkpoint-1"))

	bus := notify.New(nil)
	notes, err := bus.Watch(ctx, db.SQL(), "bob", 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, types.NotifySyncPoint, types.NotificationKind(notes[0].Kind))

	c, err := s.GetContext(ctx, "T1", "alice")
	require.NoError(t, err)
	require.Len(t, c.Shared, 1)
	assert.Equal(t, types.ContextSync, c.Shared[0].Kind)
}

func TestDiscoverBroadcastsAndTagsTask(t *testing.T) {
	s, db := setupStore(t)
	ctx := context.Background()

	err := s.Discover(ctx, "T1", "alice", "found an undocumented rate limit", DiscoverOptions{
		Impact: "may affect downstream tasks",
		Tags:   []string{"rate-limit", "infra"},
	})
	require.NoError(t, err)

	bus := notify.New(nil)
	notes, err := bus.Watch(ctx, db.SQL(), "bob", 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, types.NotifyDiscovery, types.NotificationKind(notes[0].Kind))
	assert.Contains(t, notes[0].Message, "may affect downstream tasks")

	var tagCount int
	require.NoError(t, db.SQL().QueryRow(`SELECT COUNT(*) FROM tags WHERE task_id = ?`, "T1").Scan(&tagCount))
	assert.Equal(t, 2, tagCount)
}

func TestGetContextUnknownTask(t *testing.T) {
	s, _ := setupStore(t)
	_, err := s.GetContext(context.Background(), "ghost", "alice")
	assert.Error(t, err)
}

func TestSharedContextOrderedByTime(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	_, _, err := s.Share(ctx, "T1", "alice", types.ContextUpdate, "first")
	require.NoError(t, err)
	_, _, err = s.Share(ctx, "T1", "alice", types.ContextUpdate, "second")
	require.NoError(t, err)

	c, err := s.GetContext(ctx, "T1", "alice")
	require.NoError(t, err)
	require.Len(t, c.Shared, 2)
	assert.Equal(t, "first", c.Shared[0].Message)
	assert.Equal(t, "second", c.Shared[1].Message)
}
