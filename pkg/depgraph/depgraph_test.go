package depgraph

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/taskctl/pkg/migrate"
	"github.com/taskorch/taskctl/pkg/storage"
	"github.com/taskorch/taskctl/pkg/types"
)

func setup(t *testing.T) *storage.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(dir, storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = migrate.New(db).Apply(context.Background())
	require.NoError(t, err)
	return db
}

func insertTask(t *testing.T, db *storage.DB, id string, status types.TaskStatus) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.SQL().Exec(`INSERT INTO tasks (id, title, status, priority, created_at, updated_at) VALUES (?, ?, ?, 'medium', ?, ?)`,
		id, "task "+id, string(status), now, now)
	require.NoError(t, err)
}

func insertDep(t *testing.T, db *storage.DB, taskID, dependsOnID string) {
	t.Helper()
	_, err := db.SQL().Exec(`INSERT INTO dependencies (task_id, depends_on_id) VALUES (?, ?)`, taskID, dependsOnID)
	require.NoError(t, err)
}

func TestWouldCycleSelfDependency(t *testing.T) {
	db := setup(t)
	cyclic, _, err := WouldCycle(context.Background(), db.SQL(), "A", "A")
	require.NoError(t, err)
	assert.True(t, cyclic)
}

func TestWouldCycleDetectsTransitiveCycle(t *testing.T) {
	db := setup(t)
	insertTask(t, db, "A", types.StatusPending)
	insertTask(t, db, "B", types.StatusBlocked)
	insertTask(t, db, "C", types.StatusBlocked)
	insertDep(t, db, "B", "A") // B depends on A
	insertDep(t, db, "C", "B") // C depends on B

	cyclic, chain, err := WouldCycle(context.Background(), db.SQL(), "A", "C")
	require.NoError(t, err)
	assert.True(t, cyclic)
	assert.NotEmpty(t, chain)
}

func TestWouldCycleFalseForIndependentTasks(t *testing.T) {
	db := setup(t)
	insertTask(t, db, "A", types.StatusPending)
	insertTask(t, db, "B", types.StatusPending)

	cyclic, _, err := WouldCycle(context.Background(), db.SQL(), "A", "B")
	require.NoError(t, err)
	assert.False(t, cyclic)
}

func TestCascadeUnblockFlipsReadyDependents(t *testing.T) {
	db := setup(t)
	insertTask(t, db, "B", types.StatusCompleted)
	insertTask(t, db, "F", types.StatusBlocked)
	insertDep(t, db, "F", "B")

	ctx := context.Background()
	var unblocked []string
	err := db.Tx(ctx, func(tx *sql.Tx) error {
		var e error
		unblocked, e = CascadeUnblock(ctx, tx, "B")
		return e
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"F"}, unblocked)

	var status string
	require.NoError(t, db.SQL().QueryRow(`SELECT status FROM tasks WHERE id = ?`, "F").Scan(&status))
	assert.Equal(t, string(types.StatusPending), status)
}

func TestCascadeUnblockLeavesPartiallyBlockedDependents(t *testing.T) {
	db := setup(t)
	insertTask(t, db, "B1", types.StatusCompleted)
	insertTask(t, db, "B2", types.StatusPending)
	insertTask(t, db, "F", types.StatusBlocked)
	insertDep(t, db, "F", "B1")
	insertDep(t, db, "F", "B2")

	ctx := context.Background()
	err := db.Tx(ctx, func(tx *sql.Tx) error {
		_, e := CascadeUnblock(ctx, tx, "B1")
		return e
	})
	require.NoError(t, err)

	var status string
	require.NoError(t, db.SQL().QueryRow(`SELECT status FROM tasks WHERE id = ?`, "F").Scan(&status))
	assert.Equal(t, string(types.StatusBlocked), status)
}

func TestValidateNewTaskDepsUnknownDependency(t *testing.T) {
	db := setup(t)
	err := ValidateNewTaskDeps(context.Background(), db.SQL(), "NEW1", []string{"ghost"})
	assert.Error(t, err)
}

func TestValidateNewTaskDepsOK(t *testing.T) {
	db := setup(t)
	insertTask(t, db, "A", types.StatusPending)
	err := ValidateNewTaskDeps(context.Background(), db.SQL(), "NEW1", []string{"A"})
	assert.NoError(t, err)
}

func TestCriticalPathOrdersByEstimatedHours(t *testing.T) {
	db := setup(t)
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.SQL().Exec(`INSERT INTO tasks (id, title, status, priority, created_at, updated_at, estimated_hours) VALUES (?, ?, 'pending', 'medium', ?, ?, ?)`, "A", "A", now, now, 2.0)
	require.NoError(t, err)
	_, err = db.SQL().Exec(`INSERT INTO tasks (id, title, status, priority, created_at, updated_at, estimated_hours) VALUES (?, ?, 'blocked', 'medium', ?, ?, ?)`, "B", "B", now, now, 3.0)
	require.NoError(t, err)
	insertDep(t, db, "B", "A")

	path, err := CriticalPath(context.Background(), db.SQL())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, path)
}

func TestValidateFindsNoAnomaliesOnAcyclicGraph(t *testing.T) {
	db := setup(t)
	insertTask(t, db, "A", types.StatusPending)
	insertTask(t, db, "B", types.StatusBlocked)
	insertDep(t, db, "B", "A")

	anomalies, err := Validate(context.Background(), db.SQL())
	require.NoError(t, err)
	assert.Empty(t, anomalies)
}
