// Package depgraph maintains the directed edges of the task dependency DAG:
// cycle prevention on new edges, cascade-unblock when a task completes, an
// on-demand critical-path computation, and a defensive full-graph audit.
package depgraph

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskorch/taskctl/pkg/apperrors"
	"github.com/taskorch/taskctl/pkg/types"
)

// Queryer is satisfied by both *sql.DB and *sql.Tx, letting every function
// here run standalone or inside a caller's transaction.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DependsOn returns the direct dependency ids of taskID (what it depends
// on).
func DependsOn(ctx context.Context, q Queryer, taskID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT depends_on_id FROM dependencies WHERE task_id = ? ORDER BY depends_on_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// Dependents returns the ids of tasks that directly depend on taskID.
func Dependents(ctx context.Context, q Queryer, taskID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT task_id FROM dependencies WHERE depends_on_id = ? ORDER BY task_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// WouldCycle reports whether adding the edge "taskID depends_on
// dependsOnID" would create a cycle: true when dependsOnID's existing
// dependency closure already contains taskID (dependsOnID transitively
// depends on taskID, so taskID would end up depending on itself). When a
// cycle would result, the second return value is the offending chain from
// dependsOnID back to taskID, for diagnostics.
func WouldCycle(ctx context.Context, q Queryer, taskID, dependsOnID string) (bool, []string, error) {
	if taskID == dependsOnID {
		return true, []string{taskID, dependsOnID}, nil
	}

	visited := map[string]bool{}
	path := []string{dependsOnID}
	found, chain, err := dfsFind(ctx, q, dependsOnID, taskID, visited, path)
	if err != nil {
		return false, nil, err
	}
	return found, chain, nil
}

func dfsFind(ctx context.Context, q Queryer, from, target string, visited map[string]bool, path []string) (bool, []string, error) {
	if from == target {
		return true, path, nil
	}
	if visited[from] {
		return false, nil, nil
	}
	visited[from] = true

	deps, err := DependsOn(ctx, q, from)
	if err != nil {
		return false, nil, err
	}
	for _, dep := range deps {
		nextPath := append(append([]string{}, path...), dep)
		found, chain, err := dfsFind(ctx, q, dep, target, visited, nextPath)
		if err != nil {
			return false, nil, err
		}
		if found {
			return true, chain, nil
		}
	}
	return false, nil, nil
}

// CountEdges returns the total number of dependency edges currently in the
// graph. Backs the taskctl_dependency_edges_total gauge.
func CountEdges(ctx context.Context, q Queryer) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM dependencies`).Scan(&n)
	return n, err
}

// UnmetDeps returns the dependency ids of taskID that are not yet
// completed.
func UnmetDeps(ctx context.Context, q Queryer, taskID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT d.depends_on_id
		FROM dependencies d
		JOIN tasks t ON t.id = d.depends_on_id
		WHERE d.task_id = ? AND t.status != ?`, taskID, types.StatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// CascadeUnblock scans the direct dependents of completedID and, for each
// one whose remaining unmet dependencies have dropped to zero, flips it
// from blocked to pending. It must run inside the same transaction as the
// status write that completed completedID. Returns the ids that were
// unblocked, in dependents-scan order.
func CascadeUnblock(ctx context.Context, tx *sql.Tx, completedID string) ([]string, error) {
	dependents, err := Dependents(ctx, tx, completedID)
	if err != nil {
		return nil, err
	}

	var unblocked []string
	for _, depID := range dependents {
		unmet, err := UnmetDeps(ctx, tx, depID)
		if err != nil {
			return nil, err
		}
		if len(unmet) != 0 {
			continue
		}

		var status string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, depID).Scan(&status); err != nil {
			return nil, err
		}
		if status != string(types.StatusBlocked) {
			continue
		}

		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
			types.StatusPending, now, depID); err != nil {
			return nil, err
		}
		unblocked = append(unblocked, depID)
	}
	return unblocked, nil
}

// ValidateNewTaskDeps checks every proposed dependency id for a brand-new
// task: each id must already exist, and (defensively) must not create a
// cycle. A freshly generated task id has no existing dependents, so a
// cycle can only occur if the caller reuses an id already present in the
// graph; the check stays in the write path regardless, per §4.5.
func ValidateNewTaskDeps(ctx context.Context, q Queryer, newTaskID string, dependsOn []string) error {
	for _, dep := range dependsOn {
		var exists int
		if err := q.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, dep).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return &apperrors.UnknownDependency{ID: dep}
			}
			return err
		}
		cyclic, chain, err := WouldCycle(ctx, q, newTaskID, dep)
		if err != nil {
			return err
		}
		if cyclic {
			return &apperrors.CycleDetected{Path: chain}
		}
	}
	return nil
}

// CriticalPath returns the longest path through the DAG by summed
// estimated_hours (defaulting missing values to zero), expressed as an
// ordered list of task ids from the path's start to its end. It is a
// reporting helper only; it never runs in the write path.
func CriticalPath(ctx context.Context, q Queryer) ([]string, error) {
	ids, hours, err := loadGraph(ctx, q)
	if err != nil {
		return nil, err
	}

	children := map[string][]string{} // dependsOnID -> []taskID (must-happen-before edges)
	indegree := map[string]int{}
	for _, id := range ids {
		indegree[id] = 0
	}
	rows, err := q.QueryContext(ctx, `SELECT task_id, depends_on_id FROM dependencies`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var taskID, dependsOnID string
		if err := rows.Scan(&taskID, &dependsOnID); err != nil {
			rows.Close()
			return nil, err
		}
		children[dependsOnID] = append(children[dependsOnID], taskID)
		indegree[taskID]++
	}
	rows.Close()

	order, err := topoSort(ids, children, indegree)
	if err != nil {
		return nil, err
	}

	best := map[string]float64{}
	prev := map[string]string{}
	for _, id := range order {
		if _, ok := prev[id]; !ok {
			best[id] = hours[id]
		}
		for _, child := range children[id] {
			candidate := best[id] + hours[child]
			if candidate > best[child] {
				best[child] = candidate
				prev[child] = id
			}
		}
	}

	var endID string
	var endVal float64 = -1
	for _, id := range order {
		if best[id] > endVal {
			endVal = best[id]
			endID = id
		}
	}
	if endID == "" {
		return nil, nil
	}

	var path []string
	for cur := endID; cur != ""; {
		path = append([]string{cur}, path...)
		next, ok := prev[cur]
		if !ok {
			break
		}
		cur = next
	}
	return path, nil
}

func loadGraph(ctx context.Context, q Queryer) ([]string, map[string]float64, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, COALESCE(estimated_hours, 0) FROM tasks`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var ids []string
	hours := map[string]float64{}
	for rows.Next() {
		var id string
		var h float64
		if err := rows.Scan(&id, &h); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		hours[id] = h
	}
	return ids, hours, rows.Err()
}

func topoSort(ids []string, children map[string][]string, indegree map[string]int) ([]string, error) {
	indegree = cloneIndegree(indegree)
	var queue []string
	for _, id := range ids {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, child := range children[id] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	if len(order) != len(ids) {
		return nil, fmt.Errorf("dependency graph contains a cycle")
	}
	return order, nil
}

func cloneIndegree(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Validate walks the full dependency graph looking for cycles that should
// never occur under normal operation; it is a defensive audit exposed as
// `taskctl validate-orchestration`, not part of any write path.
func Validate(ctx context.Context, q Queryer) ([]string, error) {
	ids, _, err := loadGraph(ctx, q)
	if err != nil {
		return nil, err
	}

	var anomalies []string
	for _, id := range ids {
		visited := map[string]bool{}
		if cyclic, chain, err := detectCycleFrom(ctx, q, id, visited, []string{id}); err != nil {
			return nil, err
		} else if cyclic {
			anomalies = append(anomalies, fmt.Sprintf("cycle detected: %v", chain))
		}
	}
	return dedupe(anomalies), nil
}

func detectCycleFrom(ctx context.Context, q Queryer, id string, visited map[string]bool, path []string) (bool, []string, error) {
	deps, err := DependsOn(ctx, q, id)
	if err != nil {
		return false, nil, err
	}
	for _, dep := range deps {
		if dep == path[0] {
			return true, append(append([]string{}, path...), dep), nil
		}
		if visited[dep] {
			continue
		}
		visited[dep] = true
		if cyclic, chain, err := detectCycleFrom(ctx, q, dep, visited, append(path, dep)); err != nil {
			return false, nil, err
		} else if cyclic {
			return true, chain, nil
		}
	}
	return false, nil, nil
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
