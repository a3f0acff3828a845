// Package repository implements the Task Repository: task CRUD, status
// transitions, and the wiring between the dependency engine, the
// notification bus, and the core-loop services that happens around them.
package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"strings"
	"time"

	"github.com/taskorch/taskctl/pkg/apperrors"
	"github.com/taskorch/taskctl/pkg/config"
	"github.com/taskorch/taskctl/pkg/coreloop"
	"github.com/taskorch/taskctl/pkg/depgraph"
	"github.com/taskorch/taskctl/pkg/notify"
	"github.com/taskorch/taskctl/pkg/storage"
	"github.com/taskorch/taskctl/pkg/types"
)

const (
	MaxTitleLen             = 500
	MaxFileRefPathLen       = 4096
	MaxSummaryLen           = 2000
	MinSummaryLen           = 20
	idGenerationMaxAttempts = 16
)

var validPriorities = map[types.Priority]bool{
	types.PriorityLow:      true,
	types.PriorityMedium:   true,
	types.PriorityHigh:     true,
	types.PriorityCritical: true,
}

// Repo is the Task Repository.
type Repo struct {
	db    *storage.DB
	bus   *notify.Bus
	cfg   *config.Config
	clock func() time.Time
}

// New creates a Repo. cfg may be nil, in which case feature gating defaults
// to config.Default().
func New(db *storage.DB, bus *notify.Bus, cfg *config.Config) *Repo {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Repo{db: db, bus: bus, cfg: cfg, clock: func() time.Time { return time.Now().UTC() }}
}

// AddInput carries the optional fields accepted by Add.
type AddInput struct {
	Description    string
	Priority       types.Priority
	DependsOn      []string
	FileRefs       []types.FileRef
	Assignee       string
	Criteria       string // raw JSON, parsed via coreloop.ParseCriteria
	Deadline       *time.Time
	EstimatedHours *float64
	Tags           []string
	// ReworkOf, when set, records that this task redoes a prior one; surfaced
	// in show/export and used by coreloop's rework-correlation metric.
	ReworkOf string
}

// Add validates and inserts a new task, generating its id, resolving its
// initial status from its dependencies, and writing edges/file refs/tags in
// one transaction.
func (r *Repo) Add(ctx context.Context, title string, in AddInput) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > MaxTitleLen {
		return "", &apperrors.ValidationError{Field: "title", Reason: "must be non-empty and at most 500 characters after trimming"}
	}
	priority := in.Priority
	if priority == "" {
		priority = types.PriorityMedium
	}
	if !validPriorities[priority] {
		return "", &apperrors.ValidationError{Field: "priority", Reason: "must be one of low, medium, high, critical"}
	}
	for _, fr := range in.FileRefs {
		if strings.TrimSpace(fr.Path) == "" || len(fr.Path) > MaxFileRefPathLen {
			return "", &apperrors.ValidationError{Field: "file_refs", Reason: "path must be non-empty and reasonably sized"}
		}
		if fr.LineStart < 0 || fr.LineEnd < 0 || (fr.LineEnd != 0 && fr.LineEnd < fr.LineStart) {
			return "", &apperrors.ValidationError{Field: "file_refs", Reason: "line numbers must be non-negative and end >= start"}
		}
	}

	var criteria []types.Criterion
	if r.cfg.Enabled("success_criteria") && in.Criteria != "" {
		var err error
		criteria, err = coreloop.ParseCriteria(in.Criteria)
		if err != nil {
			return "", err
		}
	}
	criteriaJSON, err := coreloop.EncodeCriteria(criteria)
	if err != nil {
		return "", err
	}

	var id string
	err = r.db.WithLock(ctx, func() error {
		return r.db.Tx(ctx, func(tx *sql.Tx) error {
			genID, genErr := r.generateID(ctx, tx)
			if genErr != nil {
				return genErr
			}
			id = genID

			if err := depgraph.ValidateNewTaskDeps(ctx, tx, id, in.DependsOn); err != nil {
				return err
			}

			if in.ReworkOf != "" {
				var exists int
				if err := tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, in.ReworkOf).Scan(&exists); err != nil {
					if err == sql.ErrNoRows {
						return &apperrors.ValidationError{Field: "rework_of", Reason: "no task with that id exists"}
					}
					return err
				}
			}

			status := types.StatusPending
			if len(in.DependsOn) > 0 {
				blocked, uerr := hasUnmetDeps(ctx, tx, in.DependsOn)
				if uerr != nil {
					return uerr
				}
				if blocked {
					status = types.StatusBlocked
				}
			}

			now := r.clock().Format(time.RFC3339)
			var deadline any
			if in.Deadline != nil {
				deadline = in.Deadline.Format(time.RFC3339)
			}
			var estHours any
			if r.cfg.Enabled("time_tracking") && in.EstimatedHours != nil {
				estHours = *in.EstimatedHours
			}
			var reworkOf any
			if in.ReworkOf != "" {
				reworkOf = in.ReworkOf
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO tasks (id, title, description, status, priority, assignee, created_at, updated_at, success_criteria, deadline, estimated_hours, rework_of)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, title, in.Description, string(status), string(priority), in.Assignee, now, now, criteriaJSON, deadline, estHours, reworkOf)
			if err != nil {
				return err
			}

			for _, dep := range in.DependsOn {
				if _, err := tx.ExecContext(ctx, `INSERT INTO dependencies (task_id, depends_on_id) VALUES (?, ?)`, id, dep); err != nil {
					return err
				}
			}
			for _, fr := range in.FileRefs {
				if _, err := tx.ExecContext(ctx, `INSERT INTO file_refs (task_id, path, line_start, line_end) VALUES (?, ?, ?, ?)`,
					id, fr.Path, fr.LineStart, fr.LineEnd); err != nil {
					return err
				}
			}
			for _, tag := range in.Tags {
				if _, err := tx.ExecContext(ctx, `INSERT INTO tags (task_id, tag) VALUES (?, ?) ON CONFLICT DO NOTHING`, id, tag); err != nil {
					return err
				}
			}

			if in.Assignee != "" {
				if _, err := r.bus.Emit(ctx, tx, in.Assignee, id, types.NotifyAssignment, "assigned to task "+id); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func hasUnmetDeps(ctx context.Context, tx *sql.Tx, depIDs []string) (bool, error) {
	for _, dep := range depIDs {
		var status string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, dep).Scan(&status); err != nil {
			return false, err
		}
		if types.TaskStatus(status) != types.StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repo) generateID(ctx context.Context, tx *sql.Tx) (string, error) {
	for attempt := 0; attempt < idGenerationMaxAttempts; attempt++ {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		id := hex.EncodeToString(buf)

		var existing string
		err := tx.QueryRowContext(ctx, `SELECT id FROM tasks WHERE id = ?`, id).Scan(&existing)
		if err == sql.ErrNoRows {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", &apperrors.IDExhausted{}
}
