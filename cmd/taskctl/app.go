package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskorch/taskctl/pkg/apperrors"
	"github.com/taskorch/taskctl/pkg/collab"
	"github.com/taskorch/taskctl/pkg/config"
	"github.com/taskorch/taskctl/pkg/enforcement"
	"github.com/taskorch/taskctl/pkg/identity"
	"github.com/taskorch/taskctl/pkg/notify"
	"github.com/taskorch/taskctl/pkg/repository"
	"github.com/taskorch/taskctl/pkg/sink"
	"github.com/taskorch/taskctl/pkg/storage"
	"github.com/taskorch/taskctl/pkg/telemetry"
)

// app bundles the wiring every command needs: the open store, the loaded
// config, and the services built on top of it. One is built fresh per
// invocation since this is a one-shot CLI, not a resident process.
type app struct {
	stateDir  string
	agentID   string
	db        *storage.DB
	cfg       *config.Config
	bus       *notify.Bus
	repo      *repository.Repo
	collab    *collab.Store
	telemetry *telemetry.Recorder
}

// openApp resolves the state directory, opens the store, loads config, and
// wires the repository/collaboration/telemetry services around it.
// requireExisting controls whether a missing state directory is an error
// (every command except `init`).
func openApp(cmd *cobra.Command, requireExisting bool) (*app, error) {
	stateDir, _ := cmd.Flags().GetString("state-dir")
	if stateDir == "" {
		resolved, err := config.StateDir()
		if err != nil {
			return nil, err
		}
		stateDir = resolved
	}

	if _, err := os.Stat(stateDir); os.IsNotExist(err) && requireExisting {
		return nil, &apperrors.StorageUnavailable{Path: stateDir, Reason: "state directory does not exist; run `taskctl init` first"}
	}

	agentFlag, _ := cmd.Flags().GetString("agent")
	agentID := identity.Resolve(agentFlag)

	opts := storage.Options{}
	if v := os.Getenv(config.EnvLockTimeout); v != "" {
		if secs, perr := strconv.ParseFloat(v, 64); perr == nil && secs > 0 {
			opts.LockTimeout = time.Duration(secs * float64(time.Second))
		}
	}
	db, err := storage.Open(stateDir, opts)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(stateDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	var sk sink.Sink = sink.NewFileMirror(stateDir)
	bus := notify.New(sk)
	repo := repository.New(db, bus, cfg)
	collabStore := collab.New(db, bus, sk)

	return &app{
		stateDir:  stateDir,
		agentID:   agentID,
		db:        db,
		cfg:       cfg,
		bus:       bus,
		repo:      repo,
		collab:    collabStore,
		telemetry: telemetry.New(stateDir),
	}, nil
}

func (a *app) Close() {
	if a.telemetry != nil {
		a.telemetry.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// recordTelemetry appends a feature-usage event when telemetry is enabled,
// logging a best-effort warning on failure rather than ever failing the
// command it instruments.
func (a *app) recordTelemetry(feature, action string, flags map[string]bool) {
	if !a.cfg.Enabled("telemetry") {
		return
	}
	if err := a.telemetry.Record(feature, action, flags); err != nil {
		fmt.Fprintf(os.Stderr, "warning: telemetry write failed: %v\n", err)
	}
}

// checkEnforcement runs the Enforcement Gate for an orchestrated operation,
// printing violations and either blocking (strict level) or letting the
// caller proceed (warn). requiresIntent marks operations where a missing
// WHY/WHAT/DONE description counts as a violation.
func (a *app) checkEnforcement(description string, requiresIntent bool) error {
	siblingClaude := false
	if wd, err := os.Getwd(); err == nil {
		if _, err := os.Stat(filepath.Join(wd, ".claude")); err == nil {
			siblingClaude = true
		}
	}
	stateDirExists := true
	if _, err := os.Stat(a.stateDir); os.IsNotExist(err) {
		stateDirExists = false
	}

	in := enforcement.Input{
		StateDir:            a.stateDir,
		StateDirExists:      stateDirExists,
		SiblingClaudeExists: siblingClaude,
		ExecutableFound:     true,
		Description:         description,
		RequiresIntentCheck: requiresIntent,
	}
	if !enforcement.IsActive(in, a.cfg) {
		return nil
	}

	verdict, violations := enforcement.Check(in, a.cfg)
	switch verdict {
	case "allow":
		return nil
	case "warn":
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "warning [%s]: %s\n  fix: %s (%s)\n", v.Category, v.Category, v.Fix, v.Example)
		}
		return nil
	default: // block
		var categories []string
		for _, v := range violations {
			categories = append(categories, v.Category)
		}
		return &apperrors.EnforcementBlocked{Violations: categories}
	}
}
