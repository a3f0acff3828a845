// Command taskctl-migrate is a standalone tool for inspecting and applying
// schema migrations against a task store outside of the normal taskctl CLI,
// for operators who want migration control decoupled from the main binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/taskorch/taskctl/pkg/migrate"
	"github.com/taskorch/taskctl/pkg/storage"
)

var (
	stateDir = flag.String("state-dir", ".taskctl", "Path to the task store's state directory")
	action   = flag.String("action", "status", "One of: status, apply, rollback")
)

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("taskctl migration tool")
	log.Println("=======================")

	if _, err := os.Stat(*stateDir); os.IsNotExist(err) {
		log.Fatalf("state directory not found at %s", *stateDir)
	}

	db, err := storage.Open(*stateDir, storage.Options{})
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	mgr := migrate.New(db)
	ctx := context.Background()

	switch *action {
	case "status":
		runStatus(ctx, mgr)
	case "apply":
		runApply(ctx, mgr)
	case "rollback":
		runRollback(ctx, mgr)
	default:
		log.Fatalf("unknown -action %q: must be status, apply, or rollback", *action)
	}
}

func runStatus(ctx context.Context, mgr *migrate.Manager) {
	status, err := mgr.Status(ctx)
	if err != nil {
		log.Fatalf("failed to read migration status: %v", err)
	}
	log.Printf("Applied:  %v", status.Applied)
	log.Printf("Pending:  %v", status.Pending)
	if len(status.Pending) == 0 {
		fmt.Println("Store is up to date.")
	}
}

func runApply(ctx context.Context, mgr *migrate.Manager) {
	applied, err := mgr.Apply(ctx)
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	if len(applied) == 0 {
		log.Println("No pending migrations. Store is up to date.")
		return
	}
	log.Printf("Applied migrations: %v", applied)
}

func runRollback(ctx context.Context, mgr *migrate.Manager) {
	restored, err := mgr.Rollback(ctx)
	if err != nil {
		log.Fatalf("rollback failed: %v", err)
	}
	log.Printf("Restored from backup: %s", restored)
}
