package main

import (
	"fmt"
	"os"
	"time"

	"github.com/taskorch/taskctl/pkg/export"
	"github.com/taskorch/taskctl/pkg/types"
)

// parseTimeArg accepts an RFC3339 timestamp or a bare YYYY-MM-DD date,
// the two forms spec.md's --deadline examples use interchangeably.
func parseTimeArg(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// printDetails renders one or more task details in the requested format.
// "human" is a plain table/summary; anything else is delegated to
// pkg/export so list and show use the same renderer as the export command.
func printDetails(format string, details []types.TaskDetail) error {
	if format == "" || format == "human" {
		printHuman(details)
		return nil
	}

	data, _, err := export.Render(export.Format(format), details)
	if err != nil {
		return err
	}
	os.Stdout.Write(data)
	return nil
}

func printHuman(details []types.TaskDetail) {
	if len(details) == 0 {
		fmt.Println("No tasks.")
		return
	}
	fmt.Printf("%-10s %-12s %-10s %-10s %-30s\n", "ID", "STATUS", "PRIORITY", "ASSIGNEE", "TITLE")
	for _, d := range details {
		t := d.Task
		assignee := t.Assignee
		if assignee == "" {
			assignee = "-"
		}
		fmt.Printf("%-10s %-12s %-10s %-10s %-30s\n", t.ID, t.Status, t.Priority, assignee, truncate(t.Title, 30))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
