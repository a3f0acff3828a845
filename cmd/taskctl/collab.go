package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskorch/taskctl/pkg/collab"
	"github.com/taskorch/taskctl/pkg/types"
)

var joinCmd = &cobra.Command{
	Use:   "join <task-id>",
	Short: "Join a task as a participant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.collab.Join(context.Background(), args[0], a.agentID, mustString(cmd, "role")); err != nil {
			return err
		}
		a.recordTelemetry("collab", "join", nil)
		fmt.Printf("%s joined %s\n", a.agentID, args[0])
		return nil
	},
}

var shareCmd = &cobra.Command{
	Use:   "share <task-id> <message>",
	Short: "Append a shared context entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		kind := types.ContextKind(mustString(cmd, "kind"))
		if kind == "" {
			kind = types.ContextUpdate
		}
		id, _, err := a.collab.Share(context.Background(), args[0], a.agentID, kind, args[1])
		if err != nil {
			return err
		}
		a.recordTelemetry("collab", "share", nil)
		fmt.Printf("shared entry #%d recorded\n", id)
		return nil
	},
}

var noteCmd = &cobra.Command{
	Use:   "note <task-id> <message>",
	Short: "Append a private note, visible only to you",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		id, _, err := a.collab.Note(context.Background(), args[0], a.agentID, args[1])
		if err != nil {
			return err
		}
		a.recordTelemetry("collab", "note", nil)
		fmt.Printf("private note #%d recorded\n", id)
		return nil
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover <task-id> <message>",
	Short: "Record a discovery and notify collaborators",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		opts := collab.DiscoverOptions{
			Impact: mustString(cmd, "impact"),
			Tags:   mustStringSlice(cmd, "tag"),
		}
		if err := a.collab.Discover(context.Background(), args[0], a.agentID, args[1], opts); err != nil {
			return err
		}
		a.recordTelemetry("collab", "discover", nil)
		fmt.Printf("discovery recorded on %s\n", args[0])
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync <task-id> <checkpoint>",
	Short: "Record a sync checkpoint and broadcast it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.collab.Sync(context.Background(), args[0], a.agentID, args[1]); err != nil {
			return err
		}
		a.recordTelemetry("collab", "sync", nil)
		fmt.Printf("sync point %q recorded on %s\n", args[1], args[0])
		return nil
	},
}

var contextCmd = &cobra.Command{
	Use:   "context <task-id>",
	Short: "Show a task's shared context, your private notes, and participants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctxView, err := a.collab.GetContext(context.Background(), args[0], a.agentID)
		if err != nil {
			return err
		}
		a.recordTelemetry("collab", "context", nil)

		fmt.Println("Shared context:")
		for _, e := range ctxView.Shared {
			fmt.Printf("  [%s] %s (%s): %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.AgentID, e.Kind, e.Message)
		}
		fmt.Println("Your private notes:")
		for _, n := range ctxView.PrivateMine {
			fmt.Printf("  [%s] %s\n", n.CreatedAt.Format("2006-01-02 15:04"), n.Message)
		}
		fmt.Println("Participants:")
		for _, p := range ctxView.Participants {
			fmt.Printf("  %s (%s)\n", p.AgentID, p.Role)
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show and mark-read your pending notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		notes, err := a.bus.Watch(context.Background(), a.db.SQL(), a.agentID, limit)
		if err != nil {
			return err
		}
		a.recordTelemetry("collab", "watch", nil)

		if len(notes) == 0 {
			fmt.Println("No new notifications.")
			return nil
		}
		for _, n := range notes {
			fmt.Printf("[%s] %s %s\n", n.CreatedAt.Format("2006-01-02 15:04"), n.Kind, n.Message)
		}
		return nil
	},
}

func init() {
	joinCmd.Flags().String("role", "", "Role to join as")

	shareCmd.Flags().String("kind", "update", "Context entry kind: update, discovery, decision, sync")

	discoverCmd.Flags().String("impact", "", "Impact note folded into the message")
	discoverCmd.Flags().StringSlice("tag", nil, "Tag to attach to the task")

	watchCmd.Flags().Int("limit", 0, "Maximum notifications to return, 0 for unbounded")
}
