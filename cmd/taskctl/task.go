package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskorch/taskctl/pkg/export"
	"github.com/taskorch/taskctl/pkg/migrate"
	"github.com/taskorch/taskctl/pkg/repository"
	"github.com/taskorch/taskctl/pkg/types"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a task store in the current project",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()
		if _, err := migrate.New(a.db).Apply(context.Background()); err != nil {
			return err
		}
		if err := a.db.WithLock(context.Background(), a.cfg.Save); err != nil {
			return err
		}
		fmt.Printf("Initialized task store at %s\n", a.stateDir)
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a new task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.checkEnforcement(mustString(cmd, "description"), true); err != nil {
			return err
		}

		in := repository.AddInput{
			Description: mustString(cmd, "description"),
			Priority:    types.Priority(mustString(cmd, "priority")),
			DependsOn:   mustStringSlice(cmd, "depends-on"),
			Assignee:    mustString(cmd, "assignee"),
			Criteria:    mustString(cmd, "criteria"),
			Tags:        mustStringSlice(cmd, "tag"),
			ReworkOf:    mustString(cmd, "rework-of"),
		}
		if raw := mustString(cmd, "deadline"); raw != "" {
			t, perr := parseTimeArg(raw)
			if perr != nil {
				return perr
			}
			in.Deadline = &t
		}
		if raw := mustString(cmd, "estimated-hours"); raw != "" {
			h, perr := strconv.ParseFloat(raw, 64)
			if perr != nil {
				return perr
			}
			in.EstimatedHours = &h
		}
		for _, fr := range mustStringSlice(cmd, "file") {
			in.FileRefs = append(in.FileRefs, parseFileRef(fr))
		}

		id, err := a.repo.Add(context.Background(), args[0], in)
		if err != nil {
			return err
		}
		a.recordTelemetry("task", "add", nil)
		fmt.Println(id)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		filter := repository.ListFilter{
			Status:   types.TaskStatus(mustString(cmd, "status")),
			Assignee: mustString(cmd, "assignee"),
		}
		if cmd.Flags().Changed("has-deps") {
			hasDeps := mustBool(cmd, "has-deps")
			filter.HasDeps = &hasDeps
		}
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
			filter.Limit = limit
		}
		tasks, err := a.repo.List(context.Background(), filter)
		if err != nil {
			return err
		}

		var details []types.TaskDetail
		for _, t := range tasks {
			details = append(details, types.TaskDetail{Task: t})
		}
		a.recordTelemetry("task", "list", nil)
		return printDetails(mustString(cmd, "output"), details)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task's full detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		detail, err := a.repo.Show(context.Background(), args[0])
		if err != nil {
			return err
		}
		a.recordTelemetry("task", "show", nil)
		return printDetails(mustString(cmd, "output"), []types.TaskDetail{*detail})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a task's status, priority, or assignee",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		in := repository.UpdateInput{Reopen: mustBool(cmd, "reopen")}
		if v := mustString(cmd, "status"); v != "" {
			s := types.TaskStatus(v)
			in.Status = &s
		}
		if v := mustString(cmd, "priority"); v != "" {
			p := types.Priority(v)
			in.Priority = &p
		}
		if cmd.Flags().Changed("assignee") {
			v := mustString(cmd, "assignee")
			in.Assignee = &v
		}
		if cmd.Flags().Changed("cancel-reason") {
			v := mustString(cmd, "cancel-reason")
			in.CancelReason = &v
		}

		if err := a.repo.Update(context.Background(), args[0], in); err != nil {
			return err
		}
		a.recordTelemetry("task", "update", nil)
		fmt.Printf("%s updated\n", args[0])
		return nil
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		in := repository.CompleteInput{
			Validate:     mustBool(cmd, "validate"),
			Override:     mustBool(cmd, "override"),
			Summary:      mustString(cmd, "summary"),
			ImpactReview: mustBool(cmd, "impact-review"),
		}
		if raw := mustString(cmd, "actual-hours"); raw != "" {
			h, perr := strconv.ParseFloat(raw, 64)
			if perr != nil {
				return perr
			}
			in.ActualHours = &h
		}
		in.Answers = parseAnswers(mustStringSlice(cmd, "answer"))

		result, err := a.repo.Complete(context.Background(), args[0], in)
		if err != nil {
			return err
		}
		a.recordTelemetry("task", "complete", nil)
		fmt.Printf("%s completed\n", result.TaskID)
		if len(result.Unblocked) > 0 {
			fmt.Printf("unblocked: %s\n", strings.Join(result.Unblocked, ", "))
		}
		for _, r := range result.Report {
			fmt.Printf("  [%s] %s: %s\n", r.Status, r.Criterion, r.Detail)
		}
		return nil
	},
}

var assignCmd = &cobra.Command{
	Use:   "assign <id> <agent>",
	Short: "Assign a task to an agent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.repo.Assign(context.Background(), args[0], args[1]); err != nil {
			return err
		}
		a.recordTelemetry("task", "assign", nil)
		fmt.Printf("%s assigned to %s\n", args[0], args[1])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.repo.Delete(context.Background(), args[0], mustBool(cmd, "cascade")); err != nil {
			return err
		}
		a.recordTelemetry("task", "delete", nil)
		fmt.Printf("%s deleted\n", args[0])
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tasks in a structured format",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		tasks, err := a.repo.List(context.Background(), repository.ListFilter{Status: types.TaskStatus(mustString(cmd, "status"))})
		if err != nil {
			return err
		}
		var details []types.TaskDetail
		for _, t := range tasks {
			d, err := a.repo.Show(context.Background(), t.ID)
			if err != nil {
				return err
			}
			details = append(details, *d)
		}

		format := mustString(cmd, "format")
		if format == "" {
			format = "json"
		}
		data, hash, err := export.Render(export.Format(format), details)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		fmt.Fprintf(cmd.ErrOrStderr(), "content-hash: %s\n", hash)
		a.recordTelemetry("task", "export", map[string]bool{format: true})
		return nil
	},
}

func init() {
	addCmd.Flags().StringP("description", "d", "", "Task description")
	addCmd.Flags().StringP("priority", "p", "medium", "Priority: low, medium, high, critical")
	addCmd.Flags().StringSlice("depends-on", nil, "IDs this task depends on")
	addCmd.Flags().StringSlice("file", nil, "File reference, path[:line_start[-line_end]]")
	addCmd.Flags().String("assignee", "", "Agent to assign the task to")
	addCmd.Flags().String("criteria", "", "Success criteria as a JSON array")
	addCmd.Flags().String("deadline", "", "Deadline, RFC3339")
	addCmd.Flags().String("estimated-hours", "", "Estimated effort in hours")
	addCmd.Flags().StringSlice("tag", nil, "Tag to attach")
	addCmd.Flags().String("rework-of", "", "ID of a prior task this one redoes")

	listCmd.Flags().String("status", "", "Filter by status")
	listCmd.Flags().String("assignee", "", "Filter by assignee")
	listCmd.Flags().Bool("has-deps", false, "Filter to tasks that have (or lack, with =false) dependencies")
	listCmd.Flags().Int("limit", 0, "Limit the number of tasks returned")
	listCmd.Flags().StringP("output", "o", "human", "Output format: human, json, markdown, csv, tsv")

	showCmd.Flags().StringP("output", "o", "human", "Output format: human, json, markdown, csv, tsv")

	updateCmd.Flags().String("status", "", "New status")
	updateCmd.Flags().String("priority", "", "New priority")
	updateCmd.Flags().String("assignee", "", "New assignee")
	updateCmd.Flags().Bool("reopen", false, "Authorize reopening a completed task back to pending")
	updateCmd.Flags().String("cancel-reason", "", "Optional note stored alongside a transition to cancelled")

	completeCmd.Flags().Bool("validate", false, "Validate success criteria before completing")
	completeCmd.Flags().Bool("override", false, "Override a failed or unresolved criteria report")
	completeCmd.Flags().String("summary", "", "Completion summary, 20-2000 characters")
	completeCmd.Flags().String("actual-hours", "", "Actual effort in hours")
	completeCmd.Flags().Bool("impact-review", false, "Flag this completion for impact review")
	completeCmd.Flags().StringSlice("answer", nil, "Criterion answer, text=true|false, repeatable")

	deleteCmd.Flags().Bool("cascade", false, "Delete dependents too instead of refusing")

	exportCmd.Flags().StringP("format", "f", "json", "Export format: json, markdown, csv, tsv")
	exportCmd.Flags().String("status", "", "Filter by status")
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func mustBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}

func mustStringSlice(cmd *cobra.Command, name string) []string {
	v, _ := cmd.Flags().GetStringSlice(name)
	return v
}

func parseFileRef(spec string) types.FileRef {
	path, lineSpec, hasLines := strings.Cut(spec, ":")
	fr := types.FileRef{Path: path}
	if !hasLines {
		return fr
	}
	start, end, hasRange := strings.Cut(lineSpec, "-")
	if v, err := strconv.Atoi(start); err == nil {
		fr.LineStart = v
	}
	if hasRange {
		if v, err := strconv.Atoi(end); err == nil {
			fr.LineEnd = v
		}
	}
	return fr
}

func parseAnswers(raw []string) map[string]bool {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]bool, len(raw))
	for _, entry := range raw {
		criterion, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		out[criterion] = value == "true"
	}
	return out
}
