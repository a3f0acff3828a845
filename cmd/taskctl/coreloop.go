package main

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskorch/taskctl/pkg/coreloop"
	"github.com/taskorch/taskctl/pkg/coremetrics"
	"github.com/taskorch/taskctl/pkg/depgraph"
)

var progressCmd = &cobra.Command{
	Use:   "progress <task-id> [message]",
	Short: "Append or list a task's advisory progress log",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		if len(args) == 2 {
			entry, err := coreloop.AppendProgress(ctx, a.db.SQL(), args[0], a.agentID, args[1])
			if err != nil {
				return err
			}
			a.recordTelemetry("coreloop", "progress_append", nil)
			fmt.Printf("progress #%d recorded\n", entry.ID)
			return nil
		}

		entries, err := coreloop.ListProgress(ctx, a.db.SQL(), args[0])
		if err != nil {
			return err
		}
		a.recordTelemetry("coreloop", "progress_list", nil)
		for _, e := range entries {
			fmt.Printf("[%s] %s: %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.AgentID, e.Message)
		}
		return nil
	},
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback <task-id>",
	Short: "Submit or show feedback on a completed task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.cfg.Enabled("feedback") {
			fmt.Println("feedback is disabled in this project's config")
			return nil
		}

		ctx := context.Background()
		if !cmd.Flags().Changed("quality") && !cmd.Flags().Changed("timeliness") && !cmd.Flags().Changed("notes") {
			fb, err := coreloop.GetFeedback(ctx, a.db.SQL(), args[0])
			if err != nil {
				return err
			}
			if fb == nil {
				fmt.Println("No feedback recorded yet.")
				return nil
			}
			fmt.Printf("quality=%v timeliness=%v notes=%q\n", ptrOrNil(fb.Quality), ptrOrNil(fb.Timeliness), fb.Notes)
			return nil
		}

		detail, err := a.repo.Show(ctx, args[0])
		if err != nil {
			return err
		}

		in := coreloop.FeedbackInput{}
		if cmd.Flags().Changed("quality") {
			v, _ := cmd.Flags().GetInt("quality")
			in.Quality = &v
		}
		if cmd.Flags().Changed("timeliness") {
			v, _ := cmd.Flags().GetInt("timeliness")
			in.Timeliness = &v
		}
		if cmd.Flags().Changed("notes") {
			v := mustString(cmd, "notes")
			in.Notes = &v
		}

		if err := coreloop.SubmitFeedback(ctx, a.db.SQL(), args[0], detail.Task.Status, in); err != nil {
			return err
		}
		a.recordTelemetry("coreloop", "feedback_submit", nil)
		fmt.Printf("feedback recorded for %s\n", args[0])
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show aggregate Core-Loop metrics across the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		period := coreloop.Period(mustString(cmd, "period"))
		agg, err := coreloop.Compute(context.Background(), a.db.SQL(), period)
		if err != nil {
			return err
		}
		a.recordTelemetry("coreloop", "metrics", map[string]bool{string(period): true})

		coremetrics.FeedbackMeanQuality.Set(agg.MeanQuality)
		coremetrics.FeedbackMeanTimeliness.Set(agg.MeanTimeliness)
		if !math.IsNaN(agg.EstimationAccuracy) {
			coremetrics.EstimationAccuracy.Set(agg.EstimationAccuracy)
		}

		if counts, cerr := a.repo.CountsByStatus(context.Background()); cerr == nil {
			for status, n := range counts {
				coremetrics.TasksByStatus.WithLabelValues(string(status)).Set(float64(n))
			}
		}
		if edges, eerr := depgraph.CountEdges(context.Background(), a.db.SQL()); eerr == nil {
			coremetrics.DependencyEdgesTotal.Set(float64(edges))
		}

		if mustString(cmd, "format") == "prometheus" {
			return coremetrics.WriteSnapshot(os.Stdout)
		}

		fmt.Printf("completed tasks:      %d\n", agg.CompletedCount)
		fmt.Printf("feedback entries:     %d\n", agg.FeedbackCount)
		fmt.Printf("mean quality:         %.2f\n", agg.MeanQuality)
		fmt.Printf("mean timeliness:      %.2f\n", agg.MeanTimeliness)
		fmt.Printf("estimation accuracy:  %s\n", formatMaybeNaN(agg.EstimationAccuracy))
		fmt.Printf("rework correlation:   %s\n", formatMaybeNaN(agg.ReworkCorrelation))
		return nil
	},
}

func ptrOrNil(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func formatMaybeNaN(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", v)
}

func init() {
	feedbackCmd.Flags().Int("quality", 0, "Quality score, 1-5")
	feedbackCmd.Flags().Int("timeliness", 0, "Timeliness score, 1-5")
	feedbackCmd.Flags().String("notes", "", "Feedback notes, at most 500 characters")

	metricsCmd.Flags().StringP("format", "f", "human", "Output format: human, prometheus")
	metricsCmd.Flags().String("period", "all", "Aggregation window: all, month, week")
}
