package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskorch/taskctl/pkg/depgraph"
)

var validateOrchestrationCmd = &cobra.Command{
	Use:   "validate-orchestration",
	Short: "Audit the dependency graph for anomalies such as cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		anomalies, err := depgraph.Validate(context.Background(), a.db.SQL())
		if err != nil {
			return err
		}
		a.recordTelemetry("enforcement", "validate", nil)

		if len(anomalies) == 0 {
			fmt.Println("No anomalies found.")
			return nil
		}
		for _, anomaly := range anomalies {
			fmt.Println(anomaly)
		}
		return &anomaliesFound{count: len(anomalies)}
	},
}

// anomaliesFound signals a non-empty validate-orchestration report through
// the normal error path so its exit code matches CycleDetected's.
type anomaliesFound struct{ count int }

func (e *anomaliesFound) Error() string { return fmt.Sprintf("%d anomalies found", e.count) }
func (e *anomaliesFound) ExitCode() int { return 4 }

var fixOrchestrationCmd = &cobra.Command{
	Use:   "fix-orchestration",
	Short: "Report what validate-orchestration found, for a human to act on",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		anomalies, err := depgraph.Validate(context.Background(), a.db.SQL())
		if err != nil {
			return err
		}
		a.recordTelemetry("enforcement", "fix", nil)

		if len(anomalies) == 0 {
			fmt.Println("Nothing to fix.")
			return nil
		}

		interactive, _ := cmd.Flags().GetBool("interactive")
		fmt.Println("Found the following anomalies. This tool cannot safely auto-repair a cyclic")
		fmt.Println("dependency graph; break one edge in each cycle with `taskctl update` or")
		fmt.Println("`taskctl delete --cascade`, then re-run validate-orchestration.")
		for _, anomaly := range anomalies {
			fmt.Printf("  - %s\n", anomaly)
		}
		if interactive {
			fmt.Println("\n(interactive mode: re-run validate-orchestration after each fix to confirm)")
		}
		return nil
	},
}

func init() {
	fixOrchestrationCmd.Flags().Bool("interactive", false, "Walk through anomalies one at a time")
}
