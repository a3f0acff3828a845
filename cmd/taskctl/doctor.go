package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskorch/taskctl/pkg/coremetrics"
	"github.com/taskorch/taskctl/pkg/depgraph"
	"github.com/taskorch/taskctl/pkg/migrate"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run local health checks against the task store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		coremetrics.ResetForTest()
		ctx := context.Background()

		if err := a.db.SQL().PingContext(ctx); err != nil {
			coremetrics.RecordComponent("storage", false, err.Error())
		} else {
			coremetrics.RecordComponent("storage", true, a.db.Path())
		}

		status, err := migrate.New(a.db).Status(ctx)
		if err != nil {
			coremetrics.RecordComponent("migrations", false, err.Error())
		} else if len(status.Pending) > 0 {
			coremetrics.RecordComponent("migrations", false, fmt.Sprintf("%d pending migration(s)", len(status.Pending)))
		} else {
			coremetrics.RecordComponent("migrations", true, "up to date")
		}

		anomalies, err := depgraph.Validate(ctx, a.db.SQL())
		if err != nil {
			coremetrics.RecordComponent("dependency_graph", false, err.Error())
		} else if len(anomalies) > 0 {
			coremetrics.RecordComponent("dependency_graph", false, fmt.Sprintf("%d anomalies", len(anomalies)))
		} else {
			coremetrics.RecordComponent("dependency_graph", true, "acyclic")
		}

		report := coremetrics.Health()
		fmt.Printf("overall: %s (uptime %s)\n", report.Status, report.Uptime)
		unhealthy := 0
		for _, c := range report.Components {
			symbol := "ok"
			if !c.Healthy {
				symbol = "FAIL"
				unhealthy++
			}
			fmt.Printf("  [%s] %s: %s\n", symbol, c.Name, c.Message)
		}
		a.recordTelemetry("doctor", "run", nil)

		if report.Status != "healthy" {
			return &anomaliesFound{count: unhealthy}
		}
		return nil
	},
}
