// Command taskctl is the CLI front-end over the task orchestrator core: a
// single local binary that agents (human or AI) invoke to create, inspect,
// and collaborate on tasks in a shared DAG.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskorch/taskctl/pkg/apperrors"
	"github.com/taskorch/taskctl/pkg/log"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(apperrors.CodeOf(err))
	}
}

var rootCmd = &cobra.Command{
	Use:     "taskctl",
	Short:   "Task Orchestrator - local multi-agent task coordination",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("taskctl version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("state-dir", "", "Override the state directory (defaults to TM_DB_PATH or ./.taskctl)")
	rootCmd.PersistentFlags().String("agent", "", "Override the resolved agent identity for this invocation")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)

	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(watchCmd)

	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(metricsCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(validateOrchestrationCmd)
	rootCmd.AddCommand(fixOrchestrationCmd)
	rootCmd.AddCommand(doctorCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	if os.Getenv("TM_DEBUG") != "" {
		logLevel = "debug"
	}

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
