package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/taskorch/taskctl/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the project's feature and enforcement configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		changed := false

		if mustBool(cmd, "reset") {
			a.cfg.Reset()
			changed = true
		}
		for _, name := range mustStringSlice(cmd, "enable") {
			if !a.cfg.SetFeature(name, true) {
				return fmt.Errorf("unknown feature %q", name)
			}
			changed = true
		}
		for _, name := range mustStringSlice(cmd, "disable") {
			if !a.cfg.SetFeature(name, false) {
				return fmt.Errorf("unknown feature %q", name)
			}
			changed = true
		}
		if cmd.Flags().Changed("minimal-mode") {
			a.cfg.SetFeature("minimal_mode", mustBool(cmd, "minimal-mode"))
			changed = true
		}
		if cmd.Flags().Changed("enforce-orchestration") {
			a.cfg.Enforcement.Enforced = mustBool(cmd, "enforce-orchestration")
			changed = true
		}
		if v := mustString(cmd, "enforcement-level"); v != "" {
			a.cfg.Enforcement.Level = v
			changed = true
		}

		if changed {
			if err := a.db.WithLock(context.Background(), a.cfg.Save); err != nil {
				return err
			}
			a.recordTelemetry("config", "change", nil)
		}

		if mustBool(cmd, "show") || mustBool(cmd, "show-enforcement") || !changed {
			return printConfig(a.cfg)
		}
		return nil
	},
}

func printConfig(cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func init() {
	configCmd.Flags().Bool("show", false, "Print the effective configuration")
	configCmd.Flags().Bool("show-enforcement", false, "Print the enforcement configuration")
	configCmd.Flags().StringSlice("enable", nil, "Feature to enable")
	configCmd.Flags().StringSlice("disable", nil, "Feature to disable")
	configCmd.Flags().Bool("minimal-mode", false, "Set minimal mode, disabling all Core-Loop features")
	configCmd.Flags().Bool("reset", false, "Reset to default configuration")
	configCmd.Flags().Bool("enforce-orchestration", false, "Force the Enforcement Gate active regardless of auto-detection")
	configCmd.Flags().String("enforcement-level", "", "Enforcement level: strict, standard, advisory")
}
