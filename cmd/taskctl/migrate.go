package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskorch/taskctl/pkg/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Inspect or apply schema migrations against the task store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		mgr := migrate.New(a.db)
		ctx := context.Background()

		switch {
		case mustBool(cmd, "apply"):
			applied, err := mgr.Apply(ctx)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("Store is up to date.")
				return nil
			}
			fmt.Printf("Applied migrations: %v\n", applied)
			return nil
		case mustBool(cmd, "rollback"):
			restored, err := mgr.Rollback(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Restored from backup: %s\n", restored)
			return nil
		default:
			status, err := mgr.Status(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Applied: %v\n", status.Applied)
			fmt.Printf("Pending: %v\n", status.Pending)
			return nil
		}
	},
}

func init() {
	migrateCmd.Flags().Bool("apply", false, "Apply all pending migrations")
	migrateCmd.Flags().Bool("rollback", false, "Restore the most recent pre-migration backup")
}
