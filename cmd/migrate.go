package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update catalog tables",
		RunE: func(c *cobra.Command, args []string) error {
			if _, err := a.openDB(true); err != nil {
				return err
			}
			a.logger.Info("catalog tables are up to date")
			return nil
		},
	}
}
