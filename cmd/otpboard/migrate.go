package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.DatabaseURL == "" {
				return errors.New("migrate needs a database url")
			}
			_, closeStore, err := a.openStore(cmd.Context(), true)
			if err != nil {
				return err
			}
			closeStore()
			a.log.Info("migrations applied")
			return nil
		},
	}
}
