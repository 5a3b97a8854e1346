package main

import (
	"github.com/spf13/cobra"
	"github.com/welldanyogia/webrana-cms-backend/internal/database"
)

func newMigrateCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the attachments table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := database.Connect(rt.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer database.Close(db)

			return database.Migrate(db)
		},
	}
}
