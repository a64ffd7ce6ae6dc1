package cmd

import (
	"github.com/spf13/cobra"
)

func newMigrateCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema if it does not exist",
		Long: `Migrate creates every POS table on the configured database. It is safe
to run repeatedly; existing tables and rows are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.newApp()
			if err != nil {
				return err
			}
			defer a.close()

			// openStore runs the migration
			if _, err := a.openStore(commandContext(cmd)); err != nil {
				return err
			}

			printer, err := o.printer()
			if err != nil {
				return err
			}
			printer.Success("Database schema is up to date (%s)", a.config.Database.Driver)
			return nil
		},
	}
}
