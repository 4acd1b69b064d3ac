// Package serve implements the serve command.
package serve

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ledgerline/propops/internal/app"
	"github.com/ledgerline/propops/internal/logger"
)

// Command runs the admin API with the job runner and alert engine.
func Command(open func(context.Context) (*app.App, error)) *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API, background jobs and alert evaluation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if !skipMigrate {
				if err := a.Migrate(ctx); err != nil {
					return err
				}
			}
			res, err := a.Seed(ctx)
			if err != nil {
				return err
			}
			a.Log.Info("defaults seeded",
				logger.Int("settings", res.Settings.Created),
				logger.Int("utility_types", res.Types),
				logger.Int("alert_rules", res.AlertRules))

			return a.Serve(ctx, nil)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not migrate the schema on start")
	return cmd
}
