// Package seed implements the seed command.
package seed

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerline/propops/internal/app"
)

// Command seeds default settings, system utility types and built-in alert
// rules. Existing rows are left alone, so it is safe on every deploy.
func Command(open func(context.Context) (*app.App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create missing default settings, utility types and alert rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Migrate(ctx); err != nil {
				return err
			}
			res, err := a.Seed(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "settings: %d created, %d already present\n", res.Settings.Created, res.Settings.Skipped)
			fmt.Fprintf(cmd.OutOrStdout(), "utility types: %d created\n", res.Types)
			fmt.Fprintf(cmd.OutOrStdout(), "alert rules: %d created\n", res.AlertRules)
			return nil
		},
	}
}
