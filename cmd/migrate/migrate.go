// Package migrate implements the migrate command.
package migrate

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ledgerline/propops/internal/app"
)

// Command creates or updates the database schema.
func Command(open func(context.Context) (*app.App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Migrate(cmd.Context())
		},
	}
}
