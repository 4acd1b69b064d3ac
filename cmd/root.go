// Package cmd assembles the propops command tree.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ledgerline/propops/cmd/migrate"
	"github.com/ledgerline/propops/cmd/seed"
	"github.com/ledgerline/propops/cmd/serve"
	"github.com/ledgerline/propops/cmd/settings"
	"github.com/ledgerline/propops/cmd/utilities"
	"github.com/ledgerline/propops/internal/app"
	"github.com/ledgerline/propops/internal/conf"
)

// Execute runs the CLI and returns the process exit code.
func Execute(version string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCommand(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// RootCommand builds the command tree.
func RootCommand(version string) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "propops",
		Short:         "Property back-office service: settings, utility classification and alerts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default ./propops.yaml or /etc/propops/propops.yaml)")

	open := func(ctx context.Context) (*app.App, error) {
		cfg, err := conf.Load(configPath)
		if err != nil {
			return nil, err
		}
		return app.New(ctx, cfg, app.NewLogger(cfg.Logging), version)
	}

	rootCmd.AddCommand(
		serve.Command(open),
		migrate.Command(open),
		seed.Command(open),
		utilities.ReprocessCommand(open),
		utilities.ResetTypesCommand(open),
		settings.Command(open),
	)
	return rootCmd
}
