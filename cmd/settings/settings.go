// Package settings implements the settings get, set and export commands.
package settings

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ledgerline/propops/internal/app"
	store "github.com/ledgerline/propops/internal/settings"
)

const redacted = "(secret set)"

// Command groups the settings subcommands.
func Command(open func(context.Context) (*app.App, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write runtime settings",
	}
	cmd.AddCommand(getCommand(open), setCommand(open), exportCommand(open))
	return cmd
}

func getCommand(open func(context.Context) (*app.App, error)) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "get <category> <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			category, key := args[0], args[1]
			secret, err := a.Settings.HasSecret(ctx, category, key)
			if err != nil {
				return err
			}
			if secret && !reveal {
				fmt.Fprintln(cmd.OutOrStdout(), redacted)
				return nil
			}
			v, err := a.Settings.Lookup(ctx, category, key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print decrypted secret values")
	return cmd
}

func setCommand(open func(context.Context) (*app.App, error)) *cobra.Command {
	var (
		encrypted   bool
		description string
	)
	cmd := &cobra.Command{
		Use:   "set <category> <key> <value>",
		Short: "Validate and store a setting; JSON values are decoded, anything else is a string",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			v := store.ParseLiteral(args[2])
			if err := a.Settings.Set(ctx, args[0], args[1], v, encrypted, description); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s.%s updated\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().BoolVar(&encrypted, "encrypted", false, "store the value encrypted")
	cmd.Flags().StringVar(&description, "description", "", "replace the setting description")
	return cmd
}

func exportCommand(open func(context.Context) (*app.App, error)) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every setting as YAML; secret values are omitted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Settings.Export(ctx)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(map[string]any{"settings": entries})
			if err != nil {
				return fmt.Errorf("failed to encode settings: %w", err)
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if err := os.WriteFile(output, out, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d settings written to %s\n", len(entries), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
