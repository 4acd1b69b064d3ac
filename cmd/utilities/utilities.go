// Package utilities implements the synchronous utility maintenance commands.
package utilities

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ledgerline/propops/internal/app"
	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/jobs"
)

// ReprocessCommand reclassifies every expense from the current mappings.
func ReprocessCommand(open func(context.Context) (*app.App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "utilities:reprocess",
		Short: "Reclassify all expenses from the current GL account mappings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, open, jobs.KindReprocess)
		},
	}
}

// ResetTypesCommand removes unused custom utility types and restores the
// system ones.
func ResetTypesCommand(open func(context.Context) (*app.App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "utilities:reset-types",
		Short: "Remove unused custom utility types and restore system types",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, open, jobs.KindResetTypes)
		},
	}
}

func runJob(cmd *cobra.Command, open func(context.Context) (*app.App, error), kind string) error {
	ctx := cmd.Context()
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.Runner.RunSync(ctx, kind)
	if err != nil {
		return err
	}
	if err := printJob(cmd.OutOrStdout(), job); err != nil {
		return err
	}
	if job.Status != entities.JobSucceeded {
		return fmt.Errorf("job %s %s: %s", job.ID, job.Status, job.Failure)
	}
	return nil
}

func printJob(w io.Writer, job *entities.Job) error {
	fmt.Fprintf(w, "job %s (%s): %s, %d processed\n", job.ID, job.Kind, job.Status, job.Processed)
	for _, e := range job.Errors {
		fmt.Fprintf(w, "  %s: %s\n", e.Item, e.Message)
	}
	if len(job.Result) == 0 {
		return nil
	}
	var result any
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return fmt.Errorf("failed to decode job result: %w", err)
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))
	return nil
}
