package jobs

import (
	"context"

	"github.com/ledgerline/propops/internal/utilities"
)

// Reprocessor is the slice of utilities.Mapper used by the reprocess job.
type Reprocessor interface {
	Reprocess(ctx context.Context, progress func(processed int)) (utilities.ReprocessResult, error)
}

// TypeResetter is the slice of utilities.Registry used by the reset job.
type TypeResetter interface {
	ResetToDefaults(ctx context.Context) (int64, error)
}

// ResetResult is stored on a finished utilities.reset_types job.
type ResetResult struct {
	Removed int64 `json:"removed"`
}

// ReprocessJob reclassifies every expense from the current mappings.
func ReprocessJob(m Reprocessor) Func {
	return func(ctx context.Context, progress func(int)) (Outcome, error) {
		res, err := m.Reprocess(ctx, progress)
		return Outcome{Processed: res.Processed, Errors: res.Errors, Result: res}, err
	}
}

// ResetTypesJob removes unused custom utility types.
func ResetTypesJob(r TypeResetter) Func {
	return func(ctx context.Context, _ func(int)) (Outcome, error) {
		removed, err := r.ResetToDefaults(ctx)
		return Outcome{Processed: int(removed), Result: ResetResult{Removed: removed}}, err
	}
}

// RegisterUtilities binds the utility bulk operations to their kinds.
func RegisterUtilities(r *Runner, m Reprocessor, types TypeResetter) {
	r.Register(KindReprocess, ReprocessJob(m))
	r.Register(KindResetTypes, ResetTypesJob(types))
}
