package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/formweave/formweave/internal/ir"
	"github.com/formweave/formweave/internal/schema"
	"github.com/formweave/formweave/internal/validate"
)

// ValidationResult holds validation results for a saved change-set.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []validate.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <changeset-file>",
		Short: "Validate a saved change-set against the live store",
		Long: `Re-run the structural and semantic validators over a change-set that was
saved earlier. Useful before applying a batch that sat in review while
the store moved on.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error(ErrCodePlanLoad, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read change-set", err)
	}
	cs, err := ir.DecodeChangeSet(data)
	if err != nil {
		_ = formatter.Error(ErrCodePlanLoad, err.Error(), nil)
		return WrapExitError(ExitCommandError, "decode change-set", err)
	}
	formatter.VerboseLog("Loaded change-set: %d row change(s)", cs.RowCount())

	settings, err := opts.Settings()
	if err != nil {
		_ = formatter.Error(ErrCodeStoreOpen, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load config", err)
	}

	ctx := cmd.Context()
	reader, closeStore, err := openReader(ctx, settings)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreOpen, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer closeStore()

	snap, err := schema.Capture(ctx, reader)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreOpen, err.Error(), nil)
		return WrapExitError(ExitCommandError, "capture schema", err)
	}

	var findings []validate.ValidationError
	if err := validate.Structural(cs); err != nil {
		if se, ok := validate.AsStructureError(err); ok {
			findings = append(findings, se.Errors...)
		} else {
			return WrapExitError(ExitCommandError, "structural validation", err)
		}
	}
	if err := validate.Semantic(ctx, cs, snap, reader); err != nil {
		if se, ok := validate.AsSemanticError(err); ok {
			findings = append(findings, se.Errors...)
		} else {
			return WrapExitError(ExitCommandError, "semantic validation", err)
		}
	}

	if len(findings) > 0 {
		if formatter.Format == "json" {
			_ = formatter.Error(ErrCodeValidation, "change-set is not applicable", ValidationResult{
				Valid:  false,
				Errors: findings,
			})
		} else {
			fmt.Fprintf(formatter.Writer, "%s Validation failed\n\n", failMark)
			for _, f := range findings {
				fmt.Fprintf(formatter.Writer, "  %s\n", f.Error())
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d finding(s)", len(findings)))
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintf(formatter.Writer, "%s Change-set is applicable\n", okMark)
	return nil
}
