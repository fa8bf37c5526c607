package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formweave/formweave/internal/plan"
	"github.com/formweave/formweave/internal/resolver"
	"github.com/formweave/formweave/internal/schema"
	"github.com/formweave/formweave/internal/validate"
)

// Error codes for the resolve command.
const (
	ErrCodePlanLoad   = "E001"
	ErrCodeStoreOpen  = "E002"
	ErrCodeResolution = "E003"
	ErrCodeValidation = "E004"
	ErrCodeBudget     = "E005"
)

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	var dupPolicy string

	cmd := &cobra.Command{
		Use:   "resolve <plan-file>",
		Short: "Resolve an intent plan into a change-set",
		Long: `Resolve a YAML or JSON intent plan into a fully validated change-set.

The change-set is printed to stdout and never applied; a separate
committer decides whether to execute it. A plan that needs human
disambiguation exits with a clarification payload instead.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, args[0], dupPolicy, cmd)
		},
	}

	cmd.Flags().StringVar(&dupPolicy, "on-duplicate-field", "",
		"override the duplicate field policy (skip|fail)")
	return cmd
}

func runResolve(opts *RootOptions, planPath, dupPolicy string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	settings, err := opts.Settings()
	if err != nil {
		_ = formatter.Error(ErrCodeStoreOpen, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if dupPolicy != "" {
		settings.Resolve.DuplicateFieldPolicy = dupPolicy
		if err := settings.Validate(); err != nil {
			_ = formatter.Error(ErrCodeStoreOpen, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid flag", err)
		}
	}

	p, err := plan.Load(planPath)
	if err != nil {
		_ = formatter.Error(ErrCodePlanLoad, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load plan", err)
	}
	formatter.VerboseLog("Loaded plan: %d field, %d option, %d logic intents",
		len(p.Fields), len(p.Options), len(p.Logic))

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
	formatter.VerboseLog("Captured schema snapshot: %d tables", len(snap.Tables()))

	log, err := opts.Logger()
	if err != nil {
		return WrapExitError(ExitCommandError, "build logger", err)
	}
	defer log.Sync() //nolint:errcheck

	cs, err := resolver.Compile(ctx, p, reader, snap,
		resolver.WithLogger(log),
		resolver.WithMaxRows(settings.Resolve.MaxChangedRows),
		resolver.WithDuplicateFieldPolicy(resolver.DuplicateFieldPolicy(settings.Resolve.DuplicateFieldPolicy)),
	)
	if err != nil {
		return outputResolveError(formatter, err)
	}

	out, err := cs.MarshalIndent()
	if err != nil {
		return WrapExitError(ExitCommandError, "encode change-set", err)
	}
	if formatter.Format == "json" {
		fmt.Fprintln(formatter.Writer, string(out))
		return nil
	}
	fmt.Fprintf(formatter.Writer, "%s Resolved %d row change(s) across %d table(s)\n",
		okMark, cs.RowCount(), len(cs))
	fmt.Fprintln(formatter.Writer, string(out))
	return nil
}

// outputResolveError maps resolution failures onto the response envelope
// and exit codes. Clarifications are ExitFailure so scripted callers can
// distinguish "ask the user" from "the command broke".
func outputResolveError(formatter *OutputFormatter, err error) error {
	if ce, ok := resolver.AsClarification(err); ok {
		details := map[string]any{}
		if len(ce.FormCandidates) > 0 {
			details["form_candidates"] = ce.FormCandidates
		}
		if len(ce.FieldCandidates) > 0 {
			details["field_candidates"] = ce.FieldCandidates
		}
		_ = formatter.Error(string(ce.Code), ce.Message, details)
		return NewExitError(ExitFailure, ce.Message)
	}

	if resolver.IsRowBudgetExceeded(err) {
		_ = formatter.Error(ErrCodeBudget, err.Error(), nil)
		return NewExitError(ExitFailure, err.Error())
	}

	if se, ok := validate.AsStructureError(err); ok {
		_ = formatter.Error(ErrCodeValidation, "change-set failed structural validation", se.Errors)
		return NewExitError(ExitFailure, err.Error())
	}
	var sem *validate.SemanticError
	if errors.As(err, &sem) {
		_ = formatter.Error(ErrCodeValidation, "change-set failed semantic validation", sem.Errors)
		return NewExitError(ExitFailure, err.Error())
	}

	_ = formatter.Error(ErrCodeResolution, err.Error(), nil)
	return NewExitError(ExitFailure, err.Error())
}
