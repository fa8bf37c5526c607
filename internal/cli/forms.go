package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewFormsCommand creates the forms command.
func NewFormsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forms [form-id]",
		Short: "List forms or show the structure of one form",
		Long: `Without arguments, list every form in the store. With a form id, print
the full structure: pages, fields, option items, and logic rules.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formID := ""
			if len(args) == 1 {
				formID = args[0]
			}
			return runForms(rootOpts, formID, cmd)
		},
	}
	return cmd
}

func runForms(opts *RootOptions, formID string, cmd *cobra.Command) error {
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

	ctx := cmd.Context()
	reader, closeStore, err := openReader(ctx, settings)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreOpen, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer closeStore()

	if formID == "" {
		forms, err := reader.ListForms(ctx)
		if err != nil {
			_ = formatter.Error(ErrCodeStoreOpen, err.Error(), nil)
			return WrapExitError(ExitCommandError, "list forms", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(forms)
		}
		if len(forms) == 0 {
			fmt.Fprintln(formatter.Writer, "no forms")
			return nil
		}
		bold := color.New(color.Bold)
		for _, f := range forms {
			bold.Fprintf(formatter.Writer, "%s", f.Title)
			fmt.Fprintf(formatter.Writer, "  (%s, slug=%s, status=%s)\n", f.ID, f.Slug, f.Status)
		}
		return nil
	}

	structure, err := reader.FormStructure(ctx, formID)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreOpen, err.Error(), nil)
		return WrapExitError(ExitCommandError, "form structure", err)
	}
	if structure == nil {
		_ = formatter.Error("FORM_NOT_FOUND", fmt.Sprintf("no form with id %q", formID), nil)
		return NewExitError(ExitFailure, "form not found")
	}

	if formatter.Format == "json" {
		return formatter.Success(structure)
	}

	bold := color.New(color.Bold)
	bold.Fprintf(formatter.Writer, "%s", structure.Form.Title)
	fmt.Fprintf(formatter.Writer, "  (%s)\n", structure.Form.ID)
	for _, page := range structure.Pages {
		fmt.Fprintf(formatter.Writer, "  page %d: %s\n", page.Position, page.Title)
		for _, f := range structure.Fields {
			if f.PageID != page.ID {
				continue
			}
			req := ""
			if f.Required {
				req = " required"
			}
			fmt.Fprintf(formatter.Writer, "    %2d. %s (%s)%s\n", f.Position, f.Label, f.Code, req)
			for _, item := range structure.Options[f.ID] {
				state := ""
				if !item.IsActive {
					state = " (inactive)"
				}
				fmt.Fprintf(formatter.Writer, "        - %s%s\n", item.Label, state)
			}
		}
	}
	for _, rule := range structure.Rules {
		enabled := "enabled"
		if !rule.Enabled {
			enabled = "disabled"
		}
		fmt.Fprintf(formatter.Writer, "  rule %q priority=%d %s\n", rule.Name, rule.Priority, enabled)
	}
	if opts.Verbose && len(structure.Conditions)+len(structure.Actions) > 0 {
		raw, err := json.MarshalIndent(map[string]any{
			"conditions": structure.Conditions,
			"actions":    structure.Actions,
		}, "  ", "  ")
		if err == nil {
			fmt.Fprintf(formatter.Writer, "  %s\n", raw)
		}
	}
	return nil
}
