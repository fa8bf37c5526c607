package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formweave/formweave/internal/schema"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the captured schema snapshot",
		Long: `Capture and print the table and column metadata the validators see.
Helps diagnose why a change-set was rejected after a migration.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, cmd)
		},
	}
	return cmd
}

func runSchema(opts *RootOptions, cmd *cobra.Command) error {
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

	snap, err := schema.Capture(ctx, reader)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreOpen, err.Error(), nil)
		return WrapExitError(ExitCommandError, "capture schema", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(snap.Tables())
	}

	for _, table := range snap.Tables() {
		fmt.Fprintf(formatter.Writer, "%s\n", table.Name)
		for _, col := range table.Columns {
			marks := ""
			if col.PrimaryKey {
				marks += " pk"
			}
			if col.NotNull {
				marks += " not-null"
			}
			if col.HasDefault {
				marks += " default"
			}
			fmt.Fprintf(formatter.Writer, "  %-24s %s%s\n", col.Name, col.Type, marks)
		}
		fmt.Fprintln(formatter.Writer)
	}
	return nil
}
