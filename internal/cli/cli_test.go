package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formweave/formweave/internal/cli"
	"github.com/formweave/formweave/internal/ir"
	"github.com/formweave/formweave/internal/testutil"
)

// runCommand executes the root command with the given args and returns the
// combined output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// seedStoreForCLI opens a seeded store and points the commands at it via
// the environment.
func seedStoreForCLI(t *testing.T) testutil.TravelRequestIDs {
	t.Helper()
	path := filepath.Join(t.TempDir(), "formweave.db")
	db := testutil.NewStoreAt(t, path)
	ids := testutil.SeedTravelRequest(t, db)
	t.Setenv("FORMWEAVE_STORE__PATH", path)
	return ids
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// =============================================================================
// Root Command Tests
// =============================================================================

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := cli.NewRootCommand()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"resolve", "validate", "schema", "forms"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCommandRejectsInvalidFormat(t *testing.T) {
	seedStoreForCLI(t)

	_, err := runCommand(t, "schema", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

// =============================================================================
// Resolve Command Tests
// =============================================================================

func TestResolveCommandEndToEnd(t *testing.T) {
	ids := seedStoreForCLI(t)
	planPath := writeFile(t, "plan.yaml", `
options:
  - operation: insert
    target_form:
      form_name: Travel Request
    field_code: destination
    add_values: [Paris]
    rename_map:
      Tokyo: Milan
`)

	out, err := runCommand(t, "resolve", planPath, "--format", "json")
	require.NoError(t, err)

	cs, err := ir.DecodeChangeSet([]byte(out))
	require.NoError(t, err)

	items := cs.Table(ir.TableOptionItems)
	require.Len(t, items.Insert, 1)
	assert.Equal(t, "Paris", items.Insert[0]["value"])
	require.Len(t, items.Update, 1)
	assert.Equal(t, ids.TokyoID, items.Update[0]["id"])
	assert.Equal(t, "Milan", items.Update[0]["value"])
}

func TestResolveCommandClarification(t *testing.T) {
	seedStoreForCLI(t)
	planPath := writeFile(t, "plan.yaml", `
fields:
  - operation: update
    target_form:
      form_name: Expense Report
    field_code: total
`)

	out, err := runCommand(t, "resolve", planPath, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, cli.ExitFailure, cli.GetExitCode(err))
	assert.Contains(t, out, "FORM_NOT_FOUND")
	assert.Contains(t, out, "Travel Request")
}

func TestResolveCommandMissingPlanFile(t *testing.T) {
	seedStoreForCLI(t)

	_, err := runCommand(t, "resolve", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, cli.ExitCommandError, cli.GetExitCode(err))
}

func TestResolveCommandRejectsBadPolicyFlag(t *testing.T) {
	seedStoreForCLI(t)
	planPath := writeFile(t, "plan.yaml", "fields: []\n")

	_, err := runCommand(t, "resolve", planPath, "--on-duplicate-field", "merge")
	require.Error(t, err)
	assert.Equal(t, cli.ExitCommandError, cli.GetExitCode(err))
}

func TestResolveCommandFailPolicyRejectsDuplicate(t *testing.T) {
	seedStoreForCLI(t)
	planPath := writeFile(t, "plan.yaml", `
fields:
  - operation: insert
    target_form:
      form_name: Travel Request
    field_code: destination
    field_type: single_select
`)

	out, err := runCommand(t, "resolve", planPath, "--on-duplicate-field", "fail", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, cli.ExitFailure, cli.GetExitCode(err))
	assert.Contains(t, out, "already exists")
}

func TestResolveCommandRowBudgetFromEnv(t *testing.T) {
	seedStoreForCLI(t)
	t.Setenv("FORMWEAVE_RESOLVE__MAX_CHANGED_ROWS", "1")
	planPath := writeFile(t, "plan.yaml", `
options:
  - operation: insert
    target_form:
      form_name: Travel Request
    field_code: destination
    add_values: [Paris, Berlin]
`)

	out, err := runCommand(t, "resolve", planPath, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, cli.ExitFailure, cli.GetExitCode(err))
	assert.Contains(t, out, "E005")
}

// =============================================================================
// Validate Command Tests
// =============================================================================

func TestValidateCommandApplicableChangeSet(t *testing.T) {
	ids := seedStoreForCLI(t)
	csPath := writeFile(t, "changeset.json", `{
  "option_items": {
    "insert": [{"id": "$opt_1", "option_set_id": "`+ids.OptionSetID+`", "value": "Paris", "label": "Paris", "position": 4}],
    "update": [{"id": "`+ids.TokyoID+`", "value": "Milan", "label": "Milan"}],
    "delete": []
  }
}`)

	out, err := runCommand(t, "validate", csPath, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"valid": true`)
}

func TestValidateCommandReportsFindings(t *testing.T) {
	seedStoreForCLI(t)
	csPath := writeFile(t, "changeset.json", `{
  "form_fields": {
    "insert": [],
    "update": [{"id": "fld_ghost", "required": 1}],
    "delete": []
  }
}`)

	out, err := runCommand(t, "validate", csPath)
	require.Error(t, err)
	assert.Equal(t, cli.ExitFailure, cli.GetExitCode(err))
	assert.Contains(t, out, "V113")
}

func TestValidateCommandRejectsMalformedFile(t *testing.T) {
	seedStoreForCLI(t)
	csPath := writeFile(t, "changeset.json", "{not json")

	_, err := runCommand(t, "validate", csPath)
	require.Error(t, err)
	assert.Equal(t, cli.ExitCommandError, cli.GetExitCode(err))
}

// =============================================================================
// Schema and Forms Command Tests
// =============================================================================

func TestSchemaCommandListsTables(t *testing.T) {
	seedStoreForCLI(t)

	out, err := runCommand(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "forms")
	assert.Contains(t, out, "logic_rules")
	assert.Contains(t, out, "not-null")
}

func TestFormsCommandListsForms(t *testing.T) {
	seedStoreForCLI(t)

	out, err := runCommand(t, "forms")
	require.NoError(t, err)
	assert.Contains(t, out, "Travel Request")
	assert.Contains(t, out, "travel-request")
}

func TestFormsCommandShowsStructure(t *testing.T) {
	ids := seedStoreForCLI(t)

	out, err := runCommand(t, "forms", ids.FormID)
	require.NoError(t, err)
	assert.Contains(t, out, "Destination")
	assert.Contains(t, out, "Tokyo")
	assert.Contains(t, out, "required")
}

func TestFormsCommandUnknownForm(t *testing.T) {
	seedStoreForCLI(t)

	out, err := runCommand(t, "forms", "form_ghost")
	require.Error(t, err)
	assert.Equal(t, cli.ExitFailure, cli.GetExitCode(err))
	assert.Contains(t, out, "FORM_NOT_FOUND")
}
