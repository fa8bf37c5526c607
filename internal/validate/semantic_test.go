package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formweave/formweave/internal/ir"
	"github.com/formweave/formweave/internal/schema"
	"github.com/formweave/formweave/internal/testutil"
)

// =============================================================================
// Semantic Validation Tests
// =============================================================================

func TestSemanticValidChangeSet(t *testing.T) {
	db := testutil.NewStore(t)
	ids := testutil.SeedTravelRequest(t, db)
	snap, err := schema.Capture(context.Background(), db)
	require.NoError(t, err)

	cs := ir.ChangeSet{}
	cs.Table(ir.TableOptionItems).Insert = []ir.Row{{
		"id":            ir.Placeholder("$opt_1"),
		"option_set_id": ids.OptionSetID,
		"value":         "Paris",
		"label":         "Paris",
		"position":      4,
	}}
	cs.Table(ir.TableOptionItems).Update = []ir.Row{{
		"id": ids.TokyoID, "value": "Milan", "label": "Milan",
	}}

	assert.NoError(t, Semantic(context.Background(), cs, snap, db))
}

func TestSemanticUnknownTable(t *testing.T) {
	db := testutil.NewStore(t)
	snap, err := schema.Capture(context.Background(), db)
	require.NoError(t, err)

	cs := ir.ChangeSet{}
	cs.Table("submissions").Insert = []ir.Row{{"id": "x"}}

	err = Semantic(context.Background(), cs, snap, db)
	se, ok := AsSemanticError(err)
	require.True(t, ok)
	require.Len(t, se.Errors, 1)
	assert.Equal(t, ErrUnknownTable, se.Errors[0].Code)
	assert.Equal(t, "submissions", se.Errors[0].Table)
}

func TestSemanticMissingRequiredColumns(t *testing.T) {
	db := testutil.NewStore(t)
	snap, err := schema.Capture(context.Background(), db)
	require.NoError(t, err)

	// Columns with store defaults (status) are not required; slug and
	// title are.
	cs := ir.ChangeSet{}
	cs.Table(ir.TableForms).Insert = []ir.Row{{
		"id":          ir.Placeholder("$form_1"),
		"description": "no slug, no title",
	}}

	err = Semantic(context.Background(), cs, snap, db)
	se, ok := AsSemanticError(err)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{ErrMissingRequiredValue, ErrMissingRequiredValue}, findingCodes(se.Errors))
}

func TestSemanticNilValueCountsAsMissing(t *testing.T) {
	db := testutil.NewStore(t)
	snap, err := schema.Capture(context.Background(), db)
	require.NoError(t, err)

	cs := ir.ChangeSet{}
	cs.Table(ir.TableForms).Insert = []ir.Row{{
		"id":    ir.Placeholder("$form_1"),
		"slug":  nil,
		"title": "A",
	}}

	err = Semantic(context.Background(), cs, snap, db)
	se, ok := AsSemanticError(err)
	require.True(t, ok)
	require.Len(t, se.Errors, 1)
	assert.Equal(t, ErrMissingRequiredValue, se.Errors[0].Code)
	assert.Contains(t, se.Errors[0].Message, "slug")
}

func TestSemanticUnknownColumnsSorted(t *testing.T) {
	db := testutil.NewStore(t)
	ids := testutil.SeedTravelRequest(t, db)
	snap, err := schema.Capture(context.Background(), db)
	require.NoError(t, err)

	cs := ir.ChangeSet{}
	cs.Table(ir.TableFormFields).Update = []ir.Row{{
		"id":       ids.NotesID,
		"zebra":    1,
		"aardvark": 2,
	}}

	err = Semantic(context.Background(), cs, snap, db)
	se, ok := AsSemanticError(err)
	require.True(t, ok)
	require.Len(t, se.Errors, 2)
	assert.Equal(t, ErrUnknownColumn, se.Errors[0].Code)
	assert.Contains(t, se.Errors[0].Message, "aardvark")
	assert.Contains(t, se.Errors[1].Message, "zebra")
}

func TestSemanticTargetRowAbsent(t *testing.T) {
	db := testutil.NewStore(t)
	testutil.SeedTravelRequest(t, db)
	snap, err := schema.Capture(context.Background(), db)
	require.NoError(t, err)

	cs := ir.ChangeSet{}
	cs.Table(ir.TableFormFields).Update = []ir.Row{{
		"id": "fld_ghost", "required": 1,
	}}
	cs.Table(ir.TableOptionItems).Delete = []ir.Row{{
		"id": "opt_ghost",
	}}

	err = Semantic(context.Background(), cs, snap, db)
	se, ok := AsSemanticError(err)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{ErrTargetRowAbsent, ErrTargetRowAbsent}, findingCodes(se.Errors))
}

func TestSemanticPlaceholderTargetSkipsExistenceCheck(t *testing.T) {
	db := testutil.NewStore(t)
	testutil.SeedTravelRequest(t, db)
	snap, err := schema.Capture(context.Background(), db)
	require.NoError(t, err)

	// A batch-staged id is not in the store yet. Both the typed form and
	// the string form a JSON round trip produces pass through.
	cs := ir.ChangeSet{}
	cs.Table(ir.TableFormFields).Update = []ir.Row{
		{"id": ir.Placeholder("$fld_1"), "required": 1},
		{"id": "$fld_1", "label": "Cost Center"},
	}

	assert.NoError(t, Semantic(context.Background(), cs, snap, db))
}

func TestSemanticBindingTableSkipsIdentityCheck(t *testing.T) {
	db := testutil.NewStore(t)
	ids := testutil.SeedTravelRequest(t, db)
	snap, err := schema.Capture(context.Background(), db)
	require.NoError(t, err)

	cs := ir.ChangeSet{}
	cs.Table(ir.TableOptionBindings).Update = []ir.Row{{
		"field_id":        ids.DestinationID,
		"option_set_id":   ids.OptionSetID,
		"display_pattern": "{label}",
	}}

	assert.NoError(t, Semantic(context.Background(), cs, snap, db))
}
