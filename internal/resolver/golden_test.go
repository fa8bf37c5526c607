package resolver

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/formweave/formweave/internal/ir"
	"github.com/formweave/formweave/internal/schema"
	"github.com/formweave/formweave/internal/testutil"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// =============================================================================
// Golden Change-Set Tests
// =============================================================================

// A brand-new form assembled from scratch: the form and page are staged
// first, the two fields land on the new page, and the select field gets a
// lazily created option set with five items.
func TestGoldenSnackRequestChangeSet(t *testing.T) {
	db := testutil.NewStore(t)
	snap, err := schema.Capture(context.Background(), db)
	require.NoError(t, err)

	target := ir.TargetForm{FormName: "Snack Request"}
	plan := &ir.IntentPlan{
		Fields: []ir.FieldIntent{
			{Operation: ir.OpInsert, TargetForm: target, FieldCode: "snack_type", FieldLabel: "Snack Type", FieldType: "single_select"},
			{Operation: ir.OpInsert, TargetForm: target, FieldCode: "quantity", FieldLabel: "Quantity", FieldType: "number"},
		},
		Options: []ir.OptionIntent{{
			Operation:  ir.OpInsert,
			TargetForm: target,
			FieldCode:  "snack_type",
			AddValues:  []string{"Chips", "Cookies", "Fruit", "Nuts", "Soda"},
		}},
	}

	cs, err := Compile(context.Background(), plan, db, snap,
		WithAllocator(testutil.NewSequentialAllocator()))
	require.NoError(t, err)

	data, err := cs.MarshalIndent()
	require.NoError(t, err)
	newGoldie(t).Assert(t, "scenario_snack_request", append(data, '\n'))
}

// An edit against a seeded form: one option renamed in place, one appended
// after the existing items.
func TestGoldenDestinationEditChangeSet(t *testing.T) {
	db := testutil.NewStore(t)
	testutil.SeedTravelRequest(t, db)
	snap, err := schema.Capture(context.Background(), db)
	require.NoError(t, err)

	plan := &ir.IntentPlan{
		Options: []ir.OptionIntent{{
			Operation:  ir.OpInsert,
			TargetForm: ir.TargetForm{FormName: "Travel Request"},
			FieldCode:  "destination",
			AddValues:  []string{"Paris"},
			RenameMap:  map[string]string{"Tokyo": "Milan"},
		}},
	}

	cs, err := Compile(context.Background(), plan, db, snap,
		WithAllocator(testutil.NewSequentialAllocator()))
	require.NoError(t, err)

	data, err := cs.MarshalIndent()
	require.NoError(t, err)
	newGoldie(t).Assert(t, "scenario_destination_edit", append(data, '\n'))
}
