package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formweave/formweave/internal/ir"
	"github.com/formweave/formweave/internal/schema"
	"github.com/formweave/formweave/internal/testutil"
)

// =============================================================================
// Field Intent Tests
// =============================================================================

func TestBuildFieldInsertOnExistingForm(t *testing.T) {
	db := testutil.NewStore(t)
	ids := testutil.SeedTravelRequest(t, db)
	b := NewBuilder(db, WithAllocator(testutil.NewSequentialAllocator()))

	plan := &ir.IntentPlan{
		Fields: []ir.FieldIntent{{
			Operation:  ir.OpInsert,
			TargetForm: ir.TargetForm{FormName: "Travel Request"},
			FieldCode:  "cost_center",
			FieldLabel: "Cost Center",
			FieldType:  "text",
		}},
	}

	cs, err := b.Build(context.Background(), plan)
	require.NoError(t, err)

	inserts := cs.StagedInserts(ir.TableFormFields)
	require.Len(t, inserts, 1)
	row := inserts[0]
	assert.Equal(t, ir.Placeholder("$fld_00000001"), row["id"])
	assert.Equal(t, ids.FormID, row["form_id"])
	assert.Equal(t, ids.PageID, row["page_id"])
	assert.Equal(t, "cost_center", row["code"])
	assert.Equal(t, "Cost Center", row["label"])
	// Three fields already sit on the page.
	assert.Equal(t, 4, row["position"])
	assert.Equal(t, 0, row["required"])
	assert.Equal(t, 1, row["visible_by_default"])
}

func TestBuildFieldInsertDefaultsLabelFromCode(t *testing.T) {
	db := testutil.NewStore(t)
	testutil.SeedTravelRequest(t, db)
	b := NewBuilder(db, WithAllocator(testutil.NewSequentialAllocator()))

	plan := &ir.IntentPlan{
		Fields: []ir.FieldIntent{{
			Operation:  ir.OpInsert,
			TargetForm: ir.TargetForm{FormName: "Travel Request"},
			FieldCode:  "approval_status",
			FieldType:  "text",
		}},
	}

	cs, err := b.Build(context.Background(), plan)
	require.NoError(t, err)

	row := cs.StagedInserts(ir.TableFormFields)[0]
	assert.Equal(t, "Approval Status", row["label"])
}

func TestBuildDuplicateFieldSkipped(t *testing.T) {
	db := testutil.NewStore(t)
	testutil.SeedTravelRequest(t, db)
	b := NewBuilder(db, WithAllocator(testutil.NewSequentialAllocator()))

	plan := &ir.IntentPlan{
		Fields: []ir.FieldIntent{{
			Operation:  ir.OpInsert,
			TargetForm: ir.TargetForm{FormName: "Travel Request"},
			FieldCode:  "destination",
			FieldType:  "single_select",
		}},
	}

	cs, err := b.Build(context.Background(), plan)
	require.NoError(t, err)
	assert.Empty(t, cs.StagedInserts(ir.TableFormFields))
	assert.Equal(t, 0, cs.RowCount())
}

func TestBuildDuplicateFieldFailPolicy(t *testing.T) {
	db := testutil.NewStore(t)
	testutil.SeedTravelRequest(t, db)
	b := NewBuilder(db,
		WithAllocator(testutil.NewSequentialAllocator()),
		WithDuplicateFieldPolicy(DuplicateFieldFail))

	plan := &ir.IntentPlan{
		Fields: []ir.FieldIntent{{
			Operation:  ir.OpInsert,
			TargetForm: ir.TargetForm{FormName: "Travel Request"},
			FieldCode:  "destination",
			FieldType:  "single_select",
		}},
	}

	_, err := b.Build(context.Background(), plan)
	var dup *DuplicateFieldError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "destination", dup.Code)
}

func TestBuildFieldUpdateStagesOnlyDeltas(t *testing.T) {
	db := testutil.NewStore(t)
	ids := testutil.SeedTravelRequest(t, db)
	b := NewBuilder(db, WithAllocator(testutil.NewSequentialAllocator()))

	required := true
	plan := &ir.IntentPlan{
		Fields: []ir.FieldIntent{{
			Operation:  ir.OpUpdate,
			TargetForm: ir.TargetForm{FormName: "Travel Request"},
			FieldCode:  "notes",
			Properties: ir.FieldProperties{Required: &required},
		}},
	}

	cs, err := b.Build(context.Background(), plan)
	require.NoError(t, err)

	updates := cs.Table(ir.TableFormFields).Update
	require.Len(t, updates, 1)
	assert.Equal(t, ir.Row{"id": ids.NotesID, "required": 1}, updates[0])
}

func TestBuildFieldDelete(t *testing.T) {
	db := testutil.NewStore(t)
	ids := testutil.SeedTravelRequest(t, db)
	b := NewBuilder(db, WithAllocator(testutil.NewSequentialAllocator()))

	plan := &ir.IntentPlan{
		Fields: []ir.FieldIntent{{
			Operation:  ir.OpDelete,
			TargetForm: ir.TargetForm{FormName: "Travel Request"},
			FieldCode:  "notes",
		}},
	}

	cs, err := b.Build(context.Background(), plan)
	require.NoError(t, err)

	deletes := cs.Table(ir.TableFormFields).Delete
	require.Len(t, deletes, 1)
	assert.Equal(t, ir.Row{"id": ids.NotesID}, deletes[0])
}

func TestBuildFieldNotFoundCarriesCandidates(t *testing.T) {
	db := testutil.NewStore(t)
	testutil.SeedTravelRequest(t, db)
	b := NewBuilder(db, WithAllocator(testutil.NewSequentialAllocator()))

	plan := &ir.IntentPlan{
		Fields: []ir.FieldIntent{{
			Operation:  ir.OpUpdate,
			TargetForm: ir.TargetForm{FormName: "Travel Request"},
			FieldCode:  "does_not_exist",
		}},
	}

	_, err := b.Build(context.Background(), plan)
	ce, ok := AsClarification(err)
	require.True(t, ok)
	assert.Equal(t, CodeFieldNotFound, ce.Code)
	assert.Len(t, ce.FieldCandidates, 3)
}

func TestBuildUnknownFieldType(t *testing.T) {
	db := testutil.NewStore(t)
	testutil.SeedTravelRequest(t, db)
	b := NewBuilder(db, WithAllocator(testutil.NewSequentialAllocator()))

	plan := &ir.IntentPlan{
		Fields: []ir.FieldIntent{{
			Operation:  ir.OpInsert,
			TargetForm: ir.TargetForm{FormName: "Travel Request"},
			FieldCode:  "rating",
			FieldType:  "star_rating",
		}},
	}

	_, err := b.Build(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, IsUnknownFieldType(err))
}

// =============================================================================
// Row Budget Tests
// =============================================================================

func TestBuildRowBudgetExceeded(t *testing.T) {
	db := testutil.NewStore(t)
	testutil.SeedTravelRequest(t, db)
	b := NewBuilder(db,
		WithAllocator(testutil.NewSequentialAllocator()),
		WithMaxRows(2))

	plan := &ir.IntentPlan{
		Options: []ir.OptionIntent{{
			Operation:  ir.OpInsert,
			TargetForm: ir.TargetForm{FormName: "Travel Request"},
			FieldCode:  "destination",
			AddValues:  []string{"Paris", "Berlin", "Madrid"},
		}},
	}

	_, err := b.Build(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, IsRowBudgetExceeded(err))

	var budget *RowBudgetError
	require.ErrorAs(t, err, &budget)
	assert.Equal(t, 3, budget.Rows)
	assert.Equal(t, 2, budget.Limit)
}

func TestBuildRowBudgetBoundedUnderLoad(t *testing.T) {
	db := testutil.NewStore(t)
	testutil.SeedTravelRequest(t, db)
	b := NewBuilder(db, WithAllocator(testutil.NewSequentialAllocator()))

	// 99 option adds on an existing field stays inside the default budget.
	values := make([]string, 99)
	for i := range values {
		values[i] = fmt.Sprintf("City %03d", i)
	}
	plan := &ir.IntentPlan{
		Options: []ir.OptionIntent{{
			Operation:  ir.OpInsert,
			TargetForm: ir.TargetForm{FormName: "Travel Request"},
			FieldCode:  "destination",
			AddValues:  values,
		}},
	}

	cs, err := b.Build(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 99, cs.RowCount())

	// The ceiling is inclusive; two more values push past it.
	plan.Options[0].AddValues = append(values, "City 100", "City 101")
	b2 := NewBuilder(db, WithAllocator(testutil.NewSequentialAllocator()))
	_, err = b2.Build(context.Background(), plan)
	assert.True(t, IsRowBudgetExceeded(err))
}

// =============================================================================
// Full Pipeline Tests
// =============================================================================

func TestCompileAddOptionEndToEnd(t *testing.T) {
	db := testutil.NewStore(t)
	ids := testutil.SeedTravelRequest(t, db)

	ctx := context.Background()
	snap, err := schema.Capture(ctx, db)
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

	cs, err := Compile(ctx, plan, db, snap,
		WithAllocator(testutil.NewSequentialAllocator()))
	require.NoError(t, err)

	items := cs.Table(ir.TableOptionItems)
	require.Len(t, items.Insert, 1)
	assert.Equal(t, "Paris", items.Insert[0]["value"])
	assert.Equal(t, 4, items.Insert[0]["position"])
	require.Len(t, items.Update, 1)
	assert.Equal(t, ids.TokyoID, items.Update[0]["id"])
	assert.Equal(t, "Milan", items.Update[0]["value"])
	assert.Equal(t, "Milan", items.Update[0]["label"])
}

func TestCompileInsertThenUpdateSameField(t *testing.T) {
	db := testutil.NewStore(t)
	testutil.SeedTravelRequest(t, db)

	ctx := context.Background()
	snap, err := schema.Capture(ctx, db)
	require.NoError(t, err)

	// The update resolves to the insert staged just before it, so its
	// target id is the placeholder, and the batch still validates.
	required := true
	plan := &ir.IntentPlan{
		Fields: []ir.FieldIntent{
			{
				Operation:  ir.OpInsert,
				TargetForm: ir.TargetForm{FormName: "Travel Request"},
				FieldCode:  "cost_center",
				FieldLabel: "Cost Center",
				FieldType:  "text",
			},
			{
				Operation:  ir.OpUpdate,
				TargetForm: ir.TargetForm{FormName: "Travel Request"},
				FieldCode:  "cost_center",
				Properties: ir.FieldProperties{Required: &required},
			},
		},
	}

	cs, err := Compile(ctx, plan, db, snap,
		WithAllocator(testutil.NewSequentialAllocator()))
	require.NoError(t, err)

	fields := cs.Table(ir.TableFormFields)
	require.Len(t, fields.Insert, 1)
	require.Len(t, fields.Update, 1)
	assert.Equal(t, ir.Placeholder("$fld_00000001"), fields.Insert[0]["id"])
	assert.Equal(t, ir.Row{"id": ir.Placeholder("$fld_00000001"), "required": 1}, fields.Update[0])
}

func TestCompileNewFormEndToEnd(t *testing.T) {
	db := testutil.NewStore(t)

	ctx := context.Background()
	snap, err := schema.Capture(ctx, db)
	require.NoError(t, err)

	plan := &ir.IntentPlan{
		Fields: []ir.FieldIntent{{
			Operation:  ir.OpInsert,
			TargetForm: ir.TargetForm{FormName: "Snack Request"},
			FieldCode:  "snack_type",
			FieldLabel: "Snack Type",
			FieldType:  "single_select",
		}},
	}

	cs, err := Compile(ctx, plan, db, snap,
		WithAllocator(testutil.NewSequentialAllocator()))
	require.NoError(t, err)

	forms := cs.StagedInserts(ir.TableForms)
	require.Len(t, forms, 1)
	assert.Equal(t, "snack-request", forms[0]["slug"])
	assert.Equal(t, "draft", forms[0]["status"])
	require.Len(t, cs.StagedInserts(ir.TableFormPages), 1)
	require.Len(t, cs.StagedInserts(ir.TableFormFields), 1)
}
