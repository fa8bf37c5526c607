package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Placeholder Tests
// =============================================================================

func TestAsPlaceholder(t *testing.T) {
	pl, ok := AsPlaceholder(Placeholder("$fld_abc123"))
	require.True(t, ok)
	assert.Equal(t, "fld", pl.Kind())

	// Strings that round-tripped through JSON lose the type but keep the
	// sentinel prefix.
	pl, ok = AsPlaceholder("$form_0001")
	require.True(t, ok)
	assert.Equal(t, "form", pl.Kind())

	_, ok = AsPlaceholder("fld_concrete")
	assert.False(t, ok)
	_, ok = AsPlaceholder(42)
	assert.False(t, ok)
	_, ok = AsPlaceholder(nil)
	assert.False(t, ok)
}

func TestPlaceholderKindMalformed(t *testing.T) {
	assert.Equal(t, "", Placeholder("$nounderscore").Kind())
	assert.Equal(t, "", Placeholder("$_leading").Kind())
}

func TestRandomAllocatorMintsDistinct(t *testing.T) {
	a := NewRandomAllocator()
	seen := make(map[Placeholder]bool)
	for range 100 {
		pl := a.Mint(KindOptionItem)
		assert.Equal(t, "opt", pl.Kind())
		assert.False(t, seen[pl])
		seen[pl] = true
	}
}

// =============================================================================
// Field Reference Tests
// =============================================================================

func TestFieldRefEncodeParseRoundTrip(t *testing.T) {
	ref := FieldRef{FieldID: "fld_destination", FieldCode: "destination"}

	encoded, err := ref.Encode()
	require.NoError(t, err)
	assert.Contains(t, encoded, `"type":"field"`)

	parsed, err := ParseFieldRef(encoded)
	require.NoError(t, err)
	assert.Equal(t, RefTypeField, parsed.Type)
	assert.Equal(t, "fld_destination", parsed.FieldID)
	assert.Equal(t, "destination", parsed.FieldCode)
}

func TestParseFieldRefDefaultsType(t *testing.T) {
	parsed, err := ParseFieldRef(`{"field_code":"notes"}`)
	require.NoError(t, err)
	assert.Equal(t, RefTypeField, parsed.Type)

	_, err = ParseFieldRef(`not json`)
	assert.Error(t, err)
}

func TestFieldRefIsZero(t *testing.T) {
	assert.True(t, FieldRef{Type: RefTypeField}.IsZero())
	assert.False(t, FieldRef{FieldCode: "x"}.IsZero())
}

// =============================================================================
// Change-Set Tests
// =============================================================================

func TestChangeSetTablesApplyOrder(t *testing.T) {
	cs := ChangeSet{}
	cs.Table(TableLogicActions)
	cs.Table(TableForms)
	cs.Table(TableOptionItems)
	cs.Table("custom_table")

	assert.Equal(t,
		[]string{TableForms, TableOptionItems, TableLogicActions, "custom_table"},
		cs.Tables())
}

func TestChangeSetRowCount(t *testing.T) {
	cs := ChangeSet{}
	cs.Table(TableForms).Insert = []Row{{"id": "a"}}
	cs.Table(TableFormFields).Update = []Row{{"id": "b"}, {"id": "c"}}
	cs.Table(TableOptionItems).Delete = []Row{{"id": "d"}}

	assert.Equal(t, 4, cs.RowCount())
	assert.Equal(t, 0, ChangeSet{}.RowCount())
}

func TestChangeSetJSONRoundTrip(t *testing.T) {
	cs := ChangeSet{}
	cs.Table(TableForms).Insert = []Row{{"id": Placeholder("$form_1"), "title": "A"}}

	data, err := cs.MarshalIndent()
	require.NoError(t, err)

	decoded, err := DecodeChangeSet(data)
	require.NoError(t, err)

	rows := decoded.StagedInserts(TableForms)
	require.Len(t, rows, 1)
	// The typed placeholder degrades to a string but stays recognizable.
	pl, ok := AsPlaceholder(rows[0]["id"])
	require.True(t, ok)
	assert.Equal(t, Placeholder("$form_1"), pl)
}

// =============================================================================
// Intent Plan Tests
// =============================================================================

func TestTargetFormKeyAndNameOrCode(t *testing.T) {
	assert.Equal(t, "form_x", TargetForm{FormID: "form_x", FormName: "X"}.Key())
	assert.Equal(t, "X", TargetForm{FormName: "X", FormCode: "x"}.Key())
	assert.Equal(t, "x", TargetForm{FormCode: "x"}.Key())
	assert.True(t, TargetForm{}.IsZero())

	assert.Equal(t, "X", TargetForm{FormName: "X", FormCode: "x"}.NameOrCode())
	assert.Equal(t, "x", TargetForm{FormCode: "x"}.NameOrCode())
}

func TestCreationTargetsOnlyFieldInserts(t *testing.T) {
	plan := &IntentPlan{
		Fields: []FieldIntent{
			{Operation: OpInsert, TargetForm: TargetForm{FormName: "New Form"}},
			{Operation: OpUpdate, TargetForm: TargetForm{FormName: "Existing"}},
		},
		Options: []OptionIntent{
			{Operation: OpInsert, TargetForm: TargetForm{FormName: "Option Only"}},
		},
	}

	targets := plan.CreationTargets()
	require.Len(t, targets, 1)
	assert.Equal(t, "New Form", targets[0].FormName)

	assert.Len(t, plan.TargetForms(), 3)
}

func TestOperationValid(t *testing.T) {
	assert.True(t, OpInsert.Valid())
	assert.True(t, OpUpdate.Valid())
	assert.True(t, OpDelete.Valid())
	assert.False(t, Operation("upsert").Valid())
}
