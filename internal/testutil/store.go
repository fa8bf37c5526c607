// Package testutil provides deterministic allocators and seeded stores
// for tests. Nothing here is imported by production code.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/formweave/formweave/internal/store"
)

// Standard field type ids seeded into every test store.
const (
	TypeText         = "ft_text"
	TypeNumber       = "ft_number"
	TypeDate         = "ft_date"
	TypeSingleSelect = "ft_single_select"
	TypeMultiSelect  = "ft_multi_select"
	TypeCheckbox     = "ft_checkbox"
)

// NewStore opens a fresh SQLite store in a temp directory, seeds the
// standard field types, and registers cleanup.
func NewStore(t *testing.T) *store.SQLite {
	t.Helper()
	return NewStoreAt(t, filepath.Join(t.TempDir(), "formweave.db"))
}

// NewStoreAt is NewStore for an explicit database path, for tests that
// hand the path to a command afterwards.
func NewStoreAt(t *testing.T, path string) *store.SQLite {
	t.Helper()

	db, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	types := [][2]string{
		{TypeText, "text"},
		{TypeNumber, "number"},
		{TypeDate, "date"},
		{TypeSingleSelect, "single_select"},
		{TypeMultiSelect, "multi_select"},
		{TypeCheckbox, "checkbox"},
	}
	for _, ft := range types {
		_, err := db.DB().Exec(
			`INSERT INTO field_types (id, key, label) VALUES (?, ?, ?)`,
			ft[0], ft[1], ft[1])
		require.NoError(t, err)
	}
	return db
}

// TravelRequestIDs names the rows seeded by SeedTravelRequest.
type TravelRequestIDs struct {
	FormID        string
	PageID        string
	DestinationID string
	StartDateID   string
	NotesID       string
	OptionSetID   string
	TokyoID       string
	LondonID      string
	NewYorkID     string
}

// SeedTravelRequest inserts the canonical test form: a "Travel Request"
// form with one page, a destination select carrying three options, a
// start date, and a notes field.
func SeedTravelRequest(t *testing.T, db *store.SQLite) TravelRequestIDs {
	t.Helper()

	ids := TravelRequestIDs{
		FormID:        "form_travel",
		PageID:        "page_travel_1",
		DestinationID: "fld_destination",
		StartDateID:   "fld_start_date",
		NotesID:       "fld_notes",
		OptionSetID:   "optset_destination",
		TokyoID:       "opt_tokyo",
		LondonID:      "opt_london",
		NewYorkID:     "opt_new_york",
	}

	exec := func(query string, args ...any) {
		t.Helper()
		_, err := db.DB().Exec(query, args...)
		require.NoError(t, err)
	}

	exec(`INSERT INTO forms (id, slug, title, description, status)
		VALUES (?, 'travel-request', 'Travel Request', 'Request a business trip', 'published')`,
		ids.FormID)
	exec(`INSERT INTO form_pages (id, form_id, position, title) VALUES (?, ?, 1, 'Trip Details')`,
		ids.PageID, ids.FormID)

	exec(`INSERT INTO form_fields (id, form_id, page_id, type_id, code, label, position, required)
		VALUES (?, ?, ?, ?, 'destination', 'Destination', 1, 1)`,
		ids.DestinationID, ids.FormID, ids.PageID, TypeSingleSelect)
	exec(`INSERT INTO form_fields (id, form_id, page_id, type_id, code, label, position, required)
		VALUES (?, ?, ?, ?, 'start_date', 'Start Date', 2, 1)`,
		ids.StartDateID, ids.FormID, ids.PageID, TypeDate)
	exec(`INSERT INTO form_fields (id, form_id, page_id, type_id, code, label, position, required)
		VALUES (?, ?, ?, ?, 'notes', 'Notes', 3, 0)`,
		ids.NotesID, ids.FormID, ids.PageID, TypeText)

	exec(`INSERT INTO option_sets (id, form_id, name) VALUES (?, ?, 'Destination options')`,
		ids.OptionSetID, ids.FormID)
	exec(`INSERT INTO field_option_binding (field_id, option_set_id) VALUES (?, ?)`,
		ids.DestinationID, ids.OptionSetID)

	options := []struct {
		id, value string
		pos       int
	}{
		{ids.TokyoID, "Tokyo", 1},
		{ids.LondonID, "London", 2},
		{ids.NewYorkID, "New York", 3},
	}
	for _, o := range options {
		exec(`INSERT INTO option_items (id, option_set_id, value, label, position, is_active)
			VALUES (?, ?, ?, ?, ?, 1)`,
			o.id, ids.OptionSetID, o.value, o.value, o.pos)
	}

	return ids
}

// SeedForm inserts a minimal form with one page and returns its ids.
func SeedForm(t *testing.T, db *store.SQLite, id, slug, title string) (formID, pageID string) {
	t.Helper()

	pageID = id + "_page_1"
	_, err := db.DB().Exec(`INSERT INTO forms (id, slug, title, status) VALUES (?, ?, ?, 'draft')`,
		id, slug, title)
	require.NoError(t, err)
	_, err = db.DB().Exec(`INSERT INTO form_pages (id, form_id, position, title) VALUES (?, ?, 1, 'Page 1')`,
		pageID, id)
	require.NoError(t, err)
	return id, pageID
}

// SeedLogicRule inserts a rule with one condition and one action.
func SeedLogicRule(t *testing.T, db *store.SQLite, ruleID, formID, name string, priority int) {
	t.Helper()

	exec := func(query string, args ...any) {
		t.Helper()
		_, err := db.DB().Exec(query, args...)
		require.NoError(t, err)
	}
	exec(`INSERT INTO logic_rules (id, form_id, name, priority) VALUES (?, ?, ?, ?)`,
		ruleID, formID, name, priority)
	exec(`INSERT INTO logic_conditions (id, rule_id, lhs_ref, operator, rhs, position)
		VALUES (?, ?, ?, '=', 'yes', 1)`,
		ruleID+"_cond_1", ruleID, `{"type":"field","field_id":"fld_destination","field_code":"destination"}`)
	exec(`INSERT INTO logic_actions (id, rule_id, action, target_ref, position)
		VALUES (?, ?, 'show', ?, 1)`,
		ruleID+"_act_1", ruleID, `{"type":"field","field_id":"fld_notes","field_code":"notes"}`)
}
