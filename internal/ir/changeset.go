package ir

import (
	"encoding/json"
	"sort"
)

// Table names that a change-set may touch.
const (
	TableForms          = "forms"
	TableFormPages      = "form_pages"
	TableFormFields     = "form_fields"
	TableOptionSets     = "option_sets"
	TableOptionBindings = "field_option_binding"
	TableOptionItems    = "option_items"
	TableLogicRules     = "logic_rules"
	TableLogicConds     = "logic_conditions"
	TableLogicActions   = "logic_actions"
)

// TableOrder is the staging and apply order. Parents come before the rows
// that reference them so the committer can insert top-down and delete
// bottom-up.
var TableOrder = []string{
	TableForms,
	TableFormPages,
	TableFormFields,
	TableOptionSets,
	TableOptionBindings,
	TableOptionItems,
	TableLogicRules,
	TableLogicConds,
	TableLogicActions,
}

// Row is a flat column-to-value map. Values are plain scalars, except that
// identifiers of rows staged earlier in the same batch are Placeholder.
type Row map[string]any

// RowOps groups the staged mutations for one table.
type RowOps struct {
	Insert []Row `json:"insert"`
	Update []Row `json:"update"`
	Delete []Row `json:"delete"`
}

// ChangeSet maps table names to their staged mutations. A change-set is
// built fresh per resolution request and is never applied by this core.
type ChangeSet map[string]*RowOps

// Table returns the RowOps section for a table, creating it on first use.
func (cs ChangeSet) Table(name string) *RowOps {
	ops, ok := cs[name]
	if !ok {
		ops = &RowOps{Insert: []Row{}, Update: []Row{}, Delete: []Row{}}
		cs[name] = ops
	}
	return ops
}

// RowCount sums insert, update, and delete rows across every table.
func (cs ChangeSet) RowCount() int {
	total := 0
	for _, ops := range cs {
		if ops == nil {
			continue
		}
		total += len(ops.Insert) + len(ops.Update) + len(ops.Delete)
	}
	return total
}

// Tables returns the touched table names in apply order, with any table
// outside the known order appended alphabetically.
func (cs ChangeSet) Tables() []string {
	seen := make(map[string]bool, len(cs))
	var out []string
	for _, name := range TableOrder {
		if _, ok := cs[name]; ok {
			out = append(out, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range cs {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// StagedInserts returns the insert rows staged for a table, or nil.
func (cs ChangeSet) StagedInserts(table string) []Row {
	if ops, ok := cs[table]; ok && ops != nil {
		return ops.Insert
	}
	return nil
}

// MarshalIndent renders the change-set as indented JSON. Map iteration
// order does not matter: encoding/json sorts map keys, so output is
// deterministic for a given change-set.
func (cs ChangeSet) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(cs, "", "  ")
}

// DecodeChangeSet parses a change-set from JSON, as produced by
// MarshalIndent or by an external tool holding a saved batch.
func DecodeChangeSet(data []byte) (ChangeSet, error) {
	var cs ChangeSet
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, err
	}
	return cs, nil
}
