package validate

import (
	"fmt"

	"github.com/formweave/formweave/internal/ir"
)

// refColumns maps a foreign key column to the table its value must live
// in. Placeholder values in these columns must match an insert staged in
// the same batch under that table.
var refColumns = map[string]string{
	"form_id":       ir.TableForms,
	"page_id":       ir.TableFormPages,
	"field_id":      ir.TableFormFields,
	"option_set_id": ir.TableOptionSets,
	"rule_id":       ir.TableLogicRules,
}

// Structural proves the change-set is internally consistent: every
// placeholder used as a reference resolves to exactly one insert staged
// under the expected table, and every update or delete row carries an id
// naming either a concrete store row or a placeholder staged by this
// batch under the same table. Returns a StructureError carrying every
// finding, or nil.
func Structural(cs ir.ChangeSet) error {
	var errs []ValidationError

	// Pass 1: index the placeholders minted by this batch's inserts.
	staged := make(map[ir.Placeholder]string)
	for _, table := range cs.Tables() {
		for i, row := range cs[table].Insert {
			pl, ok := ir.AsPlaceholder(row["id"])
			if !ok {
				continue
			}
			if prev, dup := staged[pl]; dup {
				errs = append(errs, ValidationError{
					Table:   table,
					Op:      "insert",
					Index:   i,
					Message: fmt.Sprintf("placeholder %s already staged under %s", pl, prev),
					Code:    ErrDuplicatePlaceholder,
				})
				continue
			}
			staged[pl] = table
		}
	}

	// Pass 2: check every reference and every mutation target.
	for _, table := range cs.Tables() {
		ops := cs[table]
		for i, row := range ops.Insert {
			errs = append(errs, checkRefs(table, "insert", i, row, staged)...)
		}
		for i, row := range ops.Update {
			errs = append(errs, checkTarget(table, "update", i, row, staged)...)
			errs = append(errs, checkRefs(table, "update", i, row, staged)...)
		}
		for i, row := range ops.Delete {
			errs = append(errs, checkTarget(table, "delete", i, row, staged)...)
		}
	}

	if len(errs) > 0 {
		return &StructureError{Errors: errs}
	}
	return nil
}

// checkRefs validates the foreign key columns a row carries.
func checkRefs(table, op string, idx int, row ir.Row, staged map[ir.Placeholder]string) []ValidationError {
	var errs []ValidationError
	for column, wantTable := range refColumns {
		value, present := row[column]
		if !present {
			continue
		}
		pl, ok := ir.AsPlaceholder(value)
		if !ok {
			continue
		}
		gotTable, found := staged[pl]
		if !found {
			errs = append(errs, ValidationError{
				Table:   table,
				Op:      op,
				Index:   idx,
				Message: fmt.Sprintf("%s references placeholder %s which no staged insert provides", column, pl),
				Code:    ErrDanglingPlaceholder,
			})
			continue
		}
		if gotTable != wantTable {
			errs = append(errs, ValidationError{
				Table:   table,
				Op:      op,
				Index:   idx,
				Message: fmt.Sprintf("%s references placeholder %s staged under %s, expected %s", column, pl, gotTable, wantTable),
				Code:    ErrPlaceholderWrongKind,
			})
		}
	}
	return errs
}

// checkTarget validates the identity of an update or delete row. A
// placeholder id is legal when an insert in the same batch stages it
// under the same table; a later intent may mutate a row staged by an
// earlier one. The binding table has no id column and is exempt.
func checkTarget(table, op string, idx int, row ir.Row, staged map[ir.Placeholder]string) []ValidationError {
	if table == ir.TableOptionBindings {
		return nil
	}
	id, present := row["id"]
	if !present || id == nil || id == "" {
		return []ValidationError{{
			Table:   table,
			Op:      op,
			Index:   idx,
			Message: "row carries no id",
			Code:    ErrMissingRowID,
		}}
	}
	if pl, ok := ir.AsPlaceholder(id); ok {
		if staged[pl] != table {
			return []ValidationError{{
				Table:   table,
				Op:      op,
				Index:   idx,
				Message: fmt.Sprintf("cannot %s placeholder %s, no insert in this batch stages it under %s", op, pl, table),
				Code:    ErrPlaceholderMutation,
			}}
		}
	}
	return nil
}
