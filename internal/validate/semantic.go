package validate

import (
	"context"
	"fmt"
	"sort"

	"github.com/formweave/formweave/internal/ir"
	"github.com/formweave/formweave/internal/schema"
	"github.com/formweave/formweave/internal/store"
)

// Semantic checks the change-set against the live schema snapshot and the
// current store contents: insert rows must supply every required column of
// a known table, rows may only name columns the table has, and update and
// delete targets must exist in the store. Returns a SemanticError carrying
// every finding, or nil.
func Semantic(ctx context.Context, cs ir.ChangeSet, snap *schema.Snapshot, r store.Reader) error {
	var errs []ValidationError

	for _, table := range cs.Tables() {
		meta, known := snap.Table(table)
		if !known {
			errs = append(errs, ValidationError{
				Table:   table,
				Op:      "insert",
				Index:   0,
				Message: "table does not exist in the schema snapshot",
				Code:    ErrUnknownTable,
			})
			continue
		}

		columns := make(map[string]bool, len(meta.Columns))
		for _, col := range meta.Columns {
			columns[col.Name] = true
		}
		required := snap.RequiredColumns(table)

		ops := cs[table]
		for i, row := range ops.Insert {
			for _, col := range required {
				if v, present := row[col]; !present || v == nil {
					errs = append(errs, ValidationError{
						Table:   table,
						Op:      "insert",
						Index:   i,
						Message: fmt.Sprintf("required column %q is missing", col),
						Code:    ErrMissingRequiredValue,
					})
				}
			}
			errs = append(errs, checkColumns(table, "insert", i, row, columns)...)
		}
		for i, row := range ops.Update {
			errs = append(errs, checkColumns(table, "update", i, row, columns)...)
		}

		if len(ops.Update)+len(ops.Delete) == 0 || !snap.HasIDColumn(table) {
			continue
		}
		existing, err := r.TableIDs(ctx, table)
		if err != nil {
			return err
		}
		for i, row := range ops.Update {
			errs = append(errs, checkExists(table, "update", i, row, existing)...)
		}
		for i, row := range ops.Delete {
			errs = append(errs, checkExists(table, "delete", i, row, existing)...)
		}
	}

	if len(errs) > 0 {
		return &SemanticError{Errors: errs}
	}
	return nil
}

// checkColumns flags columns the table does not have.
func checkColumns(table, op string, idx int, row ir.Row, columns map[string]bool) []ValidationError {
	var unknown []string
	for col := range row {
		if !columns[col] {
			unknown = append(unknown, col)
		}
	}
	sort.Strings(unknown)

	errs := make([]ValidationError, 0, len(unknown))
	for _, col := range unknown {
		errs = append(errs, ValidationError{
			Table:   table,
			Op:      op,
			Index:   idx,
			Message: fmt.Sprintf("column %q does not exist on this table", col),
			Code:    ErrUnknownColumn,
		})
	}
	return errs
}

// checkExists flags update and delete targets absent from the store.
// Placeholder ids name rows staged by this batch, not store rows; the
// structural pass already proved they are reachable, so they are skipped
// here in both their typed and decoded string forms.
func checkExists(table, op string, idx int, row ir.Row, existing map[string]struct{}) []ValidationError {
	if _, isPlaceholder := ir.AsPlaceholder(row["id"]); isPlaceholder {
		return nil
	}
	id, ok := row["id"].(string)
	if !ok {
		return nil
	}
	if _, found := existing[id]; !found {
		return []ValidationError{{
			Table:   table,
			Op:      op,
			Index:   idx,
			Message: fmt.Sprintf("row %q does not exist in the store", id),
			Code:    ErrTargetRowAbsent,
		}}
	}
	return nil
}
