package resolver

import (
	"context"

	"github.com/formweave/formweave/internal/ir"
)

// resolveFieldRef rewrites a logic payload reference so that FieldID
// carries a concrete store id or a placeholder staged in this batch.
// References that cannot be pinned to a real or staged field fail with
// MissingFieldReferenceError rather than being staged dangling.
func (b *Builder) resolveFieldRef(ctx context.Context, formID any, ref ir.FieldRef, cs ir.ChangeSet) (ir.FieldRef, error) {
	out := ref
	if out.Type == "" {
		out.Type = ir.RefTypeField
	}

	if out.FieldID != "" {
		pl, isPlaceholder := ir.AsPlaceholder(out.FieldID)
		if !isPlaceholder {
			return out, nil
		}
		// A placeholder id is only meaningful if this batch staged it.
		for _, row := range cs.StagedInserts(ir.TableFormFields) {
			if idString(row["id"]) == pl.String() {
				return out, nil
			}
		}
		// The planner may mint its own placeholder; fall through to the
		// code lookup and rewrite it to ours.
		out.FieldID = ""
	}

	if out.FieldCode == "" {
		return ir.FieldRef{}, &MissingFieldReferenceError{Ref: ref}
	}

	field, err := b.resolveField(ctx, formID, out.FieldCode, "", cs)
	if err != nil {
		return ir.FieldRef{}, err
	}
	if field == nil {
		return ir.FieldRef{}, &MissingFieldReferenceError{Ref: ref}
	}

	out.FieldID = idString(field.ID)
	out.FieldCode = field.Code
	return out, nil
}
