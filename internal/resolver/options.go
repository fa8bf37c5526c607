package resolver

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/formweave/formweave/internal/ir"
)

// optionSetView is the resolved option set for one field, merging what
// the store holds with what this batch has already staged.
type optionSetView struct {
	setID   any // string or ir.Placeholder
	byValue map[string]ir.Row
	byLabel map[string]ir.Row
	maxPos  int
}

// applyOptionIntents stages option mutations in plan order. A single
// intent may add, rename, and soft-remove values in one pass.
func (b *Builder) applyOptionIntents(ctx context.Context, intents []ir.OptionIntent, cs ir.ChangeSet, batch *batchState) error {
	for _, intent := range intents {
		formID, err := b.resolveFormID(ctx, intent.TargetForm, batch)
		if err != nil {
			return err
		}
		field, err := b.resolveField(ctx, formID, intent.FieldCode, intent.FieldLabel, cs)
		if err != nil {
			return err
		}
		if field == nil {
			return b.fieldNotFound(ctx, formID, intent.FieldCode, intent.FieldLabel)
		}

		view, err := b.resolveOptionSet(ctx, formID, field, cs)
		if err != nil {
			return err
		}

		itemOps := cs.Table(ir.TableOptionItems)

		if intent.Operation == ir.OpInsert {
			for _, value := range intent.AddValues {
				if _, dup := view.byValue[value]; dup {
					continue // silently skipped, not an error
				}
				view.maxPos++
				row := ir.Row{
					"id":            b.alloc.Mint(ir.KindOptionItem),
					"option_set_id": view.setID,
					"value":         value,
					"label":         value,
					"position":      view.maxPos,
					"is_active":     1,
				}
				itemOps.Insert = append(itemOps.Insert, row)
				view.byValue[value] = row
			}
		}

		for _, oldValue := range sortedKeys(intent.RenameMap) {
			newValue := intent.RenameMap[oldValue]
			item := view.existingItem(oldValue)
			if item == nil {
				continue // unmatched rename keys are a no-op for idempotent re-application
			}
			itemOps.Update = append(itemOps.Update, ir.Row{
				"id":    item["id"],
				"value": newValue,
				"label": newValue,
			})
		}

		for _, value := range intent.RemoveValues {
			item := view.existingItem(value)
			if item == nil {
				continue
			}
			// Soft delete only; option items are never removed.
			itemOps.Update = append(itemOps.Update, ir.Row{
				"id":        item["id"],
				"is_active": 0,
			})
		}

		b.log.Debug("staged option intent",
			zap.String("field", field.Code),
			zap.Int("added", len(intent.AddValues)))
	}
	return nil
}

// resolveOptionSet returns the option set bound to a field, creating the
// set and its binding lazily on the first option mutation. The view also
// carries the merged value index and the running max position.
func (b *Builder) resolveOptionSet(ctx context.Context, formID any, field *resolvedField, cs ir.ChangeSet) (*optionSetView, error) {
	view := &optionSetView{
		byValue: make(map[string]ir.Row),
		byLabel: make(map[string]ir.Row),
	}

	// Existing binding in the store, if the field itself exists there.
	if concreteFieldID, ok := field.ID.(string); ok {
		set, err := b.reader.OptionSetForField(ctx, concreteFieldID)
		if err != nil {
			return nil, err
		}
		if set != nil {
			view.setID = set.ID
			items, err := b.reader.OptionItemsForField(ctx, concreteFieldID)
			if err != nil {
				return nil, err
			}
			for _, it := range items {
				row := ir.Row{"id": it.ID, "value": it.Value, "label": it.Label, "position": it.Position}
				view.byValue[it.Value] = row
				view.byLabel[it.Label] = row
				if it.Position > view.maxPos {
					view.maxPos = it.Position
				}
			}
		}
	}

	// Binding staged earlier in this batch, so one field never ends up
	// with two sets.
	if view.setID == nil {
		for _, row := range cs.StagedInserts(ir.TableOptionBindings) {
			if row["field_id"] == field.ID {
				view.setID = row["option_set_id"]
				break
			}
		}
	}

	if view.setID == nil {
		setID := b.alloc.Mint(ir.KindOptionSet)
		setOps := cs.Table(ir.TableOptionSets)
		setOps.Insert = append(setOps.Insert, ir.Row{
			"id":      setID,
			"form_id": formID,
			"name":    fmt.Sprintf("%s options", field.Label),
		})
		bindOps := cs.Table(ir.TableOptionBindings)
		bindOps.Insert = append(bindOps.Insert, ir.Row{
			"field_id":        field.ID,
			"option_set_id":   setID,
			"display_pattern": nil,
		})
		view.setID = setID
	}

	// Fold in items already staged for this set.
	for _, row := range cs.StagedInserts(ir.TableOptionItems) {
		if row["option_set_id"] != view.setID {
			continue
		}
		if v, ok := row["value"].(string); ok {
			view.byValue[v] = row
		}
		if l, ok := row["label"].(string); ok {
			view.byLabel[l] = row
		}
		if p, ok := row["position"].(int); ok && p > view.maxPos {
			view.maxPos = p
		}
	}

	return view, nil
}

// sortedKeys returns map keys in sorted order so staged rename rows come
// out in a deterministic sequence.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// existingItem finds a store-backed item by value or label. Items staged
// by this batch carry placeholder ids and are not rename/remove targets.
func (v *optionSetView) existingItem(valueOrLabel string) ir.Row {
	row, ok := v.byValue[valueOrLabel]
	if !ok {
		row, ok = v.byLabel[valueOrLabel]
	}
	if !ok {
		return nil
	}
	if _, staged := ir.AsPlaceholder(row["id"]); staged {
		return nil
	}
	return row
}
