package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/formweave/formweave/internal/ir"
)

// resolvedField is the outcome of a field lookup. ID is a concrete store
// id (string) or the placeholder of an insert staged earlier in the batch.
type resolvedField struct {
	ID    any
	Code  string
	Label string
}

// resolveField finds a field by code or label. Staged inserts are searched
// first: an option or logic intent in the same plan may target a field
// inserted by a preceding field intent. Returns nil when nothing matches;
// the caller decides whether that means "create" or "fail".
func (b *Builder) resolveField(ctx context.Context, formID any, code, label string, cs ir.ChangeSet) (*resolvedField, error) {
	if hit := stagedFieldLookup(cs, formID, code, label); hit != nil {
		return hit, nil
	}

	// A form staged in this batch has nothing in the store yet.
	if _, isNew := ir.AsPlaceholder(formID); isNew {
		return nil, nil
	}
	concreteID, ok := formID.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected form id type %T", formID)
	}

	if code != "" {
		exact, err := b.reader.FieldByCode(ctx, concreteID, code)
		if err != nil {
			return nil, err
		}
		if exact != nil {
			return &resolvedField{ID: exact.ID, Code: exact.Code, Label: exact.Label}, nil
		}

		fuzzy, err := b.reader.FindFieldsByCode(ctx, concreteID, code)
		if err != nil {
			return nil, err
		}
		if len(fuzzy) == 1 {
			return &resolvedField{ID: fuzzy[0].ID, Code: fuzzy[0].Code, Label: fuzzy[0].Label}, nil
		}
		if len(fuzzy) > 1 {
			ce := &ClarificationError{
				Code: CodeFieldAmbiguous,
				Message: fmt.Sprintf(
					"Multiple fields match code %q on this form. Please choose the correct field.", code),
			}
			for _, f := range fuzzy {
				ce.FieldCandidates = append(ce.FieldCandidates, FieldCandidate{ID: f.ID, Label: f.Label, Code: f.Code})
			}
			return nil, ce
		}
	}

	if label != "" {
		matches, err := b.reader.FindFieldsByLabel(ctx, concreteID, label)
		if err != nil {
			return nil, err
		}
		if len(matches) == 1 {
			return &resolvedField{ID: matches[0].ID, Code: matches[0].Code, Label: matches[0].Label}, nil
		}
		if len(matches) > 1 {
			ce := &ClarificationError{
				Code: CodeFieldAmbiguous,
				Message: fmt.Sprintf(
					"Multiple fields match %q on this form. Please choose the correct field.", label),
			}
			for _, f := range matches {
				ce.FieldCandidates = append(ce.FieldCandidates, FieldCandidate{ID: f.ID, Label: f.Label, Code: f.Code})
			}
			return nil, ce
		}
	}

	return nil, nil
}

// stagedFieldLookup searches the field inserts already staged for this
// form: exact code first, then unique substring code, then exact label.
func stagedFieldLookup(cs ir.ChangeSet, formID any, code, label string) *resolvedField {
	var onForm []ir.Row
	for _, row := range cs.StagedInserts(ir.TableFormFields) {
		if row["form_id"] == formID {
			onForm = append(onForm, row)
		}
	}
	if len(onForm) == 0 {
		return nil
	}

	asHit := func(row ir.Row) *resolvedField {
		hit := &resolvedField{ID: row["id"]}
		hit.Code, _ = row["code"].(string)
		hit.Label, _ = row["label"].(string)
		return hit
	}

	if code != "" {
		for _, row := range onForm {
			if row["code"] == code {
				return asHit(row)
			}
		}
		var fuzzy []ir.Row
		for _, row := range onForm {
			if c, _ := row["code"].(string); strings.Contains(c, code) {
				fuzzy = append(fuzzy, row)
			}
		}
		if len(fuzzy) == 1 {
			return asHit(fuzzy[0])
		}
	}
	if label != "" {
		for _, row := range onForm {
			if row["label"] == label {
				return asHit(row)
			}
		}
	}
	return nil
}

// applyFieldIntents stages the field handler's rows in plan order.
func (b *Builder) applyFieldIntents(ctx context.Context, intents []ir.FieldIntent, cs ir.ChangeSet, batch *batchState) error {
	for i, intent := range intents {
		formID, err := b.resolveFormID(ctx, intent.TargetForm, batch)
		if err != nil {
			return err
		}
		existing, err := b.resolveField(ctx, formID, intent.FieldCode, intent.FieldLabel, cs)
		if err != nil {
			return err
		}

		switch intent.Operation {
		case ir.OpInsert:
			if existing != nil {
				if b.dupPolicy == DuplicateFieldFail {
					return &DuplicateFieldError{Code: intent.FieldCode, Label: intent.FieldLabel}
				}
				b.log.Debug("field insert skipped, target already resolves",
					zap.String("code", existing.Code))
				continue
			}
			if err := b.stageFieldInsert(ctx, intent, formID, cs); err != nil {
				return err
			}

		case ir.OpUpdate:
			if existing == nil {
				return b.fieldNotFound(ctx, formID, intent.FieldCode, intent.FieldLabel)
			}
			row := ir.Row{"id": existing.ID}
			if intent.FieldLabel != "" {
				row["label"] = intent.FieldLabel
			}
			if intent.Properties.Required != nil {
				row["required"] = flag(*intent.Properties.Required)
			}
			if intent.Properties.ReadOnly != nil {
				row["read_only"] = flag(*intent.Properties.ReadOnly)
			}
			if intent.Properties.Placeholder != nil {
				row["placeholder"] = *intent.Properties.Placeholder
			}
			ops := cs.Table(ir.TableFormFields)
			ops.Update = append(ops.Update, row)

		case ir.OpDelete:
			if existing == nil {
				return b.fieldNotFound(ctx, formID, intent.FieldCode, intent.FieldLabel)
			}
			ops := cs.Table(ir.TableFormFields)
			ops.Delete = append(ops.Delete, ir.Row{"id": existing.ID})

		default:
			return fmt.Errorf("field intent %d: unsupported operation %q", i, intent.Operation)
		}
	}
	return nil
}

// stageFieldInsert resolves the target page and position, then stages the
// full field row.
func (b *Builder) stageFieldInsert(ctx context.Context, intent ir.FieldIntent, formID any, cs ir.ChangeSet) error {
	if intent.FieldType == "" {
		return fmt.Errorf("field insert requires field_type")
	}
	fieldType, err := b.reader.FieldTypeByKey(ctx, intent.FieldType)
	if err != nil {
		return err
	}
	if fieldType == nil {
		return &UnknownFieldTypeError{Key: intent.FieldType}
	}

	pageID, position, err := b.placeField(ctx, formID, cs)
	if err != nil {
		return err
	}

	code := intent.FieldCode
	if code == "" {
		code = intent.FieldLabel
	}
	if code == "" {
		u := uuid.New()
		code = fmt.Sprintf("field_%x", u[:3])
	}
	label := intent.FieldLabel
	if label == "" {
		label = titleCaser.String(strings.ReplaceAll(code, "_", " "))
	}

	props := intent.Properties
	row := ir.Row{
		"id":                 b.alloc.Mint(ir.KindField),
		"form_id":            formID,
		"page_id":            pageID,
		"type_id":            fieldType.ID,
		"code":               code,
		"label":              label,
		"help_text":          strOrNil(props.HelpText),
		"position":           position,
		"required":           flagPtr(props.Required, false),
		"read_only":          flagPtr(props.ReadOnly, false),
		"placeholder":        strOrNil(props.Placeholder),
		"default_value":      strOrNil(props.DefaultValue),
		"validation_schema":  strOrNil(props.ValidationSchema),
		"visible_by_default": flagPtr(props.VisibleByDefault, true),
	}
	ops := cs.Table(ir.TableFormFields)
	ops.Insert = append(ops.Insert, row)
	return nil
}

// placeField picks the page a new field lands on and computes the next
// position by counting existing and staged siblings on that page. New
// forms use their batch-created page; existing forms use their last page.
func (b *Builder) placeField(ctx context.Context, formID any, cs ir.ChangeSet) (pageID any, position int, err error) {
	maxPos := 0
	if _, isNew := ir.AsPlaceholder(formID); isNew {
		for _, row := range cs.StagedInserts(ir.TableFormPages) {
			if row["form_id"] == formID {
				pageID = row["id"]
				break
			}
		}
		if pageID == nil {
			return nil, 0, fmt.Errorf("new form %s has no staged page", idString(formID))
		}
	} else {
		pages, err := b.reader.PagesForForm(ctx, formID.(string))
		if err != nil {
			return nil, 0, err
		}
		if len(pages) == 0 {
			return nil, 0, fmt.Errorf("form %s has no pages", formID)
		}
		last := pages[len(pages)-1]
		pageID = last.ID

		existing, err := b.reader.FieldsOnPage(ctx, formID.(string), last.ID)
		if err != nil {
			return nil, 0, err
		}
		for _, f := range existing {
			if f.Position > maxPos {
				maxPos = f.Position
			}
		}
	}

	for _, row := range cs.StagedInserts(ir.TableFormFields) {
		if row["page_id"] != pageID {
			continue
		}
		if p, ok := row["position"].(int); ok && p > maxPos {
			maxPos = p
		}
	}
	return pageID, maxPos + 1, nil
}

// fieldNotFound builds the FieldNotFound clarification carrying the
// fields of the target form as candidates.
func (b *Builder) fieldNotFound(ctx context.Context, formID any, code, label string) error {
	wanted := code
	if wanted == "" {
		wanted = label
	}
	if wanted == "" {
		wanted = "the requested field"
	}
	ce := &ClarificationError{
		Code: CodeFieldNotFound,
		Message: fmt.Sprintf(
			"I could not find a field that looks like %q on this form. Please choose the correct field.", wanted),
	}
	if concreteID, ok := formID.(string); ok {
		fields, err := b.reader.ListFields(ctx, concreteID)
		if err != nil {
			return err
		}
		for _, f := range fields {
			ce.FieldCandidates = append(ce.FieldCandidates, FieldCandidate{ID: f.ID, Label: f.Label, Code: f.Code})
		}
	}
	return ce
}
