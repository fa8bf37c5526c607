package resolver

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/formweave/formweave/internal/ir"
)

var titleCaser = cases.Title(language.English)

// stageNewForms scans the plan's field inserts for target forms that
// reference a form by name or code which matches nothing in the store,
// and stages a form insert plus its single page for each. Only field
// inserts put a target in form-creation mode; an update, option, or
// logic intent on an unknown form is a FormNotFound clarification, not
// an implicit create. This runs before any field intent so that later
// handlers resolve these targets to the minted placeholders.
func (b *Builder) stageNewForms(ctx context.Context, plan *ir.IntentPlan, cs ir.ChangeSet, batch *batchState) error {
	seen := make(map[string]bool)
	for _, target := range plan.CreationTargets() {
		key := target.Key()
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		if target.FormID != "" {
			continue
		}
		nameOrCode := target.NameOrCode()
		if nameOrCode == "" {
			continue
		}

		matches, err := b.reader.FindFormsByName(ctx, nameOrCode)
		if err != nil {
			return err
		}
		if len(matches) > 0 {
			continue // existing form; resolveFormID handles it per intent
		}

		formID := b.alloc.Mint(ir.KindForm)
		title := nameOrCode
		if target.FormName == "" {
			title = titleCaser.String(strings.ReplaceAll(nameOrCode, "-", " "))
		}
		slug := strings.ReplaceAll(strings.ToLower(nameOrCode), " ", "-")

		cs.Table(ir.TableForms).Insert = append(cs.Table(ir.TableForms).Insert, ir.Row{
			"id":          formID,
			"slug":        slug,
			"title":       title,
			"description": fmt.Sprintf("Form for %s", strings.ToLower(title)),
			"status":      "draft",
		})

		pageID := b.alloc.Mint(ir.KindPage)
		cs.Table(ir.TableFormPages).Insert = append(cs.Table(ir.TableFormPages).Insert, ir.Row{
			"id":       pageID,
			"form_id":  formID,
			"position": 1,
			"title":    "Page 1",
		})

		batch.newFormIDs[key] = formID
		b.log.Debug("staged new form",
			zap.String("title", title),
			zap.String("placeholder", formID.String()))
	}
	return nil
}

// resolveFormID resolves a target form to a concrete id or, for forms
// staged by this batch, a placeholder. Zero matches yield FormNotFound
// with the full list of existing forms as candidates; multiple matches
// yield FormAmbiguous with the matches.
func (b *Builder) resolveFormID(ctx context.Context, target ir.TargetForm, batch *batchState) (any, error) {
	if target.FormID != "" {
		return target.FormID, nil
	}
	nameOrCode := target.NameOrCode()
	if nameOrCode == "" {
		return nil, fmt.Errorf("intent is missing a form reference")
	}

	if pl, ok := batch.newFormIDs[target.Key()]; ok {
		return pl, nil
	}

	matches, err := b.reader.FindFormsByName(ctx, nameOrCode)
	if err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		all, err := b.reader.ListForms(ctx)
		if err != nil {
			return nil, err
		}
		ce := &ClarificationError{
			Code: CodeFormNotFound,
			Message: fmt.Sprintf(
				"I could not find any form matching %q. Please choose one of the known forms.", nameOrCode),
		}
		if len(all) == 0 {
			ce.Message = fmt.Sprintf(
				"I could not find any form matching %q. The database currently has no forms.", nameOrCode)
		}
		for _, f := range all {
			ce.FormCandidates = append(ce.FormCandidates, FormCandidate{ID: f.ID, Title: f.Title, Slug: f.Slug})
		}
		return nil, ce
	case 1:
		return matches[0].ID, nil
	default:
		ce := &ClarificationError{
			Code: CodeFormAmbiguous,
			Message: fmt.Sprintf(
				"Multiple forms match %q. Please choose the correct form.", nameOrCode),
		}
		for _, f := range matches {
			ce.FormCandidates = append(ce.FormCandidates, FormCandidate{ID: f.ID, Title: f.Title, Slug: f.Slug})
		}
		return nil, ce
	}
}
