package resolver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/formweave/formweave/internal/ir"
	"github.com/formweave/formweave/internal/store"
)

// applyLogicIntents stages logic rule mutations in plan order.
func (b *Builder) applyLogicIntents(ctx context.Context, intents []ir.LogicIntent, cs ir.ChangeSet, batch *batchState) error {
	for i, intent := range intents {
		formID, err := b.resolveFormID(ctx, intent.TargetForm, batch)
		if err != nil {
			return err
		}

		switch intent.Operation {
		case ir.OpInsert:
			if err := b.stageRuleInsert(ctx, intent, formID, cs); err != nil {
				return err
			}
		case ir.OpUpdate:
			if err := b.stageRuleUpdate(ctx, intent, formID, cs); err != nil {
				return err
			}
		case ir.OpDelete:
			if err := b.stageRuleDelete(ctx, intent, formID, cs); err != nil {
				return err
			}
		default:
			return fmt.Errorf("logic intent %d: unsupported operation %q", i, intent.Operation)
		}
	}
	return nil
}

// stageRuleInsert emits the rule row plus one row per condition and per
// action, resolving every embedded field reference first.
func (b *Builder) stageRuleInsert(ctx context.Context, intent ir.LogicIntent, formID any, cs ir.ChangeSet) error {
	priority, err := b.probePriority(ctx, formID, intent.Priority, cs)
	if err != nil {
		return err
	}

	name := intent.RuleName
	if name == "" {
		name = intent.Description
	}
	trigger := intent.Trigger
	if trigger == "" {
		trigger = "on_change"
	}
	scope := intent.Scope
	if scope == "" {
		scope = "form"
	}

	ruleID := b.alloc.Mint(ir.KindRule)
	ruleOps := cs.Table(ir.TableLogicRules)
	ruleOps.Insert = append(ruleOps.Insert, ir.Row{
		"id":       ruleID,
		"form_id":  formID,
		"name":     name,
		"trigger":  trigger,
		"scope":    scope,
		"priority": priority,
		"enabled":  flagPtr(intent.Enabled, true),
	})

	condOps := cs.Table(ir.TableLogicConds)
	for i, cond := range intent.Conditions {
		lhs, err := b.resolveFieldRef(ctx, formID, cond.LHS, cs)
		if err != nil {
			return err
		}
		encoded, err := lhs.Encode()
		if err != nil {
			return err
		}
		condOps.Insert = append(condOps.Insert, ir.Row{
			"id":        b.alloc.Mint(ir.KindCondition),
			"rule_id":   ruleID,
			"lhs_ref":   encoded,
			"operator":  defaultString(cond.Operator, "="),
			"rhs":       cond.RHS,
			"bool_join": defaultString(cond.BoolJoin, "AND"),
			"position":  defaultPosition(cond.Position, i),
		})
	}

	actOps := cs.Table(ir.TableLogicActions)
	for i, act := range intent.Actions {
		target, err := b.resolveFieldRef(ctx, formID, act.Target, cs)
		if err != nil {
			return err
		}
		encoded, err := target.Encode()
		if err != nil {
			return err
		}
		actOps.Insert = append(actOps.Insert, ir.Row{
			"id":         b.alloc.Mint(ir.KindAction),
			"rule_id":    ruleID,
			"action":     act.Action,
			"target_ref": encoded,
			"params":     nilIfEmpty(act.Params),
			"position":   defaultPosition(act.Position, i),
		})
	}

	b.log.Debug("staged logic rule",
		zap.String("name", name),
		zap.Int("priority", priority),
		zap.Int("conditions", len(intent.Conditions)),
		zap.Int("actions", len(intent.Actions)))
	return nil
}

// probePriority finds a free priority slot by linear probing from the
// requested priority (or the default), skipping priorities held by
// existing rules of the form and by rules already staged in this batch.
func (b *Builder) probePriority(ctx context.Context, formID any, requested int, cs ir.ChangeSet) (int, error) {
	taken := make(map[int]bool)
	if concreteID, ok := formID.(string); ok {
		rules, err := b.reader.LogicRulesForForm(ctx, concreteID)
		if err != nil {
			return 0, err
		}
		for _, r := range rules {
			taken[r.Priority] = true
		}
	}
	for _, row := range cs.StagedInserts(ir.TableLogicRules) {
		if row["form_id"] != formID {
			continue
		}
		if p, ok := row["priority"].(int); ok {
			taken[p] = true
		}
	}

	priority := requested
	if priority <= 0 {
		priority = DefaultPriority
	}
	for taken[priority] {
		priority++
	}
	return priority, nil
}

// stageRuleUpdate locates an existing rule and applies only explicitly
// supplied attributes. Conditions and actions carrying the id of an
// existing child update it in place; the rest are inserted as new
// children.
func (b *Builder) stageRuleUpdate(ctx context.Context, intent ir.LogicIntent, formID any, cs ir.ChangeSet) error {
	rule, err := b.findRule(ctx, intent, formID)
	if err != nil {
		return err
	}

	row := ir.Row{"id": rule.ID}
	if intent.RuleName != "" && intent.RuleName != rule.Name {
		row["name"] = intent.RuleName
	}
	if intent.Trigger != "" {
		row["trigger"] = intent.Trigger
	}
	if intent.Scope != "" {
		row["scope"] = intent.Scope
	}
	if intent.Priority > 0 {
		row["priority"] = intent.Priority
	}
	if intent.Enabled != nil {
		row["enabled"] = flag(*intent.Enabled)
	}
	ruleOps := cs.Table(ir.TableLogicRules)
	ruleOps.Update = append(ruleOps.Update, row)

	existingConds, err := b.reader.ConditionsForRule(ctx, rule.ID)
	if err != nil {
		return err
	}
	condByID := make(map[string]store.LogicCondition, len(existingConds))
	for _, c := range existingConds {
		condByID[c.ID] = c
	}

	condOps := cs.Table(ir.TableLogicConds)
	for i, cond := range intent.Conditions {
		lhsEncoded := ""
		if !cond.LHS.IsZero() {
			lhs, err := b.resolveFieldRef(ctx, formID, cond.LHS, cs)
			if err != nil {
				return err
			}
			if lhsEncoded, err = lhs.Encode(); err != nil {
				return err
			}
		}

		if _, ok := condByID[cond.ID]; cond.ID != "" && ok {
			update := ir.Row{"id": cond.ID}
			if lhsEncoded != "" {
				update["lhs_ref"] = lhsEncoded
			}
			if cond.Operator != "" {
				update["operator"] = cond.Operator
			}
			if cond.RHS != "" {
				update["rhs"] = cond.RHS
			}
			if cond.BoolJoin != "" {
				update["bool_join"] = cond.BoolJoin
			}
			if cond.Position > 0 {
				update["position"] = cond.Position
			}
			condOps.Update = append(condOps.Update, update)
			continue
		}

		if lhsEncoded == "" {
			return &MissingFieldReferenceError{Ref: cond.LHS}
		}
		condOps.Insert = append(condOps.Insert, ir.Row{
			"id":        b.alloc.Mint(ir.KindCondition),
			"rule_id":   rule.ID,
			"lhs_ref":   lhsEncoded,
			"operator":  defaultString(cond.Operator, "="),
			"rhs":       cond.RHS,
			"bool_join": defaultString(cond.BoolJoin, "AND"),
			"position":  defaultPosition(cond.Position, i),
		})
	}

	existingActs, err := b.reader.ActionsForRule(ctx, rule.ID)
	if err != nil {
		return err
	}
	actByID := make(map[string]store.LogicAction, len(existingActs))
	for _, a := range existingActs {
		actByID[a.ID] = a
	}

	actOps := cs.Table(ir.TableLogicActions)
	for i, act := range intent.Actions {
		targetEncoded := ""
		if !act.Target.IsZero() {
			target, err := b.resolveFieldRef(ctx, formID, act.Target, cs)
			if err != nil {
				return err
			}
			if targetEncoded, err = target.Encode(); err != nil {
				return err
			}
		}

		if _, ok := actByID[act.ID]; act.ID != "" && ok {
			update := ir.Row{"id": act.ID}
			if act.Action != "" {
				update["action"] = act.Action
			}
			if targetEncoded != "" {
				update["target_ref"] = targetEncoded
			}
			if act.Params != "" {
				update["params"] = act.Params
			}
			if act.Position > 0 {
				update["position"] = act.Position
			}
			actOps.Update = append(actOps.Update, update)
			continue
		}

		if targetEncoded == "" {
			return &MissingFieldReferenceError{Ref: act.Target}
		}
		actOps.Insert = append(actOps.Insert, ir.Row{
			"id":         b.alloc.Mint(ir.KindAction),
			"rule_id":    rule.ID,
			"action":     act.Action,
			"target_ref": targetEncoded,
			"params":     nilIfEmpty(act.Params),
			"position":   defaultPosition(act.Position, i),
		})
	}

	return nil
}

// stageRuleDelete deletes the rule and cascades to every one of its
// existing conditions and actions.
func (b *Builder) stageRuleDelete(ctx context.Context, intent ir.LogicIntent, formID any, cs ir.ChangeSet) error {
	rule, err := b.findRule(ctx, intent, formID)
	if err != nil {
		return err
	}

	conds, err := b.reader.ConditionsForRule(ctx, rule.ID)
	if err != nil {
		return err
	}
	acts, err := b.reader.ActionsForRule(ctx, rule.ID)
	if err != nil {
		return err
	}

	condOps := cs.Table(ir.TableLogicConds)
	for _, c := range conds {
		condOps.Delete = append(condOps.Delete, ir.Row{"id": c.ID})
	}
	actOps := cs.Table(ir.TableLogicActions)
	for _, a := range acts {
		actOps.Delete = append(actOps.Delete, ir.Row{"id": a.ID})
	}
	ruleOps := cs.Table(ir.TableLogicRules)
	ruleOps.Delete = append(ruleOps.Delete, ir.Row{"id": rule.ID})

	b.log.Debug("staged logic rule delete",
		zap.String("rule", rule.ID),
		zap.Int("conditions", len(conds)),
		zap.Int("actions", len(acts)))
	return nil
}

// findRule locates an existing rule by id, then by exact name. Rules on a
// form staged in this batch cannot exist yet, so that is RuleNotFound.
func (b *Builder) findRule(ctx context.Context, intent ir.LogicIntent, formID any) (*store.LogicRule, error) {
	name := intent.RuleName
	if name == "" {
		name = intent.Description
	}
	notFound := &RuleNotFoundError{RuleID: intent.RuleID, Name: name}

	concreteID, ok := formID.(string)
	if !ok {
		return nil, notFound
	}
	rules, err := b.reader.LogicRulesForForm(ctx, concreteID)
	if err != nil {
		return nil, err
	}

	if intent.RuleID != "" {
		for i := range rules {
			if rules[i].ID == intent.RuleID {
				return &rules[i], nil
			}
		}
		return nil, notFound
	}
	for i := range rules {
		if rules[i].Name == name {
			return &rules[i], nil
		}
	}
	return nil, notFound
}

// defaultString returns v unless empty.
func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// defaultPosition returns the supplied position or idx+1 when unset.
func defaultPosition(v, idx int) int {
	if v > 0 {
		return v
	}
	return idx + 1
}

// nilIfEmpty renders an optional string column value.
func nilIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
