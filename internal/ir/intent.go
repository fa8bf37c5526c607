package ir

// Operation is the mutation kind an intent requests.
type Operation string

// Supported operations.
const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether op is one of the supported operations.
func (op Operation) Valid() bool {
	switch op {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// TargetForm references a form by id, name, or code. At least one of the
// three must be set for an intent to be resolvable.
type TargetForm struct {
	FormID   string `json:"form_id,omitempty" yaml:"form_id,omitempty"`
	FormName string `json:"form_name,omitempty" yaml:"form_name,omitempty"`
	FormCode string `json:"form_code,omitempty" yaml:"form_code,omitempty"`
}

// IsZero reports whether the target carries no reference at all.
func (t TargetForm) IsZero() bool {
	return t.FormID == "" && t.FormName == "" && t.FormCode == ""
}

// Key returns the first non-empty reference, used to group intents that
// address the same not-yet-existing form within one plan.
func (t TargetForm) Key() string {
	switch {
	case t.FormID != "":
		return t.FormID
	case t.FormName != "":
		return t.FormName
	default:
		return t.FormCode
	}
}

// NameOrCode returns the human-meaningful reference (name preferred).
func (t TargetForm) NameOrCode() string {
	if t.FormName != "" {
		return t.FormName
	}
	return t.FormCode
}

// FieldProperties carries the optional per-field attributes of a field
// intent. Pointer fields distinguish "not supplied" from zero values so
// updates copy only explicitly supplied deltas.
type FieldProperties struct {
	Required         *bool   `json:"required,omitempty" yaml:"required,omitempty"`
	ReadOnly         *bool   `json:"read_only,omitempty" yaml:"read_only,omitempty"`
	Placeholder      *string `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	DefaultValue     *string `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	ValidationSchema *string `json:"validation_schema,omitempty" yaml:"validation_schema,omitempty"`
	HelpText         *string `json:"help_text,omitempty" yaml:"help_text,omitempty"`
	VisibleByDefault *bool   `json:"visible_by_default,omitempty" yaml:"visible_by_default,omitempty"`
}

// FieldIntent requests an insert, update, or delete of a form field.
type FieldIntent struct {
	Operation  Operation       `json:"operation" yaml:"operation"`
	TargetForm TargetForm      `json:"target_form" yaml:"target_form"`
	FieldCode  string          `json:"field_code,omitempty" yaml:"field_code,omitempty"`
	FieldLabel string          `json:"field_label,omitempty" yaml:"field_label,omitempty"`
	FieldType  string          `json:"field_type,omitempty" yaml:"field_type,omitempty"`
	PageHint   string          `json:"page_hint,omitempty" yaml:"page_hint,omitempty"`
	Properties FieldProperties `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// OptionIntent requests changes to the option set bound to one field.
// A single intent may add, rename, and soft-remove values in one pass.
type OptionIntent struct {
	Operation    Operation         `json:"operation" yaml:"operation"`
	TargetForm   TargetForm        `json:"target_form" yaml:"target_form"`
	FieldCode    string            `json:"field_code,omitempty" yaml:"field_code,omitempty"`
	FieldLabel   string            `json:"field_label,omitempty" yaml:"field_label,omitempty"`
	AddValues    []string          `json:"add_values,omitempty" yaml:"add_values,omitempty"`
	RenameMap    map[string]string `json:"rename_map,omitempty" yaml:"rename_map,omitempty"`
	RemoveValues []string          `json:"remove_values,omitempty" yaml:"remove_values,omitempty"`
}

// ConditionSpec is one condition of a logic intent. ID is set only when an
// update targets an existing condition row.
type ConditionSpec struct {
	ID       string   `json:"id,omitempty" yaml:"id,omitempty"`
	LHS      FieldRef `json:"lhs_ref" yaml:"lhs_ref"`
	Operator string   `json:"operator,omitempty" yaml:"operator,omitempty"`
	RHS      string   `json:"rhs,omitempty" yaml:"rhs,omitempty"`
	BoolJoin string   `json:"bool_join,omitempty" yaml:"bool_join,omitempty"`
	Position int      `json:"position,omitempty" yaml:"position,omitempty"`
}

// ActionSpec is one action of a logic intent.
type ActionSpec struct {
	ID       string   `json:"id,omitempty" yaml:"id,omitempty"`
	Action   string   `json:"action" yaml:"action"`
	Target   FieldRef `json:"target_ref" yaml:"target_ref"`
	Params   string   `json:"params,omitempty" yaml:"params,omitempty"`
	Position int      `json:"position,omitempty" yaml:"position,omitempty"`
}

// LogicIntent requests an insert, update, or delete of a logic rule with
// its conditions and actions.
type LogicIntent struct {
	Operation   Operation       `json:"operation" yaml:"operation"`
	TargetForm  TargetForm      `json:"target_form" yaml:"target_form"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	RuleID      string          `json:"rule_id,omitempty" yaml:"rule_id,omitempty"`
	RuleName    string          `json:"rule_name,omitempty" yaml:"rule_name,omitempty"`
	Trigger     string          `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Scope       string          `json:"scope,omitempty" yaml:"scope,omitempty"`
	Priority    int             `json:"priority,omitempty" yaml:"priority,omitempty"`
	Enabled     *bool           `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Conditions  []ConditionSpec `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Actions     []ActionSpec    `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// IntentPlan is the ordered plan produced by the external planner.
// Ordering is load-bearing: new forms are staged first, then fields, then
// options, then logic, because later handlers search staged inserts.
type IntentPlan struct {
	Fields  []FieldIntent  `json:"fields" yaml:"fields"`
	Options []OptionIntent `json:"options" yaml:"options"`
	Logic   []LogicIntent  `json:"logic_blocks" yaml:"logic_blocks"`
	Notes   string         `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// TargetForms returns every target form in plan order across all intent
// kinds.
func (p *IntentPlan) TargetForms() []TargetForm {
	out := make([]TargetForm, 0, len(p.Fields)+len(p.Options)+len(p.Logic))
	for _, f := range p.Fields {
		out = append(out, f.TargetForm)
	}
	for _, o := range p.Options {
		out = append(out, o.TargetForm)
	}
	for _, l := range p.Logic {
		out = append(out, l.TargetForm)
	}
	return out
}

// CreationTargets returns the target forms of field insert intents in
// plan order. Only these targets may stage a brand-new form; every other
// intent kind requires its form to exist already.
func (p *IntentPlan) CreationTargets() []TargetForm {
	var out []TargetForm
	for _, f := range p.Fields {
		if f.Operation == OpInsert {
			out = append(out, f.TargetForm)
		}
	}
	return out
}
