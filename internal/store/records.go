package store

import "context"

// Form is one row of the forms table.
type Form struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Page is one row of the form_pages table.
type Page struct {
	ID       string `json:"id"`
	FormID   string `json:"form_id"`
	Position int    `json:"position"`
	Title    string `json:"title"`
}

// FieldType is one row of the field_types table.
type FieldType struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Field is one row of the form_fields table.
type Field struct {
	ID               string `json:"id"`
	FormID           string `json:"form_id"`
	PageID           string `json:"page_id"`
	TypeID           string `json:"type_id"`
	TypeKey          string `json:"type_key,omitempty"` // joined from field_types where selected
	Code             string `json:"code"`
	Label            string `json:"label"`
	HelpText         string `json:"help_text,omitempty"`
	Position         int    `json:"position"`
	Required         bool   `json:"required"`
	ReadOnly         bool   `json:"read_only"`
	Placeholder      string `json:"placeholder,omitempty"`
	DefaultValue     string `json:"default_value,omitempty"`
	ValidationSchema string `json:"validation_schema,omitempty"`
	VisibleByDefault bool   `json:"visible_by_default"`
}

// OptionSet is one row of the option_sets table.
type OptionSet struct {
	ID     string `json:"id"`
	FormID string `json:"form_id"`
	Name   string `json:"name"`
}

// OptionItem is one row of the option_items table. Items are soft-deleted
// by clearing IsActive, never removed.
type OptionItem struct {
	ID          string `json:"id"`
	OptionSetID string `json:"option_set_id"`
	Value       string `json:"value"`
	Label       string `json:"label"`
	Position    int    `json:"position"`
	IsActive    bool   `json:"is_active"`
}

// LogicRule is one row of the logic_rules table.
type LogicRule struct {
	ID       string `json:"id"`
	FormID   string `json:"form_id"`
	Name     string `json:"name"`
	Trigger  string `json:"trigger"`
	Scope    string `json:"scope"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

// LogicCondition is one row of the logic_conditions table. LHSRef is the
// JSON-encoded reference payload as stored.
type LogicCondition struct {
	ID       string `json:"id"`
	RuleID   string `json:"rule_id"`
	LHSRef   string `json:"lhs_ref"`
	Operator string `json:"operator"`
	RHS      string `json:"rhs"`
	BoolJoin string `json:"bool_join"`
	Position int    `json:"position"`
}

// LogicAction is one row of the logic_actions table.
type LogicAction struct {
	ID        string `json:"id"`
	RuleID    string `json:"rule_id"`
	Action    string `json:"action"`
	TargetRef string `json:"target_ref"`
	Params    string `json:"params,omitempty"`
	Position  int    `json:"position"`
}

// Column describes one column of a table, as captured for the schema
// snapshot. HasDefault is true when the store supplies a value for omitted
// columns.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	HasDefault bool   `json:"has_default"`
	PrimaryKey bool   `json:"primary_key"`
}

// Table describes one table of the store.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// FormStructure is a denormalized snapshot of one form, used for CLI
// inspection and before/after reporting around a change-set.
type FormStructure struct {
	Form       Form                    `json:"form"`
	Pages      []Page                  `json:"pages"`
	Fields     []Field                 `json:"fields"`
	Options    map[string][]OptionItem `json:"options_by_field"`
	Rules      []LogicRule             `json:"logic_rules"`
	Conditions []LogicCondition        `json:"logic_conditions"`
	Actions    []LogicAction           `json:"logic_actions"`
}

// Reader is the read-only store surface the resolver and validators depend
// on. Every method is a suspension point; implementations must honor ctx.
type Reader interface {
	// ListForms returns all forms ordered by title.
	ListForms(ctx context.Context) ([]Form, error)

	// FindFormsByName returns forms whose title or slug contains the given
	// substring.
	FindFormsByName(ctx context.Context, nameOrCode string) ([]Form, error)

	// FieldByCode returns the field with exactly this code on the form, or
	// nil when absent.
	FieldByCode(ctx context.Context, formID, code string) (*Field, error)

	// FindFieldsByCode returns fields on the form whose code contains the
	// given substring, ordered by position.
	FindFieldsByCode(ctx context.Context, formID, code string) ([]Field, error)

	// FindFieldsByLabel returns fields on the form whose label or code
	// contains the given substring, ordered by position.
	FindFieldsByLabel(ctx context.Context, formID, labelOrCode string) ([]Field, error)

	// ListFields returns all fields of a form ordered by page and position.
	ListFields(ctx context.Context, formID string) ([]Field, error)

	// FieldsOnPage returns the fields of one page ordered by position.
	FieldsOnPage(ctx context.Context, formID, pageID string) ([]Field, error)

	// PagesForForm returns the pages of a form ordered by position.
	PagesForForm(ctx context.Context, formID string) ([]Page, error)

	// FieldTypeByKey returns the field type with this key, or nil.
	FieldTypeByKey(ctx context.Context, key string) (*FieldType, error)

	// OptionSetForField returns the option set bound to the field, or nil
	// when the field has none yet.
	OptionSetForField(ctx context.Context, fieldID string) (*OptionSet, error)

	// OptionItemsForField returns the items of the field's option set
	// ordered by position. Inactive items are included.
	OptionItemsForField(ctx context.Context, fieldID string) ([]OptionItem, error)

	// LogicRulesForForm returns the rules of a form ordered by priority.
	LogicRulesForForm(ctx context.Context, formID string) ([]LogicRule, error)

	// ConditionsForRule returns a rule's conditions ordered by position.
	ConditionsForRule(ctx context.Context, ruleID string) ([]LogicCondition, error)

	// ActionsForRule returns a rule's actions ordered by position.
	ActionsForRule(ctx context.Context, ruleID string) ([]LogicAction, error)

	// Tables returns column metadata for every table in the store.
	Tables(ctx context.Context) ([]Table, error)

	// TableIDs returns the set of primary identifiers present in a table.
	// Tables without an id column yield an empty set.
	TableIDs(ctx context.Context, table string) (map[string]struct{}, error)

	// FormStructure returns the denormalized snapshot of one form, or nil
	// when the form does not exist.
	FormStructure(ctx context.Context, formID string) (*FormStructure, error)
}
