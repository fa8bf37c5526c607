package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a Reader backed by a Postgres database, for deployments
// where the form tables live in a shared instance. Schema metadata comes
// from information_schema.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Reader = (*Postgres)(nil)

// Connect opens a pgx connection pool for the given DSN. The caller owns
// the schema; no DDL is applied here.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// ListForms implements Reader.
func (p *Postgres) ListForms(ctx context.Context) ([]Form, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, slug, title, COALESCE(description, ''), status
		FROM forms
		ORDER BY title, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query forms: %w", err)
	}
	defer rows.Close()
	return collectForms(rows)
}

// FindFormsByName implements Reader.
func (p *Postgres) FindFormsByName(ctx context.Context, nameOrCode string) ([]Form, error) {
	pattern := "%" + nameOrCode + "%"
	rows, err := p.pool.Query(ctx, `
		SELECT id, slug, title, COALESCE(description, ''), status
		FROM forms
		WHERE title LIKE $1 OR slug LIKE $1
		ORDER BY title, id
	`, pattern)
	if err != nil {
		return nil, fmt.Errorf("find forms by name: %w", err)
	}
	defer rows.Close()
	return collectForms(rows)
}

const pgFieldColumns = `
	id, form_id, page_id, type_id, code, label,
	COALESCE(help_text, ''), position, required, read_only,
	COALESCE(placeholder, ''), COALESCE(default_value, ''),
	COALESCE(validation_schema, ''), visible_by_default
`

// FieldByCode implements Reader.
func (p *Postgres) FieldByCode(ctx context.Context, formID, code string) (*Field, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+pgFieldColumns+`
		FROM form_fields
		WHERE form_id = $1 AND code = $2
	`, formID, code)
	if err != nil {
		return nil, fmt.Errorf("field by code: %w", err)
	}
	defer rows.Close()

	fields, err := collectFields(rows)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return &fields[0], nil
}

// FindFieldsByCode implements Reader.
func (p *Postgres) FindFieldsByCode(ctx context.Context, formID, code string) ([]Field, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+pgFieldColumns+`
		FROM form_fields
		WHERE form_id = $1 AND code LIKE $2
		ORDER BY position, id
	`, formID, "%"+code+"%")
	if err != nil {
		return nil, fmt.Errorf("find fields by code: %w", err)
	}
	defer rows.Close()
	return collectFields(rows)
}

// FindFieldsByLabel implements Reader.
func (p *Postgres) FindFieldsByLabel(ctx context.Context, formID, labelOrCode string) ([]Field, error) {
	pattern := "%" + labelOrCode + "%"
	rows, err := p.pool.Query(ctx, `
		SELECT `+pgFieldColumns+`
		FROM form_fields
		WHERE form_id = $1 AND (label LIKE $2 OR code LIKE $2)
		ORDER BY position, id
	`, formID, pattern)
	if err != nil {
		return nil, fmt.Errorf("find fields by label: %w", err)
	}
	defer rows.Close()
	return collectFields(rows)
}

// ListFields implements Reader.
func (p *Postgres) ListFields(ctx context.Context, formID string) ([]Field, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+pgFieldColumns+`
		FROM form_fields
		WHERE form_id = $1
		ORDER BY page_id, position, id
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer rows.Close()
	return collectFields(rows)
}

// FieldsOnPage implements Reader.
func (p *Postgres) FieldsOnPage(ctx context.Context, formID, pageID string) ([]Field, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+pgFieldColumns+`
		FROM form_fields
		WHERE form_id = $1 AND page_id = $2
		ORDER BY position, id
	`, formID, pageID)
	if err != nil {
		return nil, fmt.Errorf("fields on page: %w", err)
	}
	defer rows.Close()
	return collectFields(rows)
}

// PagesForForm implements Reader.
func (p *Postgres) PagesForForm(ctx context.Context, formID string) ([]Page, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, form_id, position, COALESCE(title, '')
		FROM form_pages
		WHERE form_id = $1
		ORDER BY position, id
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("pages for form: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var pg Page
		if err := rows.Scan(&pg.ID, &pg.FormID, &pg.Position, &pg.Title); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, pg)
	}
	return pages, rows.Err()
}

// FieldTypeByKey implements Reader.
func (p *Postgres) FieldTypeByKey(ctx context.Context, key string) (*FieldType, error) {
	var ft FieldType
	err := p.pool.QueryRow(ctx, `
		SELECT id, key, label FROM field_types WHERE key = $1
	`, key).Scan(&ft.ID, &ft.Key, &ft.Label)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("field type by key: %w", err)
	}
	return &ft, nil
}

// OptionSetForField implements Reader.
func (p *Postgres) OptionSetForField(ctx context.Context, fieldID string) (*OptionSet, error) {
	var os OptionSet
	err := p.pool.QueryRow(ctx, `
		SELECT os.id, os.form_id, os.name
		FROM option_sets os
		JOIN field_option_binding b ON b.option_set_id = os.id
		WHERE b.field_id = $1
	`, fieldID).Scan(&os.ID, &os.FormID, &os.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("option set for field: %w", err)
	}
	return &os, nil
}

// OptionItemsForField implements Reader.
func (p *Postgres) OptionItemsForField(ctx context.Context, fieldID string) ([]OptionItem, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT oi.id, oi.option_set_id, oi.value, oi.label, oi.position, oi.is_active
		FROM option_items oi
		JOIN field_option_binding b ON b.option_set_id = oi.option_set_id
		WHERE b.field_id = $1
		ORDER BY oi.position, oi.id
	`, fieldID)
	if err != nil {
		return nil, fmt.Errorf("option items for field: %w", err)
	}
	defer rows.Close()

	var items []OptionItem
	for rows.Next() {
		var it OptionItem
		if err := rows.Scan(&it.ID, &it.OptionSetID, &it.Value, &it.Label, &it.Position, &it.IsActive); err != nil {
			return nil, fmt.Errorf("scan option item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// LogicRulesForForm implements Reader.
func (p *Postgres) LogicRulesForForm(ctx context.Context, formID string) ([]LogicRule, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, form_id, name, "trigger", scope, priority, enabled
		FROM logic_rules
		WHERE form_id = $1
		ORDER BY priority, id
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("logic rules for form: %w", err)
	}
	defer rows.Close()

	var rules []LogicRule
	for rows.Next() {
		var r LogicRule
		if err := rows.Scan(&r.ID, &r.FormID, &r.Name, &r.Trigger, &r.Scope, &r.Priority, &r.Enabled); err != nil {
			return nil, fmt.Errorf("scan logic rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// ConditionsForRule implements Reader.
func (p *Postgres) ConditionsForRule(ctx context.Context, ruleID string) ([]LogicCondition, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, rule_id, lhs_ref, operator, COALESCE(rhs, ''), bool_join, COALESCE(position, 0)
		FROM logic_conditions
		WHERE rule_id = $1
		ORDER BY position, id
	`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("conditions for rule: %w", err)
	}
	defer rows.Close()

	var conds []LogicCondition
	for rows.Next() {
		var c LogicCondition
		if err := rows.Scan(&c.ID, &c.RuleID, &c.LHSRef, &c.Operator, &c.RHS, &c.BoolJoin, &c.Position); err != nil {
			return nil, fmt.Errorf("scan logic condition: %w", err)
		}
		conds = append(conds, c)
	}
	return conds, rows.Err()
}

// ActionsForRule implements Reader.
func (p *Postgres) ActionsForRule(ctx context.Context, ruleID string) ([]LogicAction, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, rule_id, action, target_ref, COALESCE(params, ''), COALESCE(position, 0)
		FROM logic_actions
		WHERE rule_id = $1
		ORDER BY position, id
	`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("actions for rule: %w", err)
	}
	defer rows.Close()

	var acts []LogicAction
	for rows.Next() {
		var a LogicAction
		if err := rows.Scan(&a.ID, &a.RuleID, &a.Action, &a.TargetRef, &a.Params, &a.Position); err != nil {
			return nil, fmt.Errorf("scan logic action: %w", err)
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

// Tables implements Reader via information_schema.
func (p *Postgres) Tables(ctx context.Context) ([]Table, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating table rows: %w", err)
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		cols, err := p.tableColumns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("getting columns for table %s: %w", name, err)
		}
		tables = append(tables, Table{Name: name, Columns: cols})
	}
	return tables, nil
}

// tableColumns reads information_schema.columns plus primary key
// membership from key_column_usage.
func (p *Postgres) tableColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'NO',
			c.column_default IS NOT NULL,
			EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON kcu.constraint_name = tc.constraint_name
					AND kcu.table_name = tc.table_name
				WHERE tc.table_name = c.table_name
					AND tc.constraint_type = 'PRIMARY KEY'
					AND kcu.column_name = c.column_name
			)
		FROM information_schema.columns c
		WHERE c.table_schema = 'public' AND c.table_name = $1
		ORDER BY c.ordinal_position
	`, table)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.Type, &col.NotNull, &col.HasDefault, &col.PrimaryKey); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// TableIDs implements Reader. The table name is verified against
// information_schema before interpolation.
func (p *Postgres) TableIDs(ctx context.Context, table string) (map[string]struct{}, error) {
	cols, err := p.tableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	hasID := false
	for _, c := range cols {
		if c.Name == "id" {
			hasID = true
			break
		}
	}
	ids := make(map[string]struct{})
	if !hasID || len(cols) == 0 {
		return ids, nil
	}

	rows, err := p.pool.Query(ctx, fmt.Sprintf(`SELECT id FROM %s`, pgx.Identifier{table}.Sanitize()))
	if err != nil {
		return nil, fmt.Errorf("table ids %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// FormStructure implements Reader.
func (p *Postgres) FormStructure(ctx context.Context, formID string) (*FormStructure, error) {
	var f Form
	err := p.pool.QueryRow(ctx, `
		SELECT id, slug, title, COALESCE(description, ''), status
		FROM forms WHERE id = $1
	`, formID).Scan(&f.ID, &f.Slug, &f.Title, &f.Description, &f.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("form structure: %w", err)
	}

	pages, err := p.PagesForForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	fields, err := p.ListFields(ctx, formID)
	if err != nil {
		return nil, err
	}

	options := make(map[string][]OptionItem, len(fields))
	for _, fld := range fields {
		items, err := p.OptionItemsForField(ctx, fld.ID)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			options[fld.ID] = items
		}
	}

	rules, err := p.LogicRulesForForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	var conds []LogicCondition
	var acts []LogicAction
	for _, rule := range rules {
		rc, err := p.ConditionsForRule(ctx, rule.ID)
		if err != nil {
			return nil, err
		}
		conds = append(conds, rc...)
		ra, err := p.ActionsForRule(ctx, rule.ID)
		if err != nil {
			return nil, err
		}
		acts = append(acts, ra...)
	}

	return &FormStructure{
		Form:       f,
		Pages:      pages,
		Fields:     fields,
		Options:    options,
		Rules:      rules,
		Conditions: conds,
		Actions:    acts,
	}, nil
}

// collectForms reads forms in (id, slug, title, description, status) order.
func collectForms(rows pgx.Rows) ([]Form, error) {
	var forms []Form
	for rows.Next() {
		var f Form
		if err := rows.Scan(&f.ID, &f.Slug, &f.Title, &f.Description, &f.Status); err != nil {
			return nil, fmt.Errorf("scan form: %w", err)
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

// collectFields reads fields in pgFieldColumns order.
func collectFields(rows pgx.Rows) ([]Field, error) {
	var fields []Field
	for rows.Next() {
		var f Field
		if err := rows.Scan(
			&f.ID, &f.FormID, &f.PageID, &f.TypeID, &f.Code, &f.Label,
			&f.HelpText, &f.Position, &f.Required, &f.ReadOnly,
			&f.Placeholder, &f.DefaultValue, &f.ValidationSchema, &f.VisibleByDefault,
		); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}
