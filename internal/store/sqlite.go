package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is the default Reader backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

var _ Reader = (*SQLite)(nil)

// Open creates or opens a SQLite database at the given path and applies
// the embedded schema. Idempotent: safe to call on an existing database.
//
// The connection is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; the committer shares this
	// file, so keep a single connection to avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB. Intended for seeding in tests and for
// the committer; the resolver path never writes through it.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// ListForms implements Reader.
func (s *SQLite) ListForms(ctx context.Context) ([]Form, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, title, COALESCE(description, ''), status
		FROM forms
		ORDER BY title, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query forms: %w", err)
	}
	defer rows.Close()
	return scanForms(rows)
}

// FindFormsByName implements Reader.
func (s *SQLite) FindFormsByName(ctx context.Context, nameOrCode string) ([]Form, error) {
	pattern := "%" + nameOrCode + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, title, COALESCE(description, ''), status
		FROM forms
		WHERE title LIKE ? OR slug LIKE ?
		ORDER BY title, id
	`, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("find forms by name: %w", err)
	}
	defer rows.Close()
	return scanForms(rows)
}

const fieldColumns = `
	id, form_id, page_id, type_id, code, label,
	COALESCE(help_text, ''), position, required, read_only,
	COALESCE(placeholder, ''), COALESCE(default_value, ''),
	COALESCE(validation_schema, ''), visible_by_default
`

// FieldByCode implements Reader.
func (s *SQLite) FieldByCode(ctx context.Context, formID, code string) (*Field, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fieldColumns+`
		FROM form_fields
		WHERE form_id = ? AND code = ?
	`, formID, code)
	if err != nil {
		return nil, fmt.Errorf("field by code: %w", err)
	}
	defer rows.Close()

	fields, err := scanFields(rows)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return &fields[0], nil
}

// FindFieldsByCode implements Reader.
func (s *SQLite) FindFieldsByCode(ctx context.Context, formID, code string) ([]Field, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fieldColumns+`
		FROM form_fields
		WHERE form_id = ? AND code LIKE ?
		ORDER BY position, id
	`, formID, "%"+code+"%")
	if err != nil {
		return nil, fmt.Errorf("find fields by code: %w", err)
	}
	defer rows.Close()
	return scanFields(rows)
}

// FindFieldsByLabel implements Reader.
func (s *SQLite) FindFieldsByLabel(ctx context.Context, formID, labelOrCode string) ([]Field, error) {
	pattern := "%" + labelOrCode + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fieldColumns+`
		FROM form_fields
		WHERE form_id = ? AND (label LIKE ? OR code LIKE ?)
		ORDER BY position, id
	`, formID, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("find fields by label: %w", err)
	}
	defer rows.Close()
	return scanFields(rows)
}

// ListFields implements Reader.
func (s *SQLite) ListFields(ctx context.Context, formID string) ([]Field, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fieldColumns+`
		FROM form_fields
		WHERE form_id = ?
		ORDER BY page_id, position, id
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer rows.Close()
	return scanFields(rows)
}

// FieldsOnPage implements Reader.
func (s *SQLite) FieldsOnPage(ctx context.Context, formID, pageID string) ([]Field, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fieldColumns+`
		FROM form_fields
		WHERE form_id = ? AND page_id = ?
		ORDER BY position, id
	`, formID, pageID)
	if err != nil {
		return nil, fmt.Errorf("fields on page: %w", err)
	}
	defer rows.Close()
	return scanFields(rows)
}

// PagesForForm implements Reader.
func (s *SQLite) PagesForForm(ctx context.Context, formID string) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, form_id, position, COALESCE(title, '')
		FROM form_pages
		WHERE form_id = ?
		ORDER BY position, id
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("pages for form: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.ID, &p.FormID, &p.Position, &p.Title); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// FieldTypeByKey implements Reader.
func (s *SQLite) FieldTypeByKey(ctx context.Context, key string) (*FieldType, error) {
	var ft FieldType
	err := s.db.QueryRowContext(ctx, `
		SELECT id, key, label FROM field_types WHERE key = ?
	`, key).Scan(&ft.ID, &ft.Key, &ft.Label)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("field type by key: %w", err)
	}
	return &ft, nil
}

// OptionSetForField implements Reader.
func (s *SQLite) OptionSetForField(ctx context.Context, fieldID string) (*OptionSet, error) {
	var os OptionSet
	err := s.db.QueryRowContext(ctx, `
		SELECT os.id, os.form_id, os.name
		FROM option_sets os
		JOIN field_option_binding b ON b.option_set_id = os.id
		WHERE b.field_id = ?
	`, fieldID).Scan(&os.ID, &os.FormID, &os.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("option set for field: %w", err)
	}
	return &os, nil
}

// OptionItemsForField implements Reader.
func (s *SQLite) OptionItemsForField(ctx context.Context, fieldID string) ([]OptionItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT oi.id, oi.option_set_id, oi.value, oi.label, oi.position, oi.is_active
		FROM option_items oi
		JOIN field_option_binding b ON b.option_set_id = oi.option_set_id
		WHERE b.field_id = ?
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
func (s *SQLite) LogicRulesForForm(ctx context.Context, formID string) ([]LogicRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, form_id, name, "trigger", scope, priority, enabled
		FROM logic_rules
		WHERE form_id = ?
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
func (s *SQLite) ConditionsForRule(ctx context.Context, ruleID string) ([]LogicCondition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_id, lhs_ref, operator, COALESCE(rhs, ''), bool_join, COALESCE(position, 0)
		FROM logic_conditions
		WHERE rule_id = ?
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
func (s *SQLite) ActionsForRule(ctx context.Context, ruleID string) ([]LogicAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_id, action, target_ref, COALESCE(params, ''), COALESCE(position, 0)
		FROM logic_actions
		WHERE rule_id = ?
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

// Tables implements Reader using sqlite_master and PRAGMA table_info.
func (s *SQLite) Tables(ctx context.Context) ([]Table, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		cols, err := s.tableColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, Table{Name: name, Columns: cols})
	}
	return tables, nil
}

// tableColumns reads PRAGMA table_info for one table.
func (s *SQLite) tableColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, Column{
			Name:       name,
			Type:       ctype,
			NotNull:    notNull != 0,
			HasDefault: dflt.Valid,
			PrimaryKey: pk != 0,
		})
	}
	return cols, rows.Err()
}

// TableIDs implements Reader. The name is only interpolated after
// table_info confirmed an id column, so unknown tables yield an empty
// set instead of a syntax error.
func (s *SQLite) TableIDs(ctx context.Context, table string) (map[string]struct{}, error) {
	cols, err := s.tableColumns(ctx, table)
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
	if !hasID {
		return ids, nil
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %q", table))
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
func (s *SQLite) FormStructure(ctx context.Context, formID string) (*FormStructure, error) {
	var f Form
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, title, COALESCE(description, ''), status
		FROM forms WHERE id = ?
	`, formID).Scan(&f.ID, &f.Slug, &f.Title, &f.Description, &f.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("form structure: %w", err)
	}

	pages, err := s.PagesForForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	fields, err := s.ListFields(ctx, formID)
	if err != nil {
		return nil, err
	}

	options := make(map[string][]OptionItem, len(fields))
	for _, fld := range fields {
		items, err := s.OptionItemsForField(ctx, fld.ID)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			options[fld.ID] = items
		}
	}

	rules, err := s.LogicRulesForForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	var conds []LogicCondition
	var acts []LogicAction
	for _, rule := range rules {
		rc, err := s.ConditionsForRule(ctx, rule.ID)
		if err != nil {
			return nil, err
		}
		conds = append(conds, rc...)
		ra, err := s.ActionsForRule(ctx, rule.ID)
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

// scanForms reads forms in (id, slug, title, description, status) order.
func scanForms(rows *sql.Rows) ([]Form, error) {
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

// scanFields reads fields in fieldColumns order.
func scanFields(rows *sql.Rows) ([]Field, error) {
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
