// Package schema provides an explicit, read-only snapshot of table and
// column metadata. The caller captures a snapshot and passes it into the
// validators; nothing here is cached globally or mutated after capture,
// and refresh cadence is entirely the caller's decision.
package schema

import (
	"context"

	"github.com/formweave/formweave/internal/store"
)

// Snapshot is an immutable view of the store's table metadata.
type Snapshot struct {
	tables []store.Table
	byName map[string]*store.Table
}

// Capture reads table metadata from the store and freezes it.
func Capture(ctx context.Context, r store.Reader) (*Snapshot, error) {
	tables, err := r.Tables(ctx)
	if err != nil {
		return nil, err
	}
	return New(tables), nil
}

// New builds a snapshot from already-fetched metadata. Used by tests and
// by callers that introspect out of band.
func New(tables []store.Table) *Snapshot {
	s := &Snapshot{
		tables: tables,
		byName: make(map[string]*store.Table, len(tables)),
	}
	for i := range s.tables {
		s.byName[s.tables[i].Name] = &s.tables[i]
	}
	return s
}

// Tables returns the captured tables in store order.
func (s *Snapshot) Tables() []store.Table {
	return s.tables
}

// Table returns the metadata for one table.
func (s *Snapshot) Table(name string) (*store.Table, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// RequiredColumns returns the columns an insert row must supply: not
// nullable, not part of the primary key, and without a store default.
func (s *Snapshot) RequiredColumns(table string) []string {
	t, ok := s.byName[table]
	if !ok {
		return nil
	}
	var required []string
	for _, col := range t.Columns {
		if col.PrimaryKey || !col.NotNull || col.HasDefault {
			continue
		}
		required = append(required, col.Name)
	}
	return required
}

// HasIDColumn reports whether the table carries an "id" column. Tables
// without one (pure join tables) are exempt from row-identity checks.
func (s *Snapshot) HasIDColumn(table string) bool {
	t, ok := s.byName[table]
	if !ok {
		return false
	}
	for _, col := range t.Columns {
		if col.Name == "id" {
			return true
		}
	}
	return false
}
