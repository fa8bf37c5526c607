package resolver

import (
	"errors"
	"fmt"

	"github.com/formweave/formweave/internal/ir"
)

// BudgetGuard caps the total number of mutated rows in one change-set.
//
// The guard runs after every handler has staged its rows. When the ceiling
// is exceeded the whole change-set is withheld; there is never a partial
// result.
type BudgetGuard struct {
	maxRows int
}

// NewBudgetGuard creates a guard with the given ceiling.
// Typical default: 100 (configurable via WithMaxRows on the builder).
func NewBudgetGuard(maxRows int) *BudgetGuard {
	return &BudgetGuard{maxRows: maxRows}
}

// Check sums insert, update, and delete rows across every table and
// returns RowBudgetError if the total exceeds the ceiling.
func (g *BudgetGuard) Check(cs ir.ChangeSet) error {
	total := cs.RowCount()
	if total > g.maxRows {
		return &RowBudgetError{Rows: total, Limit: g.maxRows}
	}
	return nil
}

// MaxRows returns the configured ceiling. Used for diagnostics.
func (g *BudgetGuard) MaxRows() int {
	return g.maxRows
}

// RowBudgetError is returned when a change-set exceeds the row ceiling.
// This error is fatal for the request; no change-set is returned.
type RowBudgetError struct {
	Rows  int // Rows the change-set would mutate
	Limit int // Configured ceiling
}

// Error implements the error interface.
func (e *RowBudgetError) Error() string {
	return fmt.Sprintf("planned %d row changes which exceeds limit %d", e.Rows, e.Limit)
}

// IsRowBudgetExceeded reports whether err is a RowBudgetError.
// Uses errors.As to handle wrapped errors.
func IsRowBudgetExceeded(err error) bool {
	var be *RowBudgetError
	return errors.As(err, &be)
}
