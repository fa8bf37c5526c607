package validate

import (
	"errors"
	"fmt"
	"strings"
)

// Validation error codes (V100-V199).
const (
	// Structural errors (V100-V109)
	ErrDanglingPlaceholder  = "V100" // placeholder references no staged insert
	ErrPlaceholderWrongKind = "V101" // placeholder staged under a different table
	ErrDuplicatePlaceholder = "V102" // two inserts claim the same placeholder
	ErrPlaceholderMutation  = "V103" // update or delete targets an unstaged placeholder
	ErrMissingRowID         = "V104" // update or delete row without an id

	// Semantic errors (V110-V119)
	ErrUnknownTable         = "V110" // table absent from the schema snapshot
	ErrMissingRequiredValue = "V111" // insert omits a required column
	ErrUnknownColumn        = "V112" // row supplies a column the table lacks
	ErrTargetRowAbsent      = "V113" // update or delete id not in the store
)

// ValidationError is one finding against a staged row.
type ValidationError struct {
	Table   string `json:"table"`
	Op      string `json:"op"`
	Index   int    `json:"index"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s.%s[%d]: %s", e.Code, e.Table, e.Op, e.Index, e.Message)
}

// StructureError aggregates every structural finding of one pass.
type StructureError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *StructureError) Error() string {
	return fmt.Sprintf("change-set failed structural validation: %s", joinFindings(e.Errors))
}

// SemanticError aggregates every semantic finding of one pass.
type SemanticError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *SemanticError) Error() string {
	return fmt.Sprintf("change-set failed semantic validation: %s", joinFindings(e.Errors))
}

// AsStructureError unwraps err into a StructureError if it is one.
func AsStructureError(err error) (*StructureError, bool) {
	var se *StructureError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// AsSemanticError unwraps err into a SemanticError if it is one.
func AsSemanticError(err error) (*SemanticError, bool) {
	var se *SemanticError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func joinFindings(errs []ValidationError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}
