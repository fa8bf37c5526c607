package resolver

import (
	"errors"
	"fmt"

	"github.com/formweave/formweave/internal/ir"
)

// ClarificationCode categorizes recoverable resolution failures. These are
// surfaced to the request originator as disambiguation requests carrying
// the candidate list; the resolver never silently guesses.
type ClarificationCode string

const (
	// CodeFormNotFound indicates no form matched the given name or code.
	CodeFormNotFound ClarificationCode = "FORM_NOT_FOUND"

	// CodeFormAmbiguous indicates more than one form matched.
	CodeFormAmbiguous ClarificationCode = "FORM_AMBIGUOUS"

	// CodeFieldNotFound indicates no field matched on the target form.
	CodeFieldNotFound ClarificationCode = "FIELD_NOT_FOUND"

	// CodeFieldAmbiguous indicates more than one field matched.
	CodeFieldAmbiguous ClarificationCode = "FIELD_AMBIGUOUS"
)

// FormCandidate is one disambiguation choice for a form reference.
type FormCandidate struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// FieldCandidate is one disambiguation choice for a field reference.
type FieldCandidate struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Code  string `json:"code"`
}

// ClarificationError is a recoverable resolution failure. The caller is
// expected to relay Message and the candidates back to the originator and
// retry with a disambiguated plan.
type ClarificationError struct {
	Code            ClarificationCode `json:"code"`
	Message         string            `json:"message"`
	FormCandidates  []FormCandidate   `json:"form_candidates,omitempty"`
	FieldCandidates []FieldCandidate  `json:"field_candidates,omitempty"`
}

// Error implements the error interface.
func (e *ClarificationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsClarification unwraps err into a ClarificationError if it is one.
func AsClarification(err error) (*ClarificationError, bool) {
	var ce *ClarificationError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsClarification reports whether err is a recoverable disambiguation
// request rather than a fatal resolution failure.
func IsClarification(err error) bool {
	_, ok := AsClarification(err)
	return ok
}

// UnknownFieldTypeError is fatal: the requested field type key does not
// exist in the store.
type UnknownFieldTypeError struct {
	Key string
}

// Error implements the error interface.
func (e *UnknownFieldTypeError) Error() string {
	return fmt.Sprintf("unknown field type key %q", e.Key)
}

// MissingFieldReferenceError is fatal: a logic condition or action
// references a field that resolves to nothing in the batch or the store.
type MissingFieldReferenceError struct {
	Ref ir.FieldRef
}

// Error implements the error interface.
func (e *MissingFieldReferenceError) Error() string {
	switch {
	case e.Ref.FieldID != "":
		return fmt.Sprintf("logic reference names unknown field id %q", e.Ref.FieldID)
	case e.Ref.FieldCode != "":
		return fmt.Sprintf("logic reference names unknown field code %q", e.Ref.FieldCode)
	default:
		return "logic reference names no field at all"
	}
}

// RuleNotFoundError is returned when a logic update or delete cannot
// locate its rule by id or exact name.
type RuleNotFoundError struct {
	RuleID string
	Name   string
}

// Error implements the error interface.
func (e *RuleNotFoundError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("no logic rule with id %q on the target form", e.RuleID)
	}
	return fmt.Sprintf("no logic rule named %q on the target form", e.Name)
}

// DuplicateFieldError is returned by the fail branch of the duplicate
// field policy when an insert targets a field that already resolves.
type DuplicateFieldError struct {
	Code  string
	Label string
}

// Error implements the error interface.
func (e *DuplicateFieldError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("field with code %q already exists on the target form", e.Code)
	}
	return fmt.Sprintf("field labeled %q already exists on the target form", e.Label)
}

// IsRuleNotFound reports whether err is a RuleNotFoundError.
func IsRuleNotFound(err error) bool {
	var re *RuleNotFoundError
	return errors.As(err, &re)
}

// IsUnknownFieldType reports whether err is an UnknownFieldTypeError.
func IsUnknownFieldType(err error) bool {
	var ue *UnknownFieldTypeError
	return errors.As(err, &ue)
}

// IsMissingFieldReference reports whether err is a
// MissingFieldReferenceError.
func IsMissingFieldReference(err error) bool {
	var me *MissingFieldReferenceError
	return errors.As(err, &me)
}
