package ir

import (
	"encoding/json"
	"fmt"
)

// RefTypeField is the only reference type carried by logic payloads today.
const RefTypeField = "field"

// FieldRef is a structured pointer to a form field inside a logic
// condition or action payload. The planner supplies it by field code;
// the logic reference resolver rewrites it to a concrete or placeholder
// field identifier before the row is staged.
type FieldRef struct {
	Type      string `json:"type" yaml:"type"`
	FieldID   string `json:"field_id,omitempty" yaml:"field_id,omitempty"`
	FieldCode string `json:"field_code,omitempty" yaml:"field_code,omitempty"`
	Property  string `json:"property,omitempty" yaml:"property,omitempty"`
}

// IsZero reports whether the reference carries no target at all.
func (r FieldRef) IsZero() bool {
	return r.FieldID == "" && r.FieldCode == ""
}

// Encode renders the reference as the compact JSON string stored in
// logic_conditions.lhs_ref and logic_actions.target_ref columns.
func (r FieldRef) Encode() (string, error) {
	if r.Type == "" {
		r.Type = RefTypeField
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode field ref: %w", err)
	}
	return string(b), nil
}

// ParseFieldRef parses a JSON-encoded reference payload. It exists for
// intake of planner output that still carries string-encoded references;
// everything downstream works with the parsed form.
func ParseFieldRef(s string) (FieldRef, error) {
	var r FieldRef
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return FieldRef{}, fmt.Errorf("parse field ref %q: %w", s, err)
	}
	if r.Type == "" {
		r.Type = RefTypeField
	}
	return r, nil
}
