// Package plan loads intent plans from YAML or JSON and validates them
// against an embedded CUE schema before they reach the resolver. Schema
// rejection happens at intake so the resolver only ever sees well-formed
// plans.
package plan

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/formweave/formweave/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// SchemaError is a plan intake failure with source position when the CUE
// evaluator can supply one.
type SchemaError struct {
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Load reads a plan file, validates it, and decodes it. The extension
// picks the codec: .yaml and .yml go through the YAML parser, everything
// else is treated as JSON.
func Load(path string) (*ir.IntentPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return Parse(data)
	}
}

// ParseYAML validates and decodes a YAML-encoded plan.
func ParseYAML(data []byte) (*ir.IntentPlan, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse plan yaml: %w", err)
	}
	jsonData, err := json.Marshal(normalizeYAML(doc))
	if err != nil {
		return nil, fmt.Errorf("convert plan yaml: %w", err)
	}
	return Parse(jsonData)
}

// Parse validates and decodes a JSON-encoded plan.
func Parse(data []byte) (*ir.IntentPlan, error) {
	if err := checkSchema(data); err != nil {
		return nil, err
	}
	var p ir.IntentPlan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &p, nil
}

// checkSchema unifies the document with the embedded schema and reports
// the first violation with its position.
func checkSchema(jsonData []byte) error {
	ctx := cuecontext.New()

	compiled := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := compiled.Err(); err != nil {
		return formatCUEError(err)
	}
	schema := compiled.LookupPath(cue.ParsePath("#Plan"))
	if err := schema.Err(); err != nil {
		return formatCUEError(err)
	}

	doc := ctx.CompileBytes(jsonData, cue.Filename("plan.json"))
	if err := doc.Err(); err != nil {
		return formatCUEError(err)
	}

	unified := schema.Unify(doc)
	if err := unified.Err(); err != nil {
		return formatCUEError(err)
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// normalizeYAML rewrites the map[any]any trees older YAML documents decode
// into so they survive json.Marshal.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &SchemaError{Message: first.Error(), Pos: positions[0]}
	}
	return &SchemaError{Message: first.Error()}
}
