// Package ir provides the canonical types shared by every other internal
// package: intent plans, change-sets, placeholders, and field references.
//
// This package contains type definitions and small helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps ir
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - All JSON tags use snake_case
//   - A placeholder is a typed value (ir.Placeholder), never a bare string;
//     validators type-switch on it instead of parsing prefixes. On the wire
//     it still serializes to the reserved "$kind_suffix" syntax so the
//     committer can recognize it without parsing JSON structure.
//   - Field references inside logic payloads are parsed once at intake into
//     FieldRef; downstream code never re-parses JSON-encoded reference
//     strings.
package ir
