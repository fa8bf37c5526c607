package resolver

import (
	"context"

	"go.uber.org/zap"

	"github.com/formweave/formweave/internal/ir"
	"github.com/formweave/formweave/internal/schema"
	"github.com/formweave/formweave/internal/store"
	"github.com/formweave/formweave/internal/validate"
)

// Defaults for builder configuration.
const (
	DefaultMaxRows  = 100
	DefaultPriority = 100
)

// DuplicateFieldPolicy decides what a field insert does when the target
// field already resolves to an existing or staged field.
type DuplicateFieldPolicy string

const (
	// DuplicateFieldSkip treats the insert as a no-op, so re-applying the
	// same plan is idempotent. This is the default.
	DuplicateFieldSkip DuplicateFieldPolicy = "skip"

	// DuplicateFieldFail rejects the insert with DuplicateFieldError.
	DuplicateFieldFail DuplicateFieldPolicy = "fail"
)

// Builder stages intent plans into change-sets against a read-only store.
type Builder struct {
	reader    store.Reader
	alloc     ir.Allocator
	log       *zap.Logger
	maxRows   int
	dupPolicy DuplicateFieldPolicy
}

// Option configures a Builder.
type Option func(*Builder)

// WithAllocator overrides the placeholder allocator. Tests install a
// deterministic one for golden comparison.
func WithAllocator(a ir.Allocator) Option {
	return func(b *Builder) { b.alloc = a }
}

// WithLogger installs a structured logger. Default is a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.log = l }
}

// WithMaxRows overrides the row budget ceiling.
func WithMaxRows(n int) Option {
	return func(b *Builder) { b.maxRows = n }
}

// WithDuplicateFieldPolicy selects the re-entrant field insert behavior.
func WithDuplicateFieldPolicy(p DuplicateFieldPolicy) Option {
	return func(b *Builder) { b.dupPolicy = p }
}

// NewBuilder creates a Builder over the given read-only store.
func NewBuilder(r store.Reader, opts ...Option) *Builder {
	b := &Builder{
		reader:    r,
		alloc:     ir.NewRandomAllocator(),
		log:       zap.NewNop(),
		maxRows:   DefaultMaxRows,
		dupPolicy: DuplicateFieldSkip,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// batchState carries per-build bookkeeping across handlers.
type batchState struct {
	// newFormIDs maps a TargetForm key to the placeholder minted for a
	// form staged by this batch.
	newFormIDs map[string]ir.Placeholder
}

// Build stages the plan into a fresh change-set and enforces the row
// budget. It does not run the structural or semantic validators; use
// Compile for the full pipeline.
func (b *Builder) Build(ctx context.Context, plan *ir.IntentPlan) (ir.ChangeSet, error) {
	cs := ir.ChangeSet{}
	batch := &batchState{newFormIDs: make(map[string]ir.Placeholder)}

	if err := b.stageNewForms(ctx, plan, cs, batch); err != nil {
		return nil, err
	}
	if err := b.applyFieldIntents(ctx, plan.Fields, cs, batch); err != nil {
		return nil, err
	}
	if err := b.applyOptionIntents(ctx, plan.Options, cs, batch); err != nil {
		return nil, err
	}
	if err := b.applyLogicIntents(ctx, plan.Logic, cs, batch); err != nil {
		return nil, err
	}

	if err := NewBudgetGuard(b.maxRows).Check(cs); err != nil {
		return nil, err
	}

	b.log.Debug("change-set staged",
		zap.Int("rows", cs.RowCount()),
		zap.Int("tables", len(cs)))
	return cs, nil
}

// Compile is the full resolution pipeline: build the change-set, then run
// the structural and semantic validators against the given snapshot. On
// any failure no change-set is returned.
func Compile(ctx context.Context, plan *ir.IntentPlan, r store.Reader, snap *schema.Snapshot, opts ...Option) (ir.ChangeSet, error) {
	b := NewBuilder(r, opts...)
	cs, err := b.Build(ctx, plan)
	if err != nil {
		return nil, err
	}
	if err := validate.Structural(cs); err != nil {
		return nil, err
	}
	if err := validate.Semantic(ctx, cs, snap, r); err != nil {
		return nil, err
	}
	return cs, nil
}

// flag renders a bool the way the store keeps it.
func flag(v bool) int {
	if v {
		return 1
	}
	return 0
}

// flagPtr renders an optional bool, falling back to a default.
func flagPtr(v *bool, def bool) int {
	if v == nil {
		return flag(def)
	}
	return flag(*v)
}

// strOrNil renders an optional string as a nullable column value.
func strOrNil(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

// idString renders a row identifier (string or placeholder) for embedding
// in reference payloads.
func idString(v any) string {
	switch t := v.(type) {
	case ir.Placeholder:
		return t.String()
	case string:
		return t
	default:
		return ""
	}
}
