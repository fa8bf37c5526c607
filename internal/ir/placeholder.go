package ir

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Placeholder kinds. The kind names the table family the placeholder
// belongs to and is embedded in the serialized form.
const (
	KindForm       = "form"
	KindPage       = "page"
	KindField      = "fld"
	KindOptionSet  = "optset"
	KindOptionItem = "opt"
	KindRule       = "rule"
	KindCondition  = "cond"
	KindAction     = "act"
)

// PlaceholderPrefix is the reserved sentinel that marks a synthetic
// identifier on the wire. No real store identifier may start with it.
const PlaceholderPrefix = "$"

// Placeholder is a batch-scoped synthetic identifier for a row staged
// earlier in the same change-set. It serializes to "$kind_suffix" so the
// committer can recognize it in plain JSON.
type Placeholder string

// String returns the serialized "$kind_suffix" form.
func (p Placeholder) String() string { return string(p) }

// Kind returns the kind segment of the placeholder, or "" if malformed.
func (p Placeholder) Kind() string {
	body := strings.TrimPrefix(string(p), PlaceholderPrefix)
	if i := strings.IndexByte(body, '_'); i > 0 {
		return body[:i]
	}
	return ""
}

// AsPlaceholder reports whether v denotes a placeholder. It accepts the
// typed Placeholder used in freshly built change-sets as well as bare
// "$"-prefixed strings that round-tripped through JSON.
func AsPlaceholder(v any) (Placeholder, bool) {
	switch t := v.(type) {
	case Placeholder:
		return t, true
	case string:
		if strings.HasPrefix(t, PlaceholderPrefix) {
			return Placeholder(t), true
		}
	}
	return "", false
}

// Allocator mints batch-scoped placeholders. Every placeholder minted must
// be attached to exactly one insert row before the batch is returned; the
// allocator does not track usage (the structural validator does).
type Allocator interface {
	Mint(kind string) Placeholder
}

// RandomAllocator mints placeholders with a random 8-hex-char suffix.
// Collision probability within one batch is negligible; uniqueness is not
// enforced across batches.
type RandomAllocator struct{}

// NewRandomAllocator returns the production allocator.
func NewRandomAllocator() *RandomAllocator { return &RandomAllocator{} }

// Mint implements Allocator.
func (*RandomAllocator) Mint(kind string) Placeholder {
	u := uuid.New()
	return Placeholder(fmt.Sprintf("%s%s_%x", PlaceholderPrefix, kind, u[:4]))
}
