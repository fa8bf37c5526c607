package testutil

import (
	"fmt"
	"sync"

	"github.com/formweave/formweave/internal/ir"
)

// SequentialAllocator mints placeholders with a per-kind counter instead
// of random suffixes.
//
// Unlike ir.RandomAllocator, SequentialAllocator produces the same ids on
// every run, so resolved change-sets can be compared against golden
// snapshots byte for byte.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SequentialAllocator struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewSequentialAllocator creates an allocator with all counters at 0.
//
// The first placeholder of each kind gets suffix 00000001.
func NewSequentialAllocator() *SequentialAllocator {
	return &SequentialAllocator{counts: make(map[string]int)}
}

// Mint implements ir.Allocator.
func (a *SequentialAllocator) Mint(kind string) ir.Placeholder {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts[kind]++
	return ir.Placeholder(fmt.Sprintf("%s%s_%08d", ir.PlaceholderPrefix, kind, a.counts[kind]))
}

// Reset resets every counter to 0 for test reuse.
func (a *SequentialAllocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts = make(map[string]int)
}
