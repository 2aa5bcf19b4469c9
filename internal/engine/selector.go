package engine

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/chord/internal/ir"
)

// SelectorOperation transforms selector input data. params is the full
// selector spec, including "from" and "op".
type SelectorOperation interface {
	Execute(ctx context.Context, data ir.Value, params ir.Object) (ir.Value, error)
}

// OperationFunc adapts a function to SelectorOperation.
type OperationFunc func(ctx context.Context, data ir.Value, params ir.Object) (ir.Value, error)

// Execute calls f.
func (f OperationFunc) Execute(ctx context.Context, data ir.Value, params ir.Object) (ir.Value, error) {
	return f(ctx, data, params)
}

// DefaultOperation is used when a selector omits "op".
const DefaultOperation = "extract"

// SelectorRegistry maps operation names to implementations. Each Runtime
// owns its own registry, so registering an operation never affects another
// runtime.
//
// Thread-safety: safe for concurrent use.
type SelectorRegistry struct {
	mu  sync.RWMutex
	ops map[string]SelectorOperation
}

// NewSelectorRegistry returns a registry holding the built-in operations:
// head, tail, extract, grep, summarize, transform, semantic_search and its
// alias search.
func NewSelectorRegistry() *SelectorRegistry {
	search := OperationFunc(semanticSearch)
	return &SelectorRegistry{
		ops: map[string]SelectorOperation{
			"head":            OperationFunc(head),
			"tail":            OperationFunc(tail),
			"extract":         OperationFunc(extract),
			"grep":            OperationFunc(grep),
			"summarize":       OperationFunc(summarize),
			"transform":       OperationFunc(transform),
			"semantic_search": search,
			"search":          search,
		},
	}
}

// Register adds or replaces an operation.
func (r *SelectorRegistry) Register(name string, op SelectorOperation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[name] = op
}

// Get looks up an operation by name.
func (r *SelectorRegistry) Get(name string) (SelectorOperation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

// Names returns the registered operation names, sorted.
func (r *SelectorRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.ops))
}
