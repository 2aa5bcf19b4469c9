package engine

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/chord/internal/ir"
)

// Built-in context source types.
const (
	SourceFile = "file"
	SourceDir  = "dir"
)

// ContextManager fetches ctx node content through registered sources and
// caches it by (type, uri). Cached entries are never refreshed or evicted
// for the lifetime of the manager.
//
// Thread-safety: safe for concurrent use. Concurrent misses on the same key
// share a single fetch.
type ContextManager struct {
	mu       sync.Mutex
	sources  map[string]ContextSource
	cache    map[string]ir.Value
	sf       singleflight.Group
	logger   *slog.Logger
	observer Observer
}

// NewContextManager returns a manager with the file and dir sources
// registered.
func NewContextManager(logger *slog.Logger, observer Observer) *ContextManager {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &ContextManager{
		sources: map[string]ContextSource{
			SourceFile: FileSource{},
			SourceDir:  DirSource{},
		},
		cache:    make(map[string]ir.Value),
		logger:   logger,
		observer: observer,
	}
}

// Register adds or replaces the source for a context type.
func (m *ContextManager) Register(sourceType string, src ContextSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[sourceType] = src
}

// Sources returns the registered context types, sorted.
func (m *ContextManager) Sources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.sources))
}

// CacheLen returns the number of cached entries.
func (m *ContextManager) CacheLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}

// Fetch returns the content of a ctx node. The node's "type" property picks
// the source (default "file") and "uri" names the content (default ""). The
// full property map is passed to the source as options.
func (m *ContextManager) Fetch(ctx context.Context, node ir.Node) (ir.Value, error) {
	sourceType := stringProp(node.Properties, "type", SourceFile)
	uri := stringProp(node.Properties, "uri", "")
	key := sourceType + ":" + uri

	m.mu.Lock()
	if v, ok := m.cache[key]; ok {
		m.mu.Unlock()
		m.logger.Debug("context cache hit", "node", node.ID, "key", key)
		m.observer.ContextFetched(sourceType, true, nil)
		return v, nil
	}
	src, ok := m.sources[sourceType]
	m.mu.Unlock()

	if !ok {
		err := newError(ErrCodeUnknownSource, node.ID, "unknown context type: %s", sourceType)
		m.observer.ContextFetched(sourceType, false, err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, err, _ := m.sf.Do(key, func() (interface{}, error) {
		content, err := src.Fetch(ctx, uri, node.Properties)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.cache[key] = content
		m.mu.Unlock()
		return content, nil
	})
	m.observer.ContextFetched(sourceType, false, err)
	if err != nil {
		return nil, err
	}
	return v.(ir.Value), nil
}

// stringProp reads a property as text. Non-string values use their printed
// form; absent or null values yield def.
func stringProp(props ir.Object, key, def string) string {
	v := props.Get(key)
	if ir.IsNull(v) {
		return def
	}
	return ir.Stringify(v)
}
