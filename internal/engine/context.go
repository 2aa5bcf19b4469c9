package engine

import (
	"maps"
	"os"
	"strings"
	"sync"

	"github.com/roach88/chord/internal/ir"
)

// DefaultEnvPrefix is prepended to the upper-cased signal name when a signal
// falls back to the environment.
const DefaultEnvPrefix = "CHORD_"

// ExecutionContext holds the mutable state of one Runtime: signals, memory
// and the resolved context of every executed view. It is owned by exactly
// one Runtime and lives as long as it does.
//
// Thread-safety: all methods are safe for concurrent use.
type ExecutionContext struct {
	mu        sync.RWMutex
	signals   map[string]ir.Value
	memory    map[string]ir.Value
	resolved  map[string]ir.Object
	envPrefix string
	lookupEnv func(string) (string, bool)
}

// NewExecutionContext returns an empty context that falls back to
// environment variables named envPrefix+NAME. An empty prefix selects
// DefaultEnvPrefix; a nil lookup selects os.LookupEnv.
func NewExecutionContext(envPrefix string, lookupEnv func(string) (string, bool)) *ExecutionContext {
	if envPrefix == "" {
		envPrefix = DefaultEnvPrefix
	}
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	return &ExecutionContext{
		signals:   make(map[string]ir.Value),
		memory:    make(map[string]ir.Value),
		resolved:  make(map[string]ir.Object),
		envPrefix: envPrefix,
		lookupEnv: lookupEnv,
	}
}

// Signal returns the named signal. An explicitly set value wins; otherwise
// the environment variable envPrefix+strings.ToUpper(name) is consulted.
func (c *ExecutionContext) Signal(name string) (ir.Value, bool) {
	c.mu.RLock()
	v, ok := c.signals[name]
	c.mu.RUnlock()
	if ok {
		return v, true
	}

	if s, ok := c.lookupEnv(c.envPrefix + strings.ToUpper(name)); ok {
		return ir.String(s), true
	}
	return nil, false
}

// SetSignal overwrites one signal.
func (c *ExecutionContext) SetSignal(name string, v ir.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals[name] = v
}

// SetSignals overwrites every signal named in values.
func (c *ExecutionContext) SetSignals(values map[string]ir.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	maps.Copy(c.signals, values)
}

// Signals returns a snapshot of the explicitly set signals. Environment
// fallbacks are not included.
func (c *ExecutionContext) Signals() map[string]ir.Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.signals)
}

// Remember stores a value in the context's memory.
func (c *ExecutionContext) Remember(key string, v ir.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory[key] = v
}

// Recall returns a value stored with Remember.
func (c *ExecutionContext) Recall(key string) (ir.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.memory[key]
	return v, ok
}

// ResolvedContext returns the resolved selectors of the last execution of
// the named view.
func (c *ExecutionContext) ResolvedContext(viewID string) (ir.Object, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.resolved[viewID]
	return obj, ok
}

func (c *ExecutionContext) setResolved(viewID string, obj ir.Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved[viewID] = obj
}
