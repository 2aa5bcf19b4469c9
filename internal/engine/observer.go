package engine

import (
	"time"

	"github.com/roach88/chord/internal/ir"
)

// Observer receives execution measurements. internal/telemetry provides a
// Prometheus implementation.
type Observer interface {
	// ContextFetched is called for every fetch through the ContextManager.
	ContextFetched(sourceType string, cached bool, err error)

	// SelectorExecuted is called once per selector in a batch.
	SelectorExecuted(op string, d time.Duration, err error)

	// Executed is called once per top-level view, task, flow or IR run.
	Executed(kind ir.RunKind, status string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ContextFetched(string, bool, error) {}
func (nopObserver) SelectorExecuted(string, time.Duration, error) {}
func (nopObserver) Executed(ir.RunKind, string, time.Duration) {}
