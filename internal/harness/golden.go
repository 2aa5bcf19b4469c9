package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/chord/internal/ir"
)

// snapshot converts a trace to an IR object so it serializes through
// ir.MarshalCanonical. Hashes are left out: the run log's content hashes
// are checked by run_log_intact, and golden files stay reviewable.
func snapshot(name string, trace []TraceEvent) ir.Object {
	events := make(ir.Array, len(trace))
	for i, e := range trace {
		event := ir.Object{
			{Key: "seq", Value: ir.Int(e.Seq)},
			{Key: "kind", Value: ir.String(e.Kind)},
			{Key: "target", Value: ir.String(e.Target)},
			{Key: "status", Value: ir.String(e.Status)},
			{Key: "result", Value: e.Result},
		}
		if e.Error != "" {
			event.Set("error", ir.String(e.Error))
		}
		events[i] = event
	}
	return ir.Object{
		{Key: "scenario", Value: ir.String(name)},
		{Key: "trace", Value: events},
	}
}

// TraceJSON returns the canonical JSON form of a trace, as stored in golden
// files.
func TraceJSON(name string, trace []TraceEvent) ([]byte, error) {
	return ir.MarshalCanonical(snapshot(name, trace))
}

// RunWithGolden runs a scenario and compares its trace with
// testdata/golden/<scenario.Name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace with a golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := TraceJSON(name, result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
