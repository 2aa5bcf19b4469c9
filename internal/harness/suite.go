package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/chord/internal/ir"
)

// ScenarioNotFoundError is returned when a test node references a scenario
// file that does not exist.
type ScenarioNotFoundError struct {
	TestID       string
	ScenarioPath string
	ResolvedPath string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf(
		"test %q references scenario file %q which does not exist (resolved to: %s)",
		e.TestID,
		e.ScenarioPath,
		e.ResolvedPath,
	)
}

// SuiteResult summarizes running a document's test nodes.
type SuiteResult struct {
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Failures []TestFailure `json:"failures,omitempty"`
}

// TestFailure describes one failed test node.
type TestFailure struct {
	TestID string `json:"test_id"`
	Error  string `json:"error"`
}

func (r *SuiteResult) fail(id, msg string) {
	r.Failed++
	r.Failures = append(r.Failures, TestFailure{TestID: id, Error: msg})
}

// ScenarioForTest builds the scenario a test node describes. dir anchors a
// relative scenario path. It returns nil, nil for test nodes that describe
// nothing runnable.
//
// A test node either references a file:
//
//	def test greets { scenario: "scenarios/greet.yaml" }
//
// or describes one step inline:
//
//	def test greets {
//	  view: @hello
//	  signals: { user: Bob }
//	  expect: { prompt: { user: "Hi Bob" } }
//	}
func ScenarioForTest(node ir.Node, dir string) (*Scenario, error) {
	props := node.Properties

	if path, ok := ir.AsString(props.Get("scenario")); ok {
		resolved := path
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(dir, resolved)
		}
		if _, err := os.Stat(resolved); os.IsNotExist(err) {
			return nil, &ScenarioNotFoundError{
				TestID:       node.ID,
				ScenarioPath: path,
				ResolvedPath: resolved,
			}
		}
		return LoadScenario(resolved)
	}

	step, ok := inlineStep(props)
	if !ok {
		return nil, nil
	}
	if expect, ok := props.Get("expect").(ir.Object); ok {
		e, err := decodeStrict[Expect](expect)
		if err != nil {
			return nil, fmt.Errorf("test %s: expect: %w", node.ID, err)
		}
		step.Expect = e
	}

	desc, _ := ir.AsString(props.Get("description"))
	if desc == "" {
		desc = "inline test " + node.ID
	}
	s := &Scenario{
		Name:        node.ID,
		Description: desc,
		Steps:       []Step{step},
		BaseDir:     dir,
	}
	if signals, ok := props.Get("signals").(ir.Object); ok {
		s.Signals = make(map[string]any, len(signals))
		for _, f := range signals {
			s.Signals[f.Key] = f.Value
		}
	}
	if err := validateScenario(s); err != nil {
		return nil, fmt.Errorf("test %s: %w", node.ID, err)
	}
	return s, nil
}

// inlineStep reads the view, task or flow property of a test node. Values
// may be references (@hello) or plain ids.
func inlineStep(props ir.Object) (Step, bool) {
	target := func(key string) string {
		v := props.Get(key)
		if t, ok := ir.RefTarget(v); ok {
			return t
		}
		s, _ := ir.AsString(v)
		return s
	}
	switch {
	case target("view") != "":
		return Step{View: target("view")}, true
	case target("task") != "":
		return Step{Task: target("task")}, true
	case target("flow") != "":
		return Step{Flow: target("flow")}, true
	}
	return Step{}, false
}

// decodeStrict decodes an IR object into T through its yaml tags. JSON is
// valid YAML, so the canonical form can be decoded directly.
func decodeStrict[T any](obj ir.Object) (*T, error) {
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return nil, err
	}
	var out T
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunTests runs every test node of doc. Scenarios without their own source
// run against doc itself. dir anchors relative scenario paths and ctx uris.
func RunTests(ctx context.Context, doc *ir.Document, dir string, opts ...Option) (*SuiteResult, error) {
	result := &SuiteResult{}

	for _, node := range doc.Tests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Total++

		scenario, err := ScenarioForTest(node, dir)
		if err != nil {
			result.fail(node.ID, err.Error())
			continue
		}
		if scenario == nil {
			result.Skipped++
			continue
		}

		var run *Result
		if scenario.Source == "" && scenario.File == "" {
			run, err = RunDocument(ctx, doc, scenario, opts...)
		} else {
			run, err = Run(ctx, scenario, opts...)
		}
		if err != nil {
			result.fail(node.ID, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}
		if !run.Pass {
			result.fail(node.ID, fmt.Sprintf("scenario assertions failed: %v", run.Errors))
			continue
		}
		result.Passed++
	}
	return result, nil
}
