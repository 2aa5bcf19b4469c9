package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/chord/internal/ir"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Source is an inline chord program.
	Source string `yaml:"source,omitempty"`

	// File is a chord program path, relative to BaseDir.
	// At most one of Source and File may be set. With neither, the
	// scenario must be run against a document with RunDocument.
	File string `yaml:"file,omitempty"`

	// Signals are set before the first step.
	Signals map[string]any `yaml:"signals,omitempty"`

	// Env replaces the process environment for signal fallback, so
	// scenarios never depend on the machine they run on.
	Env map[string]string `yaml:"env,omitempty"`

	// Files are fixture files written to a fresh temp directory. When
	// present, relative ctx uris resolve against that directory instead
	// of BaseDir.
	Files map[string]string `yaml:"files,omitempty"`

	// Steps execute in order against one runtime.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated over the run log after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// BaseDir anchors File and relative ctx uris. LoadScenario sets it to
	// the scenario file's directory.
	BaseDir string `yaml:"-"`
}

// Step executes one target. Exactly one of View, Task, Flow and Auto must
// be set.
type Step struct {
	View string `yaml:"view,omitempty"`
	Task string `yaml:"task,omitempty"`
	Flow string `yaml:"flow,omitempty"`

	// Auto runs the document as ExecuteIR does.
	Auto bool `yaml:"auto,omitempty"`

	// Expect is optional; without it the step only has to succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Kind returns the run kind and target of the step.
func (s Step) Kind() (ir.RunKind, string) {
	switch {
	case s.View != "":
		return ir.RunView, s.View
	case s.Task != "":
		return ir.RunTask, s.Task
	case s.Flow != "":
		return ir.RunFlow, s.Flow
	}
	return ir.RunAuto, ""
}

// Expect describes what a step must produce.
type Expect struct {
	// Status is ok, no_views or error. Defaults to error when Error is
	// set, ok otherwise.
	Status string `yaml:"status,omitempty"`

	// Error is the expected runtime error code, e.g. VIEW_NOT_FOUND.
	Error string `yaml:"error,omitempty"`

	// Prompt maps prompt sections to substrings they must contain.
	Prompt map[string]string `yaml:"prompt,omitempty"`

	// Context maps resolved context keys to substrings they must contain.
	Context map[string]string `yaml:"context,omitempty"`

	// ContextErrors lists resolved context keys that must hold an error
	// marker.
	ContextErrors []string `yaml:"context_errors,omitempty"`

	// Tasks is the exact task order a flow step must run.
	Tasks []string `yaml:"tasks,omitempty"`
}

// Assertion validates the run log.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Target is "kind:target" (trace_contains, trace_count).
	Target string `yaml:"target,omitempty"`

	// Status optionally narrows trace_contains to runs with this status.
	Status string `yaml:"status,omitempty"`

	// Targets is the expected order (trace_order).
	Targets []string `yaml:"targets,omitempty"`

	// Count is the expected number of runs (trace_count).
	Count int `yaml:"count,omitempty"`

	// Table, Where and Expect query the run log (final_state).
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertRunLogIntact  = "run_log_intact"
)

var validStatuses = map[string]bool{
	ir.RunStatusOK:      true,
	ir.RunStatusNoViews: true,
	ir.RunStatusError:   true,
}

// LoadScenario reads and parses a scenario YAML file. BaseDir is set to the
// file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses scenario YAML. Unknown fields are rejected so typos
// such as "assertion:" fail loudly.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.BaseDir = baseDir

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file directly under dir, sorted
// by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// programPath returns the resolved File path, or "" for inline sources.
func (s *Scenario) programPath() string {
	if s.File == "" || filepath.IsAbs(s.File) {
		return s.File
	}
	return filepath.Join(s.BaseDir, s.File)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Source != "" && s.File != "" {
		return fmt.Errorf("source and file are mutually exclusive")
	}
	if path := s.programPath(); path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("program file not found: %s", path)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step) error {
	set := 0
	for _, target := range []string{step.View, step.Task, step.Flow} {
		if target != "" {
			set++
		}
	}
	if step.Auto {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of view, task, flow or auto is required", index)
	}

	if e := step.Expect; e != nil {
		if e.Status != "" && !validStatuses[e.Status] {
			return fmt.Errorf("steps[%d].expect: unknown status %q", index, e.Status)
		}
		if e.Error != "" && e.Status != "" && e.Status != ir.RunStatusError {
			return fmt.Errorf("steps[%d].expect: error requires status error", index)
		}
		if len(e.Tasks) > 0 && step.Flow == "" {
			return fmt.Errorf("steps[%d].expect: tasks only applies to flow steps", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if !validTarget(a.Target) {
			return fmt.Errorf("assertions[%d]: target kind:name is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Targets) == 0 {
			return fmt.Errorf("assertions[%d]: targets list is required for trace_order", index)
		}
		for _, t := range a.Targets {
			if !validTarget(t) {
				return fmt.Errorf("assertions[%d]: invalid target %q in trace_order", index, t)
			}
		}
	case AssertTraceCount:
		if !validTarget(a.Target) {
			return fmt.Errorf("assertions[%d]: target kind:name is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRunLogIntact:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func validTarget(t string) bool {
	kind, name, ok := strings.Cut(t, ":")
	if !ok || name == "" {
		return false
	}
	switch ir.RunKind(kind) {
	case ir.RunView, ir.RunTask, ir.RunFlow:
		return true
	}
	return false
}
