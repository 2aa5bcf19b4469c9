package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/roach88/chord/internal/compiler"
	"github.com/roach88/chord/internal/engine"
	"github.com/roach88/chord/internal/ir"
	"github.com/roach88/chord/internal/store"
	"github.com/roach88/chord/internal/testutil"
)

// errorMarker prefixes a resolved context entry whose selector failed.
const errorMarker = "[Error:"

// Option configures a scenario run.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	runtime []engine.Option
}

// WithLogger sets the logger passed to the compiler and runtime.
// Default: a logger that discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRuntimeOptions appends runtime options, e.g. custom selector
// operations or context sources. They apply after the harness defaults.
func WithRuntimeOptions(opts ...engine.Option) Option {
	return func(o *options) { o.runtime = append(o.runtime, opts...) }
}

// Harness executes one scenario against one runtime and run log.
type Harness struct {
	store   *store.Store
	runtime *engine.Runtime
	logger  *slog.Logger
}

// Run compiles the scenario's program and executes it.
//
// Each scenario runs against a fresh in-memory run log. Step and assertion
// failures are reported in the Result; the error return is reserved for
// scenarios that cannot run at all (compile errors, fixture or store
// failures).
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := buildOptions(opts)

	src := scenario.Source
	if path := scenario.programPath(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read program: %w", err)
		}
		src = string(data)
	}
	if src == "" {
		return nil, fmt.Errorf("scenario %s: source or file is required", scenario.Name)
	}

	doc, err := compiler.Compile(src, compiler.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: compile: %w", scenario.Name, err)
	}
	return runDocument(ctx, doc, scenario, o)
}

// RunDocument executes the scenario against an already compiled document.
// The scenario's own Source and File are ignored.
func RunDocument(ctx context.Context, doc *ir.Document, scenario *Scenario, opts ...Option) (*Result, error) {
	return runDocument(ctx, doc, scenario, buildOptions(opts))
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func runDocument(ctx context.Context, doc *ir.Document, scenario *Scenario, o options) (*Result, error) {
	root := scenario.BaseDir
	if len(scenario.Files) > 0 {
		dir, err := os.MkdirTemp("", "chord-scenario-*")
		if err != nil {
			return nil, fmt.Errorf("create fixture dir: %w", err)
		}
		defer os.RemoveAll(dir)
		if err := testutil.WriteFiles(dir, scenario.Files); err != nil {
			return nil, err
		}
		root = dir
	}

	signals, err := signalValues(scenario.Signals)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	env := scenario.Env
	rtOpts := []engine.Option{
		engine.WithLogger(o.logger),
		engine.WithRecorder(st),
		engine.WithClock(engine.NewClock(0)),
		engine.WithIDGenerator(testutil.NewSequentialGenerator("run")),
		engine.WithNow(testutil.NewFrozenClock(testutil.Epoch).Now),
		engine.WithLookupEnv(func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		}),
		engine.WithSource(engine.SourceFile, engine.FileSource{Root: root}),
		engine.WithSource(engine.SourceDir, engine.DirSource{Root: root}),
		engine.WithSignals(signals),
	}

	h := &Harness{
		store:   st,
		runtime: engine.New(doc, append(rtOpts, o.runtime...)...),
		logger:  o.logger,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h.executeStep(ctx, i, step, result)
	}

	runs, err := st.ReadRuns(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("read run log: %w", err)
	}
	for _, rec := range runs {
		result.AddTrace(rec)
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep runs one step and checks its expectations.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) {
	kind, target := step.Kind()
	out, err := h.runtime.Run(ctx, kind, target)
	if out == nil {
		out = ir.Null{}
	}
	result.Outputs = append(result.Outputs, out)

	prefix := fmt.Sprintf("steps[%d] %s", index, stepLabel(kind, target))
	expect := step.Expect
	if expect == nil {
		expect = &Expect{}
	}

	status := stepStatus(out, err)
	want := expect.Status
	if want == "" {
		want = ir.RunStatusOK
		if expect.Error != "" {
			want = ir.RunStatusError
		}
	}

	h.logger.Info("scenario step completed",
		"step", index,
		"kind", kind,
		"target", target,
		"status", status,
	)

	if status != want {
		msg := fmt.Sprintf("%s: status %s, want %s", prefix, status, want)
		if err != nil {
			msg += ": " + err.Error()
		}
		result.AddError(msg)
		return
	}
	if err != nil {
		if code := engine.ErrorCode(err); expect.Error != "" && string(code) != expect.Error {
			result.AddError(fmt.Sprintf("%s: error code %q, want %q", prefix, code, expect.Error))
		}
		return
	}

	for _, msg := range checkOutput(out, expect) {
		result.AddError(prefix + ": " + msg)
	}
}

func stepLabel(kind ir.RunKind, target string) string {
	if kind == ir.RunAuto {
		return "auto"
	}
	return fmt.Sprintf("%s:%s", kind, target)
}

func stepStatus(out ir.Value, err error) string {
	if err != nil {
		return ir.RunStatusError
	}
	if obj, ok := out.(ir.Object); ok {
		if s, ok := ir.AsString(obj.Get("status")); ok {
			return s
		}
	}
	return ir.RunStatusOK
}

// checkOutput compares a successful step result with its expectations.
func checkOutput(out ir.Value, expect *Expect) []string {
	var errs []string

	if len(expect.Tasks) > 0 {
		got := flowTasks(out)
		if strings.Join(got, ",") != strings.Join(expect.Tasks, ",") {
			errs = append(errs, fmt.Sprintf("tasks %v, want %v", got, expect.Tasks))
		}
	}

	if len(expect.Prompt) == 0 && len(expect.Context) == 0 && len(expect.ContextErrors) == 0 {
		return errs
	}
	view, ok := viewResult(out)
	if !ok {
		return append(errs, "result has no view output to check")
	}

	prompt, _ := view.Get("prompt").(ir.Object)
	for _, section := range sortedKeys(expect.Prompt) {
		got, ok := ir.AsString(prompt.Get(section))
		if !ok {
			errs = append(errs, fmt.Sprintf("prompt section %q missing", section))
			continue
		}
		if !strings.Contains(got, expect.Prompt[section]) {
			errs = append(errs, fmt.Sprintf("prompt section %q = %q, want substring %q", section, got, expect.Prompt[section]))
		}
	}

	resolved, _ := view.Get("resolved_context").(ir.Object)
	for _, key := range sortedKeys(expect.Context) {
		v, ok := resolved.Lookup(key)
		if !ok {
			errs = append(errs, fmt.Sprintf("context %q missing", key))
			continue
		}
		if got := ir.Stringify(v); !strings.Contains(got, expect.Context[key]) {
			errs = append(errs, fmt.Sprintf("context %q = %q, want substring %q", key, got, expect.Context[key]))
		}
	}
	for _, key := range expect.ContextErrors {
		s, _ := ir.AsString(resolved.Get(key))
		if !strings.HasPrefix(s, errorMarker) {
			errs = append(errs, fmt.Sprintf("context %q = %q, want an error marker", key, s))
		}
	}
	return errs
}

// viewResult finds the view output in a view, task or flow result. For a
// flow, the last task's view is used.
func viewResult(out ir.Value) (ir.Object, bool) {
	obj, ok := out.(ir.Object)
	if !ok {
		return nil, false
	}
	if obj.Has("view_id") {
		return obj, true
	}
	if vr, ok := obj.Get("view_result").(ir.Object); ok {
		return vr, true
	}
	if results := ir.AsArray(obj.Get("results")); len(results) > 0 {
		return viewResult(results[len(results)-1])
	}
	return nil, false
}

func flowTasks(out ir.Value) []string {
	obj, _ := out.(ir.Object)
	tasks := []string{}
	for _, r := range ir.AsArray(obj.Get("results")) {
		tr, _ := r.(ir.Object)
		if id, ok := ir.AsString(tr.Get("task_id")); ok {
			tasks = append(tasks, id)
		}
	}
	return tasks
}

// signalValues converts YAML-decoded signals to IR values.
func signalValues(signals map[string]any) (map[string]ir.Value, error) {
	out := make(map[string]ir.Value, len(signals))
	for k, v := range signals {
		val, err := ir.FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("signal %s: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
