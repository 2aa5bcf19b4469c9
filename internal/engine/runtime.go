package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/chord/internal/ir"
)

// NothingExecutable is the error text ExecuteIR reports when a document
// declares no views and no flows.
const NothingExecutable = "No executable views or flows found"

// Recorder persists run records. *store.Store implements it.
type Recorder interface {
	WriteRun(ctx context.Context, rec ir.RunRecord) error
}

// Runtime executes one compiled IR document.
//
// Every lookup is by id against the document, which the runtime never
// modifies. Mutable state lives in the ExecutionContext and the
// ContextManager cache, both owned by this Runtime. Selectors, flow edges
// and flow tasks are executed one at a time in declaration order.
type Runtime struct {
	doc      *ir.Document
	ectx     *ExecutionContext
	registry *SelectorRegistry
	contexts *ContextManager
	renderer *PromptRenderer
	logger   *slog.Logger
	observer Observer
	recorder Recorder
	clock    *Clock
	ids      IDGenerator
	now      func() time.Time

	hashOnce sync.Once
	docHash  string
}

// Option configures a Runtime.
type Option func(*runtimeOptions)

type runtimeOptions struct {
	logger    *slog.Logger
	observer  Observer
	recorder  Recorder
	clock     *Clock
	ids       IDGenerator
	now       func() time.Time
	envPrefix string
	lookupEnv func(string) (string, bool)
	ops       map[string]SelectorOperation
	sources   map[string]ContextSource
	signals   map[string]ir.Value
}

// WithLogger sets the runtime logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *runtimeOptions) { o.logger = logger }
}

// WithObserver sets the receiver of execution measurements.
func WithObserver(obs Observer) Option {
	return func(o *runtimeOptions) { o.observer = obs }
}

// WithRecorder records every top-level execution.
func WithRecorder(rec Recorder) Option {
	return func(o *runtimeOptions) { o.recorder = rec }
}

// WithClock sets the logical clock used to stamp run records.
func WithClock(c *Clock) Option {
	return func(o *runtimeOptions) { o.clock = c }
}

// WithIDGenerator sets the run id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *runtimeOptions) { o.ids = g }
}

// WithNow sets the wall clock used for the date and timestamp signals.
func WithNow(now func() time.Time) Option {
	return func(o *runtimeOptions) { o.now = now }
}

// WithEnvPrefix sets the environment fallback prefix for signals.
// Default: DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(o *runtimeOptions) { o.envPrefix = prefix }
}

// WithLookupEnv replaces os.LookupEnv for signal fallback.
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(o *runtimeOptions) { o.lookupEnv = lookup }
}

// WithOperation registers a selector operation, replacing any built-in of
// the same name.
func WithOperation(name string, op SelectorOperation) Option {
	return func(o *runtimeOptions) { o.ops[name] = op }
}

// WithSource registers a context source for a ctx node type.
func WithSource(sourceType string, src ContextSource) Option {
	return func(o *runtimeOptions) { o.sources[sourceType] = src }
}

// WithSignals presets signals.
func WithSignals(signals map[string]ir.Value) Option {
	return func(o *runtimeOptions) {
		for k, v := range signals {
			o.signals[k] = v
		}
	}
}

// New creates a runtime for doc. A nil doc behaves as an empty document.
func New(doc *ir.Document, opts ...Option) *Runtime {
	o := runtimeOptions{
		ops:     make(map[string]SelectorOperation),
		sources: make(map[string]ContextSource),
		signals: make(map[string]ir.Value),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.clock == nil {
		o.clock = NewClock(0)
	}
	if o.ids == nil {
		o.ids = UUIDv7Generator{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	if doc == nil {
		doc = &ir.Document{Version: ir.IRVersion, Metadata: ir.Object{}, Nodes: map[string]ir.Node{}}
	}

	ectx := NewExecutionContext(o.envPrefix, o.lookupEnv)
	ectx.SetSignals(o.signals)

	registry := NewSelectorRegistry()
	for name, op := range o.ops {
		registry.Register(name, op)
	}
	contexts := NewContextManager(o.logger, o.observer)
	for name, src := range o.sources {
		contexts.Register(name, src)
	}

	return &Runtime{
		doc:      doc,
		ectx:     ectx,
		registry: registry,
		contexts: contexts,
		renderer: NewPromptRenderer(ectx.Signal),
		logger:   o.logger,
		observer: o.observer,
		recorder: o.recorder,
		clock:    o.clock,
		ids:      o.ids,
		now:      o.now,
	}
}

// Document returns the document being executed.
func (r *Runtime) Document() *ir.Document { return r.doc }

// Context returns the runtime's execution context.
func (r *Runtime) Context() *ExecutionContext { return r.ectx }

// Registry returns the runtime's selector registry.
func (r *Runtime) Registry() *SelectorRegistry { return r.registry }

// Contexts returns the runtime's context manager.
func (r *Runtime) Contexts() *ContextManager { return r.contexts }

// SetSignal overwrites one signal.
func (r *Runtime) SetSignal(name string, v ir.Value) { r.ectx.SetSignal(name, v) }

// SetSignals overwrites every signal named in values.
func (r *Runtime) SetSignals(values map[string]ir.Value) { r.ectx.SetSignals(values) }

// Signal returns a signal, falling back to the environment.
func (r *Runtime) Signal(name string) (ir.Value, bool) { return r.ectx.Signal(name) }

// ExecuteSelector runs one selector spec {from, op, ...params}.
//
// A "from" reference reads the content of a ctx node, or the property map
// of any other node; any other "from" value is the input itself. An
// unregistered op logs a warning and returns the input unchanged.
func (r *Runtime) ExecuteSelector(ctx context.Context, sel ir.Value) (ir.Value, error) {
	spec, ok := sel.(ir.Object)
	if !ok {
		return nil, newError(ErrCodeInvalidSelector, "", "selector must be an object, got %s", kindOf(sel))
	}

	data, err := r.selectorInput(ctx, spec)
	if err != nil {
		return nil, err
	}

	name := operationName(spec)
	op, ok := r.registry.Get(name)
	if !ok {
		r.logger.Warn("unknown selector operation, passing data through", "op", name)
		return data, nil
	}
	return op.Execute(ctx, data, spec)
}

func (r *Runtime) selectorInput(ctx context.Context, spec ir.Object) (ir.Value, error) {
	from, ok := spec.Lookup("from")
	if !ok {
		return ir.String(""), nil
	}
	root, isRef := ir.RefRoot(from)
	if !isRef {
		return from, nil
	}

	node, ok := r.doc.Node(root)
	if !ok {
		return nil, newError(ErrCodeUnknownNode, root, "Unknown node: %s", ir.Stringify(from))
	}
	if node.Type == ir.NodeCtx {
		return r.contexts.Fetch(ctx, node)
	}
	return node.Properties, nil
}

func operationName(spec ir.Object) string {
	v, ok := spec.Lookup("op")
	if !ok || ir.IsNull(v) {
		return DefaultOperation
	}
	return ir.Stringify(v)
}

// selectorKey names a selector's entry in a resolved context: the node id
// its "from" references, or "data".
func selectorKey(sel ir.Value) string {
	spec, _ := sel.(ir.Object)
	if root, ok := ir.RefRoot(spec.Get("from")); ok {
		return root
	}
	return "data"
}

// ResolveSelectors executes selectors in order and collects their results
// by key. A failing selector contributes an "[Error: ...]" string under its
// own key and does not stop the others. Only cancellation of ctx aborts the
// batch.
func (r *Runtime) ResolveSelectors(ctx context.Context, selectors ir.Array) (ir.Object, error) {
	resolved := ir.Object{}
	for i, sel := range selectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := selectorKey(sel)
		spec, _ := sel.(ir.Object)

		start := time.Now()
		v, err := r.ExecuteSelector(ctx, sel)
		r.observer.SelectorExecuted(operationName(spec), time.Since(start), err)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			r.logger.Error("selector failed", "index", i, "key", key, "error", err)
			v = ir.String(fmt.Sprintf("[Error: %s]", errorMessage(err)))
		}
		resolved.Set(key, v)
	}
	return resolved, nil
}

// ExecuteView resolves a view's selectors, its role and model, and renders
// its prompt.
func (r *Runtime) ExecuteView(ctx context.Context, id string) (*ViewResult, error) {
	start := time.Now()
	res, err := r.executeView(ctx, id)
	var val ir.Value
	if res != nil {
		val = res.Value()
	}
	r.finish(ctx, ir.RunView, id, start, val, statusOf(err), err)
	return res, err
}

func (r *Runtime) executeView(ctx context.Context, id string) (*ViewResult, error) {
	view, ok := r.doc.View(id)
	if !ok {
		return nil, newError(ErrCodeViewNotFound, id, "view not found: %s", id)
	}
	r.logger.Info("executing view", "view", id)

	resolved, err := r.ResolveSelectors(ctx, view.Selectors)
	if err != nil {
		return nil, err
	}
	r.ectx.setResolved(id, resolved)

	prompt, err := r.renderPrompt(id, view.Prompt, resolved)
	if err != nil {
		return nil, err
	}

	return &ViewResult{
		ViewID:          id,
		Task:            view.Task,
		Role:            r.nodeProperties(view.Role),
		Model:           r.nodeProperties(view.Model),
		ResolvedContext: resolved,
		Prompt:          prompt,
		ResponseFormat:  view.ResponseFormat,
		Asserts:         view.Asserts,
	}, nil
}

// nodeProperties follows a reference one hop to the named node's
// properties. Anything that does not name a node yields Null.
func (r *Runtime) nodeProperties(ref ir.Value) ir.Value {
	target, ok := ir.RefTarget(ref)
	if !ok {
		return ir.Null{}
	}
	node, ok := r.doc.Node(target)
	if !ok {
		return ir.Null{}
	}
	return node.Properties
}

// renderPrompt renders every string section of a prompt. Variables are the
// resolved context entries, the whole context as "resolved_context", and
// the explicitly set signals, which win on conflicts.
func (r *Runtime) renderPrompt(viewID string, prompt ir.Value, resolved ir.Object) (ir.Object, error) {
	if ir.IsNull(prompt) {
		return ir.Object{}, nil
	}
	sections, ok := prompt.(ir.Object)
	if !ok {
		return nil, newError(ErrCodeInvalidInput, viewID, "prompt must be an object, got %s", kindOf(prompt))
	}

	vars := make(map[string]ir.Value, len(resolved)+1)
	for _, f := range resolved {
		vars[f.Key] = f.Value
	}
	vars["resolved_context"] = resolved
	for k, v := range r.ectx.Signals() {
		vars[k] = v
	}

	out := make(ir.Object, len(sections))
	for i, section := range sections {
		out[i] = section
		if s, ok := section.Value.(ir.String); ok {
			out[i].Value = ir.String(r.renderer.Render(string(s), vars))
		}
	}
	return out, nil
}

// ExecuteTask runs the first view, in declaration order, whose task is a
// reference to id. Only that one view runs. A task no view targets returns
// a result with Status ir.RunStatusNoViews.
func (r *Runtime) ExecuteTask(ctx context.Context, id string) (*TaskResult, error) {
	start := time.Now()
	res, err := r.executeTask(ctx, id)
	var val ir.Value
	status := statusOf(err)
	if res != nil {
		val = res.Value()
		status = res.Status
	}
	r.finish(ctx, ir.RunTask, id, start, val, status, err)
	return res, err
}

func (r *Runtime) executeTask(ctx context.Context, id string) (*TaskResult, error) {
	node, ok := r.doc.Node(id)
	if !ok {
		return nil, newError(ErrCodeTaskNotFound, id, "task not found: %s", id)
	}
	if node.Type != ir.NodeTask {
		return nil, newError(ErrCodeNotATask, id, "node %s is a %s, not a task", id, node.Type)
	}

	ref := ir.Ref(id)
	for _, view := range r.doc.Views {
		if task, ok := view.Task.(ir.String); !ok || task != ref {
			continue
		}
		vr, err := r.executeView(ctx, view.ID)
		if err != nil {
			return nil, err
		}
		res := &TaskResult{TaskID: id, Status: ir.RunStatusOK, Task: node.Properties, View: vr}
		r.ectx.Remember(id, res.Value())
		return res, nil
	}

	r.logger.Warn("no views found for task", "task", id)
	return &TaskResult{TaskID: id, Status: ir.RunStatusNoViews}, nil
}

// ExecuteFlow runs the flow's entry task, then the task named by each
// edge's "to", once per edge in declaration order. Edge sources, guards and
// the parallel, conditional and schedule fields are not interpreted, and
// repeated tasks run again.
func (r *Runtime) ExecuteFlow(ctx context.Context, id string) (*FlowResult, error) {
	start := time.Now()
	res, err := r.executeFlow(ctx, id)
	var val ir.Value
	if res != nil {
		val = res.Value()
	}
	r.finish(ctx, ir.RunFlow, id, start, val, statusOf(err), err)
	return res, err
}

func (r *Runtime) executeFlow(ctx context.Context, id string) (*FlowResult, error) {
	flow, ok := r.doc.Flow(id)
	if !ok {
		return nil, newError(ErrCodeFlowNotFound, id, "flow not found: %s", id)
	}
	r.logger.Info("executing flow", "flow", id)

	var tasks []string
	if entry, ok := ir.RefRoot(flow.Entry); ok {
		tasks = append(tasks, entry)
	}
	for _, edge := range ir.AsArray(flow.Edges) {
		obj, ok := edge.(ir.Object)
		if !ok {
			continue
		}
		if to, ok := ir.RefRoot(obj.Get("to")); ok {
			tasks = append(tasks, to)
		}
	}

	res := &FlowResult{FlowID: id, Results: []*TaskResult{}}
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tr, err := r.executeTask(ctx, task)
		if err != nil {
			return nil, fmt.Errorf("flow %s: %w", id, err)
		}
		res.Results = append(res.Results, tr)
	}
	return res, nil
}

// ExecuteIR sets the date and timestamp signals, unless already set, then
// runs the first declared view, or failing that the first declared flow.
// A document with neither yields {"error": NothingExecutable}.
func (r *Runtime) ExecuteIR(ctx context.Context) (ir.Value, error) {
	now := r.now()
	if _, ok := r.ectx.Signals()["date"]; !ok {
		r.ectx.SetSignal("date", ir.String(now.Format(time.DateOnly)))
	}
	if _, ok := r.ectx.Signals()["timestamp"]; !ok {
		r.ectx.SetSignal("timestamp", ir.String(now.Format(time.RFC3339)))
	}

	switch {
	case len(r.doc.Views) > 0:
		res, err := r.ExecuteView(ctx, r.doc.Views[0].ID)
		if err != nil {
			return nil, err
		}
		return res.Value(), nil
	case len(r.doc.Flows) > 0:
		res, err := r.ExecuteFlow(ctx, r.doc.Flows[0].ID)
		if err != nil {
			return nil, err
		}
		return res.Value(), nil
	}

	r.logger.Warn("nothing to execute", "error", NothingExecutable)
	return ir.Object{{Key: "error", Value: ir.String(NothingExecutable)}}, nil
}

// Run executes target as the given kind. RunAuto ignores target and
// behaves like ExecuteIR.
func (r *Runtime) Run(ctx context.Context, kind ir.RunKind, target string) (ir.Value, error) {
	switch kind {
	case ir.RunView:
		res, err := r.ExecuteView(ctx, target)
		if err != nil {
			return nil, err
		}
		return res.Value(), nil
	case ir.RunTask:
		res, err := r.ExecuteTask(ctx, target)
		if err != nil {
			return nil, err
		}
		return res.Value(), nil
	case ir.RunFlow:
		res, err := r.ExecuteFlow(ctx, target)
		if err != nil {
			return nil, err
		}
		return res.Value(), nil
	case ir.RunAuto:
		return r.ExecuteIR(ctx)
	}
	return nil, fmt.Errorf("unknown run kind %q", kind)
}

func statusOf(err error) string {
	if err != nil {
		return ir.RunStatusError
	}
	return ir.RunStatusOK
}

// finish reports a top-level execution to the observer and the recorder.
// A recording failure is logged; it never fails the execution.
func (r *Runtime) finish(ctx context.Context, kind ir.RunKind, target string, start time.Time, result ir.Value, status string, runErr error) {
	r.observer.Executed(kind, status, time.Since(start))
	if r.recorder == nil {
		return
	}

	rec := ir.RunRecord{
		ID:      r.ids.Generate(),
		Seq:     r.clock.Next(),
		Kind:    kind,
		Target:  target,
		DocHash: r.documentHash(),
		Status:  status,
		Result:  orNull(result),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	hash, err := ir.ResultHash(rec.Result)
	if err != nil {
		r.logger.Warn("failed to hash run result", "kind", kind, "target", target, "error", err)
	}
	rec.ResultHash = hash

	if err := r.recorder.WriteRun(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Warn("failed to record run", "kind", kind, "target", target, "error", err)
	}
}

func (r *Runtime) documentHash() string {
	r.hashOnce.Do(func() {
		hash, err := ir.DocumentHash(r.doc)
		if err != nil {
			r.logger.Warn("failed to hash document", "error", err)
			return
		}
		r.docHash = hash
	})
	return r.docHash
}
