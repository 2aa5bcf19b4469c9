// Package engine executes compiled chord IR documents.
//
// A Runtime owns one document and one ExecutionContext. It resolves a
// view's selectors into a resolved context, follows the view's role and
// model references, and renders the view's prompt sections. Tasks run the
// first view that targets them; flows run their entry task and then the
// task at the end of each edge.
//
// EXTENSION POINTS:
//
// Context sources (ContextSource) and selector operations
// (SelectorOperation) are looked up by name in tables owned by each
// Runtime. Built-ins are registered at construction; WithSource and
// WithOperation add or replace entries without affecting other runtimes.
//
// FAILURE POLICY:
//
//   - Lookup failures (view, task, flow) abort only the call that hit them.
//   - A failing selector is replaced by an "[Error: ...]" string in the
//     resolved context; its siblings still run.
//   - An unknown selector operation passes its input through with a warning.
//   - An unknown context source type is an error.
//
// ORDERING:
//
// Execution is sequential: selectors, flow entries and flow edges run one
// at a time in declaration order. The ContextManager cache and the
// ExecutionContext are nevertheless safe for concurrent use, and every
// blocking call takes a context.Context.
//
// Top-level executions are stamped with a logical Clock seq and a UUIDv7
// run id and handed to an optional Recorder.
package engine
