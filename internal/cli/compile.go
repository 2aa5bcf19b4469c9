package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/chord/internal/compiler"
	"github.com/roach88/chord/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
	Pretty bool
	Watch  bool
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	Nodes    int                    `json:"nodes"`
	Views    int                    `json:"views"`
	Flows    int                    `json:"flows"`
	Tests    int                    `json:"tests"`
	Hash     string                 `json:"hash"`
	Output   string                 `json:"output,omitempty"`
	Warnings []compiler.FlowWarning `json:"warnings,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile a chord program to IR",
		Long: `Compile a chord program to its JSON IR.

Without -o the IR is written to stdout. Flow warnings (cycles, edges that
name no task) are reported on stderr and never fail the compile.

Examples:
  chord compile review.chord
  chord compile review.chord -o review.json --pretty
  chord compile review.chord -o review.json --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Watch {
				return watchCompile(cmd.Context(), opts, args[0], cmd)
			}
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", false, "indent the IR")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "recompile whenever the file changes (requires -o)")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	doc, err := opts.loadDocument(f, path)
	if err != nil {
		return err
	}
	f.VerboseLog("Compiled %s: %d node(s)", path, len(doc.Nodes))

	data, err := ir.Marshal(doc, opts.Pretty)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("marshaling IR: %v", err), nil)
	}
	hash, err := ir.DocumentHash(doc)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("hashing IR: %v", err), nil)
	}

	stats := CompilationStats{
		Nodes:    len(doc.Nodes),
		Views:    len(doc.Views),
		Flows:    len(doc.Flows),
		Tests:    len(doc.Tests),
		Hash:     hash,
		Output:   opts.Output,
		Warnings: compiler.AnalyzeFlows(doc),
	}
	for _, w := range stats.Warnings {
		f.Warn("flow %s: %s", w.Flow, w.Message)
	}

	if opts.Output == "" {
		if f.JSON() {
			return f.Success(json.RawMessage(data))
		}
		fmt.Fprintln(f.Writer, string(data))
		return nil
	}

	if err := writeFile(opts.Output, data); err != nil {
		return f.fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
	}
	if f.JSON() {
		return f.Success(stats)
	}
	f.Pass("Compiled %d node(s): %d view(s), %d flow(s), %d test(s)",
		stats.Nodes, stats.Views, stats.Flows, stats.Tests)
	fmt.Fprintf(f.Writer, "Wrote IR to %s (sha256:%s)\n", opts.Output, hash)
	return nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// watchCompile compiles once, then again on every write to path until the
// command's context is cancelled. Compile errors are reported and the watch
// continues.
func watchCompile(ctx context.Context, opts *CompileOptions, path string, cmd *cobra.Command) error {
	if opts.Output == "" {
		return opts.formatter(cmd).fail(ExitCommandError, ErrCodeBadFlag, "--watch requires -o", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.logger()

	compileOnce := func() {
		if err := runCompile(opts, path, cmd); err != nil {
			logger.Warn("compile failed", "file", path, "error", err)
		}
	}
	compileOnce()

	return watchFile(ctx, path, func() {
		logger.Info("file changed, recompiling", "file", path)
		compileOnce()
	})
}

// watchFile calls onChange for every write or create event on path. The
// parent directory is watched so editors that replace the file on save are
// still seen.
func watchFile(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start watcher", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve path", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch directory", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return WrapExitError(ExitCommandError, "watch failed", err)
		}
	}
}
