package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/chord/internal/engine"
	"github.com/roach88/chord/internal/ir"
	"github.com/roach88/chord/internal/store"
	"github.com/roach88/chord/internal/telemetry"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	View     string
	Task     string
	Flow     string
	Signals  []string // key=value
	Database string
	Output   string
	Root     string
	Metrics  bool

	// IDGenerator overrides run ids (for testing). Default: UUIDv7.
	IDGenerator engine.IDGenerator
}

// RunOutput is the JSON payload of a successful run.
type RunOutput struct {
	Kind   ir.RunKind      `json:"kind"`
	Target string          `json:"target,omitempty"`
	Result json.RawMessage `json:"result"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a view, task or flow",
		Long: `Execute a chord program or compiled IR file.

With no target flag the first declared view runs, or failing that the first
declared flow. Signals come from the config file, then --signal flags, then
the environment (CHORD_<NAME> by default).

With --db (or database in the config file) every execution is appended to
a SQLite run log; see "chord history".

Examples:
  chord run review.chord
  chord run review.chord --view summary --signal user=Bob
  chord run review.json --flow release --db ./runs.db -o result.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.View, "view", "", "view to execute")
	cmd.Flags().StringVar(&opts.Task, "task", "", "task to execute")
	cmd.Flags().StringVar(&opts.Flow, "flow", "", "flow to execute")
	cmd.Flags().StringArrayVarP(&opts.Signals, "signal", "s", nil, "signal as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run log")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the result to a file")
	cmd.Flags().StringVar(&opts.Root, "root", "", "directory relative ctx uris resolve against (default: working directory)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print execution metrics to stderr")
	cmd.MarkFlagsMutuallyExclusive("view", "task", "flow")

	return cmd
}

// target returns the run kind and target selected by the flags.
func (o *RunOptions) target() (ir.RunKind, string) {
	switch {
	case o.View != "":
		return ir.RunView, o.View
	case o.Task != "":
		return ir.RunTask, o.Task
	case o.Flow != "":
		return ir.RunFlow, o.Flow
	}
	return ir.RunAuto, ""
}

// parseSignals parses key=value flags. The value is always a string; the
// first "=" separates key from value.
func parseSignals(flags []string) (map[string]ir.Value, error) {
	out := make(map[string]ir.Value, len(flags))
	for _, kv := range flags {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid signal %q: expected key=value", kv)
		}
		out[key] = ir.String(value)
	}
	return out, nil
}

func runProgram(opts *RunOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg := opts.config()
	logger := opts.logger()

	flagSignals, err := parseSignals(opts.Signals)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeBadFlag, err.Error(), nil)
	}
	signals, err := cfg.SignalValues()
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeBadFlag, err.Error(), nil)
	}
	maps.Copy(signals, flagSignals)

	doc, err := opts.loadDocument(f, path)
	if err != nil {
		return err
	}

	metrics := telemetry.New()
	rtOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithObserver(metrics),
		engine.WithEnvPrefix(cfg.Prefix()),
		engine.WithSignals(signals),
		engine.WithSource(engine.SourceFile, engine.FileSource{Root: opts.Root}),
		engine.WithSource(engine.SourceDir, engine.DirSource{Root: opts.Root}),
	}
	if opts.IDGenerator != nil {
		rtOpts = append(rtOpts, engine.WithIDGenerator(opts.IDGenerator))
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Database
	}
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("opening run log: %v", err), nil)
		}
		defer func() {
			if err := st.Close(); err != nil {
				logger.Error("error closing run log", "error", err)
			}
		}()
		last, err := st.LastSeq(commandContext(cmd))
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("reading run log: %v", err), nil)
		}
		rtOpts = append(rtOpts, engine.WithRecorder(st), engine.WithClock(engine.NewClock(last)))
		logger.Debug("recording runs", "db", dbPath, "last_seq", last)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kind, target := opts.target()
	rt := engine.New(doc, rtOpts...)
	result, runErr := rt.Run(ctx, kind, target)

	if opts.Metrics {
		if err := metrics.WriteText(f.errWriter()); err != nil {
			logger.Warn("failed to write metrics", "error", err)
		}
	}

	if runErr != nil {
		code := engine.ErrorCode(runErr)
		var details any
		if code != "" {
			details = map[string]string{"runtime_code": string(code)}
		}
		_ = f.Error(ErrCodeRunFailed, runErr.Error(), details)
		return WrapExitError(ExitFailure, "run failed", runErr)
	}

	raw, err := ir.MarshalValue(result)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("marshaling result: %v", err), nil)
	}
	pretty, err := ir.Indent(result)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("formatting result: %v", err), nil)
	}

	if opts.Output != "" {
		if err := writeFile(opts.Output, []byte(pretty)); err != nil {
			return f.fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
		f.VerboseLog("Wrote result to %s", opts.Output)
	}

	if f.JSON() {
		return f.Success(RunOutput{Kind: kind, Target: target, Result: raw})
	}
	fmt.Fprintln(f.Writer, pretty)
	return nil
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute (tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
