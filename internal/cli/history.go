package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chord/internal/ir"
	"github.com/roach88/chord/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Target   string // kind:target filter
	Status   string
	RunID    string
	Verify   bool
	Targets  bool
}

// HistoryEntry is one run as listed by history.
type HistoryEntry struct {
	ID     string     `json:"id"`
	Seq    int64      `json:"seq"`
	Kind   ir.RunKind `json:"kind"`
	Target string     `json:"target"`
	Status string     `json:"status"`
	Error  string     `json:"error,omitempty"`
	IRHash string     `json:"ir_hash"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the run log",
		Long: `List executions recorded by "chord run --db", oldest first.

Runs are ordered by their logical sequence number, never by wall-clock time.

Examples:
  chord history --db ./runs.db
  chord history --db ./runs.db --target view:summary --limit 5
  chord history --db ./runs.db --status error
  chord history --db ./runs.db --run <id>
  chord history --db ./runs.db --verify`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run log (default: database from config)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "show only the latest N runs (0 for all)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "only runs of kind:target, e.g. view:summary")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only runs with this status (ok, error, no_views)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "print one run with its result")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "recompute every result hash")
	cmd.Flags().BoolVar(&opts.Targets, "targets", false, "list the distinct kind:target pairs")
	cmd.MarkFlagsMutuallyExclusive("run", "verify", "targets")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := commandContext(cmd)

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.config().Database
	}
	if dbPath == "" {
		return f.fail(ExitCommandError, ErrCodeBadFlag, "--db is required (or set database in the config file)", nil)
	}
	// store.Open would create a missing database; history only reads.
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return f.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", dbPath), nil)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("opening run log: %v", err), nil)
	}
	defer st.Close()

	switch {
	case opts.RunID != "":
		return showRun(f, st, opts.RunID, cmd)
	case opts.Verify:
		return verifyRuns(f, st, cmd)
	case opts.Targets:
		targets, err := st.ListTargets(ctx)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		if f.JSON() {
			return f.Success(targets)
		}
		for _, t := range targets {
			fmt.Fprintln(f.Writer, t)
		}
		return nil
	}

	query := store.Query{Limit: opts.Limit}
	var filters []store.Predicate
	if opts.Target != "" {
		kind, target, ok := strings.Cut(opts.Target, ":")
		if !ok || target == "" {
			return f.fail(ExitCommandError, ErrCodeBadFlag,
				fmt.Sprintf("invalid --target %q: expected kind:target", opts.Target), nil)
		}
		filters = append(filters, store.ByTarget(ir.RunKind(kind), target))
	}
	if opts.Status != "" {
		filters = append(filters, store.Equals{Field: "status", Value: opts.Status})
	}
	if len(filters) > 0 {
		query.Filter = store.And{Predicates: filters}
	}

	runs, err := st.QueryRuns(ctx, query)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("reading run log: %v", err), nil)
	}

	entries := make([]HistoryEntry, len(runs))
	for i, r := range runs {
		entries[i] = HistoryEntry{
			ID:     r.ID,
			Seq:    r.Seq,
			Kind:   r.Kind,
			Target: r.Target,
			Status: r.Status,
			Error:  r.Error,
			IRHash: r.DocHash,
		}
	}

	if f.JSON() {
		return f.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded.")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("[%d] %s:%s %s  %s", e.Seq, e.Kind, e.Target, e.Status, e.ID)
		if e.Status == ir.RunStatusError {
			f.Fail("%s\n    %s", line, e.Error)
			continue
		}
		f.Pass("%s", line)
	}
	return nil
}

func showRun(f *OutputFormatter, st *store.Store, id string, cmd *cobra.Command) error {
	rec, err := st.ReadRun(commandContext(cmd), id)
	if errors.Is(err, sql.ErrNoRows) {
		return f.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run not found: %s", id), nil)
	}
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	if f.JSON() {
		return f.Success(rec)
	}
	result, err := ir.Indent(rec.Result)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	fmt.Fprintf(f.Writer, "Run:     %s\n", rec.ID)
	fmt.Fprintf(f.Writer, "Seq:     %d\n", rec.Seq)
	fmt.Fprintf(f.Writer, "Target:  %s:%s\n", rec.Kind, rec.Target)
	fmt.Fprintf(f.Writer, "Status:  %s\n", rec.Status)
	if rec.Error != "" {
		fmt.Fprintf(f.Writer, "Error:   %s\n", rec.Error)
	}
	fmt.Fprintf(f.Writer, "IR hash: %s\n", rec.DocHash)
	fmt.Fprintf(f.Writer, "Result:\n%s\n", result)
	return nil
}

func verifyRuns(f *OutputFormatter, st *store.Store, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	bad, err := st.VerifyRuns(ctx)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	total, err := st.CountRuns(ctx)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	if f.JSON() {
		if len(bad) == 0 {
			return f.Success(map[string]int{"verified": total})
		}
		_ = f.encode(CLIResponse{
			Status: "error",
			Data:   bad,
			Error:  &CLIError{Code: ErrCodeStore, Message: fmt.Sprintf("%d run(s) do not match their hash", len(bad))},
		})
		return NewExitError(ExitFailure, fmt.Sprintf("%d run(s) do not match their hash", len(bad)))
	}

	if len(bad) == 0 {
		f.Pass("%d run(s) verified", total)
		return nil
	}
	for _, m := range bad {
		f.Fail("[%d] %s: recorded %s, computed %s", m.Seq, m.RunID, m.Recorded, m.Computed)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d run(s) do not match their hash", len(bad)))
}
