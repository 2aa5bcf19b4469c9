package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/chord/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario name filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	Total     int              `json:"total"`
}

func (r *TestResult) add(s ScenarioResult) {
	r.Scenarios = append(r.Scenarios, s)
	r.Total++
	if s.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir|scenario.yaml|program.chord>",
		Short: "Run conformance scenarios",
		Long: `Run YAML scenarios, or the test nodes of a chord program.

A directory runs every *.yaml and *.yml scenario directly inside it. When
<dir>/golden/<name>.golden exists the scenario's trace must match it byte
for byte; --update rewrites the golden files instead.

A chord program runs its "def test" nodes.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  chord test ./scenarios
  chord test ./scenarios --filter "flow_*"
  chord test ./scenarios --update
  chord test review.chord --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name (glob pattern)")

	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	info, err := os.Stat(path)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("path not found: %s", path), nil)
	}
	if _, err := filepath.Match(opts.Filter, ""); err != nil {
		return f.fail(ExitCommandError, ErrCodeBadFlag, fmt.Sprintf("invalid filter pattern: %v", err), nil)
	}

	result := TestResult{Scenarios: []ScenarioResult{}}
	switch ext := filepath.Ext(path); {
	case info.IsDir():
		scenarios, err := harness.LoadScenarios(path)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeReadFailed, err.Error(), nil)
		}
		for _, s := range scenarios {
			if !opts.matches(s.Name) {
				result.Skipped++
				continue
			}
			result.add(runScenario(opts, f, s, filepath.Join(path, "golden"), cmd))
		}
	case ext == ".yaml" || ext == ".yml":
		s, err := harness.LoadScenario(path)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeReadFailed, err.Error(), nil)
		}
		result.add(runScenario(opts, f, s, filepath.Join(filepath.Dir(path), "golden"), cmd))
	default:
		if err := runTestNodes(opts, f, path, &result, cmd); err != nil {
			return err
		}
	}

	return outputTestResult(f, result)
}

func (o *TestOptions) matches(name string) bool {
	if o.Filter == "" {
		return true
	}
	ok, _ := filepath.Match(o.Filter, name)
	return ok
}

func (o *TestOptions) harnessOptions() []harness.Option {
	return []harness.Option{harness.WithLogger(o.logger())}
}

// runScenario executes one scenario and checks its golden file, if any.
func runScenario(opts *TestOptions, f *OutputFormatter, s *harness.Scenario, goldenDir string, cmd *cobra.Command) ScenarioResult {
	res := ScenarioResult{Name: s.Name, Pass: true}
	report := func() ScenarioResult {
		if f.JSON() {
			return res
		}
		if res.Pass {
			f.Pass("%s", s.Name)
		} else {
			f.Fail("%s", s.Name)
			for _, e := range res.Errors {
				fmt.Fprintf(f.Writer, "  %s\n", e)
			}
		}
		return res
	}

	run, err := harness.Run(commandContext(cmd), s, opts.harnessOptions()...)
	if err != nil {
		res.Pass = false
		res.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return report()
	}
	if !run.Pass {
		res.Pass = false
		res.Errors = append(res.Errors, run.Errors...)
	}

	trace, err := harness.TraceJSON(s.Name, run.Trace)
	if err != nil {
		res.Pass = false
		res.Errors = append(res.Errors, fmt.Sprintf("marshal trace: %v", err))
		return report()
	}

	goldenPath := filepath.Join(goldenDir, s.Name+".golden")
	if opts.Update {
		if err := os.MkdirAll(goldenDir, 0o755); err != nil {
			res.Pass = false
			res.Errors = append(res.Errors, fmt.Sprintf("failed to create golden directory: %v", err))
			return report()
		}
		if err := os.WriteFile(goldenPath, trace, 0o644); err != nil {
			res.Pass = false
			res.Errors = append(res.Errors, fmt.Sprintf("failed to write golden file: %v", err))
		}
		return report()
	}

	want, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		return report()
	}
	if err != nil {
		res.Pass = false
		res.Errors = append(res.Errors, fmt.Sprintf("failed to read golden file: %v", err))
		return report()
	}
	if !bytes.Equal(want, trace) {
		res.Pass = false
		res.Errors = append(res.Errors, "trace does not match golden file (run with --update to regenerate)")
	}
	return report()
}

// runTestNodes runs the test nodes of a chord program.
func runTestNodes(opts *TestOptions, f *OutputFormatter, path string, result *TestResult, cmd *cobra.Command) error {
	doc, err := opts.loadDocument(f, path)
	if err != nil {
		return err
	}

	suite, err := harness.RunTests(commandContext(cmd), doc, filepath.Dir(path), opts.harnessOptions()...)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	failed := make(map[string]string, len(suite.Failures))
	for _, fail := range suite.Failures {
		failed[fail.TestID] = fail.Error
	}
	for _, node := range doc.Tests {
		if !opts.matches(node.ID) {
			continue
		}
		if msg, ok := failed[node.ID]; ok {
			if !f.JSON() {
				f.Fail("%s", node.ID)
				fmt.Fprintf(f.Writer, "  %s\n", msg)
			}
			result.add(ScenarioResult{Name: node.ID, Errors: []string{msg}})
			continue
		}
		s, _ := harness.ScenarioForTest(node, filepath.Dir(path))
		if s == nil {
			result.Skipped++
			continue
		}
		if !f.JSON() {
			f.Pass("%s", node.ID)
		}
		result.add(ScenarioResult{Name: node.ID, Pass: true})
	}
	return nil
}

func outputTestResult(f *OutputFormatter, result TestResult) error {
	if f.JSON() {
		if result.Failed == 0 {
			return f.Success(result)
		}
		_ = f.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    "E_TEST_FAILED",
				Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
			},
		})
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	if result.Total == 0 {
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return nil
	}

	fmt.Fprintln(f.Writer)
	fmt.Fprintf(f.Writer, "Test Summary: %d passed, %d failed, %d skipped, %d total\n",
		result.Passed, result.Failed, result.Skipped, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	f.Pass("All scenarios passed")
	return nil
}
