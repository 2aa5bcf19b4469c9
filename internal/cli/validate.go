package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/chord/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.FlowWarning     `json:"warnings,omitempty"`
	Lint     []compiler.NodeWarning     `json:"lint,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a program or IR file without running it",
		Long: `Validate a chord program or a compiled IR file.

Checks the IR against its schema, then the cross-node rules compilation
leaves lenient: view task, role and model references must name nodes of
those types, selectors must read from existing nodes, flow entries and
edges must name tasks. Flow analysis findings, nodes no view references
and ctx nodes without a uri are reported as warnings.

Exit codes:
  0 - valid (warnings allowed)
  1 - validation errors
  2 - the file could not be loaded`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	doc, err := opts.loadDocument(f, path)
	if err != nil {
		return err
	}

	result := ValidationResult{
		Errors:   compiler.Validate(doc),
		Warnings: compiler.AnalyzeFlows(doc),
		Lint:     compiler.LintNodes(doc),
	}
	result.Valid = len(result.Errors) == 0

	if f.JSON() {
		if result.Valid {
			return f.Success(result)
		}
		_ = f.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: result.Errors[0].Code, Message: result.Errors[0].Message},
		})
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}

	for _, w := range result.Warnings {
		f.Warn("flow %s: %s", w.Flow, w.Message)
	}
	for _, w := range result.Lint {
		f.Warn("%s %s: %s", w.Code, w.Node, w.Message)
	}
	if result.Valid {
		f.Pass("%s is valid (%d node(s))", path, len(doc.Nodes))
		return nil
	}

	f.Fail("%s has %d error(s)", path, len(result.Errors))
	for _, e := range result.Errors {
		fmt.Fprintf(f.Writer, "  %s\n", e.Error())
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
