package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chord/internal/ir"
)

// NodesOptions holds flags for the nodes command.
type NodesOptions struct {
	*RootOptions
	Type string
}

// NodeSummary is one line of the nodes listing.
type NodeSummary struct {
	ID   string      `json:"id"`
	Type ir.NodeType `json:"type"`
}

// NewNodesCommand creates the nodes command.
func NewNodesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NodesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "nodes <file>",
		Short: "List the nodes of a program",
		Long: `List every node of a chord program or IR file, sorted by id.

Examples:
  chord nodes review.chord
  chord nodes review.chord --type view`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodes(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "only list nodes of this type")
	return cmd
}

func runNodes(opts *NodesOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if opts.Type != "" && !ir.NodeType(opts.Type).Valid() {
		return f.fail(ExitCommandError, ErrCodeBadFlag,
			fmt.Sprintf("unknown node type %q", opts.Type), nil)
	}

	doc, err := opts.loadDocument(f, path)
	if err != nil {
		return err
	}

	nodes := []NodeSummary{}
	for _, id := range doc.NodeIDs() {
		n := doc.Nodes[id]
		if opts.Type != "" && string(n.Type) != opts.Type {
			continue
		}
		nodes = append(nodes, NodeSummary{ID: id, Type: n.Type})
	}

	if f.JSON() {
		return f.Success(nodes)
	}
	if len(nodes) == 0 {
		fmt.Fprintln(f.Writer, "No nodes found.")
		return nil
	}
	width := 0
	for _, n := range nodes {
		width = max(width, len(n.Type))
	}
	for _, n := range nodes {
		fmt.Fprintf(f.Writer, "%-*s  %s\n", width, n.Type, n.ID)
	}
	return nil
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <file> <id>",
		Short: "Print one compiled node",
		Long: `Print one node of a chord program with its references resolved.

For a view the executable projection (compiled selectors, prompt) is shown;
for a flow its projection; for anything else the node itself.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runShow(opts *RootOptions, path, id string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	doc, err := opts.loadDocument(f, path)
	if err != nil {
		return err
	}

	var out any
	if v, ok := doc.View(id); ok {
		out = v
	} else if fl, ok := doc.Flow(id); ok {
		out = fl
	} else if n, ok := doc.Node(id); ok {
		out = n
	} else {
		return f.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no node %q in %s", id, path), nil)
	}

	if f.JSON() {
		return f.Success(out)
	}
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	fmt.Fprint(f.Writer, buf.String())
	return nil
}
