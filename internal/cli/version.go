package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/chord/internal/ir"
)

// VersionInfo is the payload of the version command.
type VersionInfo struct {
	Engine string `json:"engine"`
	IR     string `json:"ir"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the engine and IR versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			info := VersionInfo{Engine: ir.EngineVersion, IR: ir.IRVersion}
			if f.JSON() {
				return f.Success(info)
			}
			fmt.Fprintf(f.Writer, "chord v%s (IR %s)\n", info.Engine, info.IR)
			return nil
		},
	}
}
