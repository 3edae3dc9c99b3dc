// File: cmd/codex/version.go
// Brief: CLI command wiring and implementation for 'version'.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/codex/internal/version"
)

func newVersionCommand() *cobra.Command {
	var (
		short  bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the codex version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			switch {
			case short:
				fmt.Fprintln(cmd.OutOrStdout(), info.Version)
			case asJSON:
				return writeJSON(cmd.OutOrStdout(), info)
			default:
				fmt.Fprintln(cmd.OutOrStdout(), info.String())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print just the version number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build metadata as JSON")
	return cmd
}
