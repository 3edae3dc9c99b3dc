// File: cmd/codex/exec.go
// Brief: CLI command wiring and implementation for 'exec'.

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/example/codex/internal/advisory"
	"github.com/example/codex/internal/relay"
	"github.com/example/codex/internal/stack"
)

func newExecCommand(a *app) *cobra.Command {
	var (
		stackFile string
		payload   string
	)
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run a stack's first agent directly and print its output",
		Long: `exec resolves one stack file (includes merged), runs the advisor bound to its
first agent against --payload, and prints the agent artifact. Nothing is
written to disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if stackFile == "" {
				return errors.New("--stack-file is required")
			}
			path, err := a.path(stackFile)
			if err != nil {
				return err
			}
			doc, err := stack.ResolveFile(path)
			if err != nil {
				return err
			}
			pol, err := a.loadPolicy()
			if err != nil {
				return err
			}
			parsed, err := relay.ParsePayload(payload, 0)
			if err != nil {
				return err
			}
			exec, err := advisory.NewExecutor(doc, pol.ExecutorPolicy())
			if err != nil {
				return err
			}
			a.log.V(1).Info("executing agent", "agent", exec.Agent().Name, "stack", path)
			return writeJSON(cmd.OutOrStdout(), exec.Run(advisory.NewPayload(parsed)))
		},
	}
	cmd.Flags().StringVar(&stackFile, "stack-file", "", "Stack file to execute (required)")
	cmd.Flags().StringVar(&payload, "payload", "{}", "JSON object payload")
	return cmd
}
