// File: cmd/codex/relay.go
// Brief: CLI command wiring and implementation for 'relay'.

package main

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/codex/internal/digest"
	"github.com/example/codex/internal/relay"
	"github.com/example/codex/internal/runstore"
)

func newRelayCommand(a *app) *cobra.Command {
	var (
		persona   string
		role      string
		payload   string
		stacksDir string
		stackFile string
		runDir    string
		vault     string
	)
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Resolve the persona/role stack, run its first agent, and record the run",
		Long: `relay finds the stack for --persona/--role, checks the payload against relay
policy, runs the advisor bound to the stack's first agent, and writes
outputs/<agent>.json plus relay.json into the run directory. The run report is
printed to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if persona == "" || role == "" {
				return errors.New("--persona and --role are required")
			}
			if runDir == "" && vault == "" {
				return errors.New("one of --run-dir or --vault is required")
			}
			pol, err := a.loadPolicy()
			if err != nil {
				return err
			}
			stacks, err := a.path(stacksDir)
			if err != nil {
				return err
			}
			target, err := a.runTarget(runDir, vault)
			if err != nil {
				return err
			}
			orch := &relay.Orchestrator{
				Root:      a.root,
				StacksDir: stacks,
				Policy:    pol,
				Store:     a.store(),
				Log:       a.log.WithName("relay"),
			}
			report, err := orch.Execute(relay.Request{
				Persona:   persona,
				Role:      role,
				Payload:   payload,
				RunDir:    target,
				StackFile: stackFile,
			})
			if err != nil {
				return err
			}
			if runDir == "" {
				noteColor.Fprintf(cmd.ErrOrStderr(), "run directory: %s\n", target)
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&persona, "persona", "", "Persona to route to (required)")
	cmd.Flags().StringVar(&role, "role", "", "Role to route to (required)")
	cmd.Flags().StringVar(&payload, "payload", "{}", "JSON object payload")
	cmd.Flags().StringVar(&stacksDir, "stacks-dir", "stacks", "Directory scanned for stack files")
	cmd.Flags().StringVar(&stackFile, "stack-file", "", "Use this stack file instead of scanning --stacks-dir")
	cmd.Flags().StringVar(&runDir, "run-dir", "", "Run directory to write artifacts into")
	cmd.Flags().StringVar(&vault, "vault", "", "Allocate a fresh run directory under <vault>/runs when --run-dir is not set")
	return cmd
}

// runTarget returns the run directory, allocating a timestamped one under the
// vault when no explicit directory was given.
func (a *app) runTarget(runDir, vault string) (string, error) {
	if runDir != "" {
		return a.path(runDir)
	}
	base, err := a.path(vault)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, digest.RunsDir, runstore.NewRunID(time.Now())), nil
}
