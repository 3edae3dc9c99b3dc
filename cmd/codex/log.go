// File: cmd/codex/log.go
// Brief: CLI command wiring and implementation for 'log'.

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/example/codex/internal/runlog"
)

func newLogCommand(a *app) *cobra.Command {
	var (
		runDir    string
		recordEnv bool
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Write a redacted logger.json for a completed relay run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runDir == "" {
				return errors.New("--run-dir is required")
			}
			pol, err := a.loadPolicy()
			if err != nil {
				return err
			}
			dir, err := a.path(runDir)
			if err != nil {
				return err
			}
			l := &runlog.Logger{
				Store:     a.store(),
				Policy:    pol,
				SourceDir: a.root,
				Logr:      a.log.WithName("logger"),
			}
			path, err := l.Log(dir, recordEnv)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), runlog.Confirmation{Logged: true, LoggerFile: path})
		},
	}
	cmd.Flags().StringVar(&runDir, "run-dir", "", "Run directory produced by 'codex relay' (required)")
	cmd.Flags().BoolVar(&recordEnv, "record-env", false, "Include host and source revision metadata")
	return cmd
}
