// File: cmd/codex/digest.go
// Brief: CLI command wiring and implementation for 'digest'.

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/codex/internal/digest"
	"github.com/example/codex/internal/policy"
)

func newDigestCommand(a *app) *cobra.Command {
	var (
		vault  string
		limit  int
		output string
		index  string
	)
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Summarize the most recent runs in a vault",
		Long: `digest scans <vault>/runs and emits one record per run, most recent first.
Runs with missing or unreadable artifacts are still listed with those fields
left empty. --limit overrides digest.max_runs from the policy file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pol, err := a.loadPolicy()
			if err != nil {
				return err
			}
			env, err := policy.LoadEnvironment(filepath.Join(a.root, policy.EnvironmentRelPath))
			if err != nil {
				return err
			}
			vaultDir, err := a.path(vault)
			if err != nil {
				return err
			}
			opts := digest.Options{
				Environment: env,
				Policy:      pol.DigestPolicy(),
				Log:         a.log.WithName("digest"),
			}
			if cmd.Flags().Changed("limit") {
				if limit < 0 {
					return fmt.Errorf("--limit must be >= 0, got %d", limit)
				}
				opts.Limit = &limit
			}
			doc, err := digest.Build(vaultDir, opts)
			if err != nil {
				return err
			}

			if index != "" {
				indexPath, err := a.path(index)
				if err != nil {
					return err
				}
				ix, err := digest.OpenIndex(cmd.Context(), indexPath)
				if err != nil {
					return err
				}
				defer ix.Close()
				if err := ix.Upsert(cmd.Context(), doc); err != nil {
					return err
				}
				noteColor.Fprintf(cmd.ErrOrStderr(), "indexed %d run(s) into %s\n", doc.RunCount, indexPath)
			}

			if output == "" {
				return writeJSON(cmd.OutOrStdout(), doc)
			}
			outPath, err := a.path(output)
			if err != nil {
				return err
			}
			if err := writeJSONFile(outPath, doc); err != nil {
				return err
			}
			okColor.Fprintf(cmd.ErrOrStderr(), "digest of %d run(s) written to %s\n", doc.RunCount, outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&vault, "vault", "vault", "Vault directory containing runs/")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of runs to include (default: digest.max_runs, else all)")
	cmd.Flags().StringVar(&output, "output", "", "Write the digest to this file instead of stdout")
	cmd.Flags().StringVar(&index, "index", "", "Also upsert the records into this sqlite index")
	return cmd
}
