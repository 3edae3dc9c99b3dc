// File: cmd/codex/stack.go
// Brief: CLI command wiring and implementation for 'stack' (resolve, find).

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/codex/internal/stack"
)

func newStackCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Inspect stack files",
	}
	cmd.AddCommand(newStackResolveCommand(a), newStackFindCommand(a))
	return cmd
}

func newStackResolveCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "resolve FILE",
		Short: "Print a stack file with all includes merged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.path(args[0])
			if err != nil {
				return err
			}
			doc, err := stack.ResolveFile(path)
			if err != nil {
				return err
			}
			return printStack(cmd.OutOrStdout(), format, path, doc)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "Output format (yaml, json)")
	return cmd
}

func newStackFindCommand(a *app) *cobra.Command {
	var (
		persona   string
		role      string
		stacksDir string
		format    string
	)
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Show which stack file serves a persona/role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if persona == "" || role == "" {
				return errors.New("--persona and --role are required")
			}
			dir, err := a.path(stacksDir)
			if err != nil {
				return err
			}
			doc, path, err := stack.Find(stack.FindOptions{
				Persona:    persona,
				Role:       role,
				SearchRoot: dir,
				BaseRoot:   a.root,
				Log:        a.log.WithName("stack"),
			})
			if err != nil {
				return err
			}
			return printStack(cmd.OutOrStdout(), format, path, doc)
		},
	}
	cmd.Flags().StringVar(&persona, "persona", "", "Persona to match (required)")
	cmd.Flags().StringVar(&role, "role", "", "Role to match (required)")
	cmd.Flags().StringVar(&stacksDir, "stacks-dir", "stacks", "Directory scanned for stack files")
	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "Output format (yaml, json)")
	return cmd
}

func printStack(w io.Writer, format, path string, doc stack.Document) error {
	switch format {
	case "json":
		return writeJSON(w, map[string]any{"path": path, "stack": doc})
	case "yaml", "":
		fmt.Fprintf(w, "# %s\n", path)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any(doc)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q (expected yaml or json)", format)
	}
}
