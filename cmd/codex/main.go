// main.go bootstraps codex: it builds the root Cobra command, layers env/config-file defaults over flags, and executes with a signal-aware context.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/codex/internal/advisory"
	"github.com/example/codex/internal/logging"
	"github.com/example/codex/internal/policy"
	"github.com/example/codex/internal/relay"
	"github.com/example/codex/internal/runstore"
	"github.com/example/codex/internal/stack"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(os.Stderr, err)
	if err != nil {
		os.Exit(1)
	}
}

// app holds the global flags and the state derived from them in
// PersistentPreRunE.
type app struct {
	root     string
	logLevel string

	log logr.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{logLevel: "info"}
	v := newViper()
	cmd := &cobra.Command{
		Use:           "codex",
		Short:         "Resolve persona stacks, relay payloads through advisors, and digest run vaults",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyViper(v, cmd); err != nil {
				return err
			}
			log, err := logging.NewTo(cmd.ErrOrStderr(), a.logLevel)
			if err != nil {
				return err
			}
			a.log = log
			return a.resolveRoot()
		},
	}
	cmd.PersistentFlags().StringVar(&a.root, "root", "", "Process root that relative paths resolve against (default: current directory)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", a.logLevel, "Log level for codex output (debug, info, warn, error)")

	cmd.AddCommand(
		newRelayCommand(a),
		newLogCommand(a),
		newDigestCommand(a),
		newExecCommand(a),
		newStackCommand(a),
		newServeCommand(a),
		newVersionCommand(),
	)
	cmd.Example = `  # Relay a payload for the strategist/advisor persona into a fresh vault run
  codex relay --persona strategist --role advisor --vault vault --payload '{"objectives":["ship v1"]}'

  # Log the run with environment metadata, then digest the last five runs
  codex log --run-dir vault/runs/20261019T120000Z-1a2b3c4d --record-env
  codex digest --vault vault --limit 5`
	return cmd
}

func (a *app) resolveRoot() error {
	root := strings.TrimSpace(a.root)
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		root = wd
	}
	expanded, err := homedir.Expand(root)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return err
	}
	a.root = abs
	return nil
}

// path expands ~ and anchors relative paths at the process root.
func (a *app) path(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded), nil
	}
	return filepath.Join(a.root, expanded), nil
}

func (a *app) loadPolicy() (*policy.Policy, error) {
	return policy.LoadFromRoot(a.root)
}

func (a *app) store() runstore.FS {
	return runstore.NewFS(a.root)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("CODEX")
	v.AutomaticEnv()
	configureConfigFile(v, os.Getenv("CODEX_CONFIG"))
	return v
}

// applyViper fills every flag the user did not set from CODEX_* env vars or
// the config file.
func applyViper(v *viper.Viper, cmd *cobra.Command) error {
	flagSets := []*pflag.FlagSet{cmd.Flags(), cmd.InheritedFlags()}
	for _, fs := range flagSets {
		if err := v.BindPFlags(fs); err != nil {
			return err
		}
	}
	if err := readConfigFile(v, os.Getenv("CODEX_CONFIG") != ""); err != nil {
		return err
	}
	var setErr error
	for _, fs := range flagSets {
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Changed || !v.IsSet(f.Name) {
				return
			}
			val := fmt.Sprintf("%v", v.Get(f.Name))
			if val == "" || val == f.DefValue {
				return
			}
			if err := fs.Set(f.Name, val); err != nil && setErr == nil {
				setErr = fmt.Errorf("apply %s from environment/config: %w", f.Name, err)
			}
		})
	}
	return setErr
}

func configureConfigFile(v *viper.Viper, explicitPath string) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		return
	}
	v.SetConfigName("config")
	for _, dir := range configSearchDirs() {
		v.AddConfigPath(dir)
	}
}

func readConfigFile(v *viper.Viper, strict bool) error {
	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if errors.As(err, &cfgErr) && !strict {
			return nil
		}
		return err
	}
	return nil
}

func configSearchDirs() []string {
	added := make(map[string]struct{})
	var dirs []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := added[path]; ok {
			return
		}
		added[path] = struct{}{}
		dirs = append(dirs, path)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		add(filepath.Join(xdg, "codex"))
	}
	if home, err := homedir.Dir(); err == nil && home != "" {
		add(filepath.Join(home, ".config", "codex"))
		add(filepath.Join(home, ".codex"))
	}
	return dirs
}

func handleError(w io.Writer, err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	message := err.Error()
	var (
		cycle    *stack.CycleError
		lookup   *stack.LookupError
		tooLarge *relay.PayloadTooLargeError
		shape    *relay.PayloadShapeError
		missing  *runstore.MissingArtifactError
	)
	switch {
	case errors.As(err, &cycle):
		message = fmt.Sprintf("%s\nHint: break the loop by removing one of the include edges above.", err)
	case errors.As(err, &lookup):
		message = fmt.Sprintf("%s\nHint: check --stacks-dir, or pass --stack-file to skip persona/role matching.", err)
	case errors.As(err, &tooLarge):
		message = fmt.Sprintf("%s\nHint: shrink the payload or raise relay.max_payload_bytes in %s.", err, policy.RelPath)
	case errors.As(err, &shape):
		message = fmt.Sprintf("%s\nHint: --payload must be a JSON object, e.g. '{\"objectives\":[\"...\"]}'.", err)
	case errors.As(err, &missing):
		message = fmt.Sprintf("%s\nHint: run 'codex relay' for this run directory first.", err)
	case errors.Is(err, advisory.ErrNoAgents):
		message = fmt.Sprintf("%s\nHint: declare at least one entry under agents: in the stack file.", err)
	}
	fmt.Fprintf(w, "Error: %s\n", message)
}
