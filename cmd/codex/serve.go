// File: cmd/codex/serve.go
// Brief: CLI command wiring and implementation for 'serve'.

package main

import (
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/example/codex/internal/relayserver"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		addr   string
		ledger string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP relay listener",
		Long: `serve accepts tool envelopes on POST /relay and records every request in the
custody ledger. It also exposes /health, /heartbeat and Prometheus /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ledgerPath := filepath.Join(a.root, relayserver.LedgerRelPath)
			if ledger != "" {
				p, err := a.path(ledger)
				if err != nil {
					return err
				}
				ledgerPath = p
			}
			if a.logLevel != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			srv := relayserver.New(relayserver.Options{
				LedgerPath: ledgerPath,
				Log:        a.log.WithName("relayserver"),
			})
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8000", "Listen address")
	cmd.Flags().StringVar(&ledger, "ledger", "", "Custody ledger path (default: <root>/"+relayserver.LedgerRelPath+")")
	return cmd
}
