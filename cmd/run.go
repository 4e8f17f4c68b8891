package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"catalog_ingest_v1/internal/ingest"
)

func newRunCommand(a *app) *cobra.Command {
	var (
		strategy     string
		supplierKey  string
		verifyReload bool
	)

	ccmd := &cobra.Command{
		Use:   "run",
		Short: "Run one ingest pass over the configured feed",
		Long: `
Runs the pipeline once with the configured (or overridden) strategy and prints
the run summary as JSON. Exits non-zero when the run fails.
`,
		RunE: func(c *cobra.Command, args []string) error {
			opts := ingest.OptionsFromConfig(a.cfg)
			if strategy != "" {
				opts.Strategy = strategy
			}
			if supplierKey != "" {
				opts.SupplierKey = ingest.SupplierKeyMode(supplierKey)
			}
			if c.Flags().Changed("verify-reload") {
				opts.VerifyReload = verifyReload
			}
			if opts.Strategy != ingest.StrategyStreaming && opts.Strategy != ingest.StrategyBulk {
				return fmt.Errorf("unknown strategy %q", opts.Strategy)
			}

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := a.openDB(false)
			if err != nil {
				return err
			}
			reg := newRegistry()
			pipeline, err := a.newPipeline(ctx, db, reg, opts)
			if err != nil {
				return err
			}

			srv, err := a.startStatusServer(db, pipeline, nil, reg)
			if err != nil {
				return err
			}
			defer a.shutdownServer(srv)

			summary, runErr := pipeline.Run(ctx)
			if summary != nil {
				if err := a.printJSON(summary); err != nil {
					a.logger.Warn("print summary failed", zap.Error(err))
				}
			}
			return runErr
		},
	}

	flags := ccmd.Flags()
	flags.StringVarP(&strategy, "strategy", "s", "", "streaming | bulk (overrides ingest.strategy)")
	flags.StringVar(&supplierKey, "supplier-key", "", "tax_mobile | name_location (overrides ingest.supplier_key)")
	flags.BoolVar(&verifyReload, "verify-reload", false, "compare cached keys with the store after each reload")
	return ccmd
}
