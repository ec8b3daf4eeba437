package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once the root has loaded config.
type app struct {
	cfg       appConfig
	log       *slog.Logger
	openStore storeOpener
}

func newRootCmd(open storeOpener) *cobra.Command {
	a := &app{openStore: open}

	root := &cobra.Command{
		Use:   "triage",
		Short: "Collect and aggregate endpoint artifacts into sessions",
		Long: `triage receives artifact fragments from collectors, merges them into one
session per session_id and exposes the result to operators.

Configuration comes from the environment (and a .env file when present).
STORE_DRIVER selects the backend: memory, mongo, redis or postgres.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("store") {
				cfg.StoreDriver, _ = cmd.Flags().GetString("store")
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, log
			return nil
		},
	}
	root.PersistentFlags().String("store", "", "Override STORE_DRIVER (memory, mongo, redis, postgres)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newSessionsCmd(a),
	)
	return root
}
