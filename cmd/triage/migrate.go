package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/triage/core/config"
	"github.com/dmitrymomot/triage/integration/database/pg"
	pgstore "github.com/dmitrymomot/triage/internal/store/postgres"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema migrations",
		Long:  "Applies the embedded migrations to the database at PG_CONN_URL. Safe to run repeatedly.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg pg.Config
			if err := config.Load(&cfg); err != nil {
				return err
			}
			pool, err := pg.Connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			return pg.Migrate(cmd.Context(), pool, pgstore.Migrations(), cfg, a.log)
		},
	}
}
