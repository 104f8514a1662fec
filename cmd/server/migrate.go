package main

import (
	"errors"

	"example.com/mastermind/internal/migrate"
	"github.com/spf13/cobra"
)

func migrateCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations to Postgres (DATABASE_URL)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return errors.New("DATABASE_URL is empty")
			}
			return migrate.Up(cmd.Context(), cfg.Postgres.URL, log)
		},
	}
}
