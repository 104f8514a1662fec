package main

import (
	"os"
	"os/signal"
	"syscall"

	"example.com/mastermind/internal/app"
	"github.com/spf13/cobra"
)

func serveCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the board projection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			if err := a.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			log.Info("server stopped")
			return nil
		},
	}
}
