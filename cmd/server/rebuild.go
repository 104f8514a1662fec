package main

import (
	"encoding/json"
	"fmt"

	"example.com/mastermind/internal/app"
	"example.com/mastermind/internal/game"
	"github.com/spf13/cobra"
)

func rebuildCmd(load loadFunc) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "rebuild <game-id>",
		Short: "Refold a game's decoding board from its event log",
		Long: `Refold a game's decoding board from its event log and write it over
the stored board.

Use it when the projector logged an out of sequence event for a game: that
board is left untouched until it is rebuilt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := game.ParseID(args[0])
			if err != nil {
				return fmt.Errorf("invalid game id %q", args[0])
			}

			cfg, log, err := load()
			if err != nil {
				return err
			}
			if cfg.Storage.EventLog == "memory" || cfg.Storage.ReadModel == "memory" {
				return fmt.Errorf("rebuild needs persistent storage (event log %q, read model %q)", cfg.Storage.EventLog, cfg.Storage.ReadModel)
			}

			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			b, err := a.Rebuild(cmd.Context(), id)
			if err != nil {
				return err
			}
			if quiet {
				return nil
			}
			out, err := json.MarshalIndent(b, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the rebuilt board")
	return cmd
}
