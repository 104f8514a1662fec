package board

import (
	"io"
	"log/slog"
	"testing"

	"example.com/mastermind/internal/game"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// play runs a game through the aggregate and returns its stream as the event
// log would store it.
func play(t *testing.T, secret game.Code, moves int, guesses ...game.Code) (game.ID, []game.Record) {
	t.Helper()
	id := game.NewID()
	g := game.New(id)

	events := []game.Event{}
	started, err := g.Start(secret, moves)
	require.NoError(t, err)
	events = append(events, started)
	for _, guess := range guesses {
		made, err := g.Guess(guess)
		require.NoError(t, err)
		events = append(events, made)
	}

	records := make([]game.Record, len(events))
	for i, evt := range events {
		rec, err := game.NewRecord(id, evt, "")
		require.NoError(t, err)
		rec.Seq = uint64(i + 1)
		records[i] = rec
	}
	return id, records
}

var (
	secretRBYB = game.NewCode(game.Red, game.Blue, game.Yellow, game.Blue)
	guessRRGO  = game.NewCode(game.Red, game.Red, game.Green, game.Orange)
	guessBRGO  = game.NewCode(game.Blue, game.Red, game.Green, game.Orange)
)
