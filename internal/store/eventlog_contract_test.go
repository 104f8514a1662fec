package store

import (
	"context"
	"testing"

	"example.com/mastermind/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventLogContract(t *testing.T, log game.EventLog) {
	t.Helper()
	ctx := context.Background()
	id := game.NewID()

	empty, err := log.ReadAll(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, empty)

	started, err := game.NewRecord(id, game.GameStarted{Secret: game.NewCode(game.Red, game.Blue, game.Yellow, game.Blue), MaxMoves: 12}, "")
	require.NoError(t, err)
	out, err := log.Append(ctx, id, 0, []game.Record{started})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(1), out[0].Seq)

	made := game.GuessMade{
		Guess:    game.NewCode(game.Red, game.Red, game.Red, game.Red),
		Feedback: game.Feedback{Outcome: game.InProgress, ExactHits: 1},
	}
	guess, err := game.NewRecord(id, made, "cmd-1")
	require.NoError(t, err)

	_, err = log.Append(ctx, id, 0, []game.Record{guess})
	require.ErrorIs(t, err, game.ErrConcurrencyConflict, "stale expected seq")
	_, err = log.Append(ctx, id, 4, []game.Record{guess})
	require.ErrorIs(t, err, game.ErrConcurrencyConflict, "expected seq ahead of the stream")

	out, err = log.Append(ctx, id, 1, []game.Record{guess})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), out[0].Seq)

	all, err := log.ReadAll(ctx, id)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []uint64{1, 2}, []uint64{all[0].Seq, all[1].Seq})
	assert.Equal(t, "", all[0].CommandID)
	assert.Equal(t, "cmd-1", all[1].CommandID)
	assert.True(t, out[0].RecordedAt.Equal(all[1].RecordedAt), "recorded at %v, read back %v", out[0].RecordedAt, all[1].RecordedAt)

	evt, err := all[1].Event()
	require.NoError(t, err)
	assert.Equal(t, made, evt)

	g, err := game.Load(id, all)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), g.Version())

	other, err := log.ReadAll(ctx, game.NewID())
	require.NoError(t, err)
	assert.Empty(t, other)
}
