package game

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedSecret(pegs ...Colour) CodeMaker {
	return CodeMakerFunc(func(int) Code { return NewCode(pegs...) })
}

type recordingDispatcher struct {
	mu      sync.Mutex
	records []Record
}

func (d *recordingDispatcher) Dispatch(_ context.Context, records []Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, records...)
	return nil
}

func (d *recordingDispatcher) seqs() []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]uint64, len(d.records))
	for i, r := range d.records {
		out[i] = r.Seq
	}
	return out
}

type failingLog struct{ err error }

func (l failingLog) Append(context.Context, ID, uint64, []Record) ([]Record, error) {
	return nil, l.err
}

func (l failingLog) ReadAll(context.Context, ID) ([]Record, error) { return nil, l.err }

func newTestService(t *testing.T, events EventLog, d Dispatcher) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CommandTimeout = time.Second
	return NewService(cfg, events, d, fixedSecret(Red, Blue, Yellow, Blue), quietLogger())
}

func TestService_StartAndGuess(t *testing.T) {
	ctx := context.Background()
	events := NewInMemoryEventLog()
	d := &recordingDispatcher{}
	svc := newTestService(t, events, d)

	id, err := svc.StartGame(ctx, 0)
	require.NoError(t, err)

	g, err := svc.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 12, g.MaxMoves(), "default moves")
	assert.Equal(t, PhaseInProgress, g.Phase())

	fb, err := svc.MakeGuess(ctx, id, NewCode(Blue, Red, Blue, Yellow), "")
	require.NoError(t, err)
	assert.Equal(t, Feedback{Outcome: InProgress, ColourHits: 4}, fb)

	fb, err = svc.MakeGuess(ctx, id, NewCode(Red, Blue, Yellow, Blue), "")
	require.NoError(t, err)
	assert.Equal(t, Won, fb.Outcome)

	_, err = svc.MakeGuess(ctx, id, NewCode(Red, Blue, Yellow, Blue), "")
	require.ErrorIs(t, err, ErrGameFinished)

	assert.Equal(t, []uint64{1, 2, 3}, d.seqs())

	records, err := events.ReadAll(ctx, id)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, TypeGameStarted, records[0].Type)
	assert.Equal(t, TypeGuessMade, records[2].Type)
}

func TestService_CustomMoves(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewInMemoryEventLog(), nil)

	id, err := svc.StartGame(ctx, 2)
	require.NoError(t, err)

	_, err = svc.MakeGuess(ctx, id, NewCode(Red, Red, Red, Red), "")
	require.NoError(t, err)
	fb, err := svc.MakeGuess(ctx, id, NewCode(Red, Red, Red, Red), "")
	require.NoError(t, err)
	assert.Equal(t, Lost, fb.Outcome)
}

func TestService_RejectedGuessAppendsNothing(t *testing.T) {
	ctx := context.Background()
	events := NewInMemoryEventLog()
	d := &recordingDispatcher{}
	svc := newTestService(t, events, d)

	id, err := svc.StartGame(ctx, 0)
	require.NoError(t, err)

	_, err = svc.MakeGuess(ctx, id, NewCode(Red, Red), "")
	require.ErrorIs(t, err, ErrIncompleteCode)
	assert.True(t, IsValidation(err))

	records, err := events.ReadAll(ctx, id)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, []uint64{1}, d.seqs())
}

func TestService_UnknownGame(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewInMemoryEventLog(), nil)

	_, err := svc.MakeGuess(ctx, NewID(), NewCode(Red, Red, Red, Red), "")
	require.ErrorIs(t, err, ErrGameNotFound)
	assert.False(t, IsValidation(err))

	_, err = svc.Load(ctx, NewID())
	require.ErrorIs(t, err, ErrGameNotFound)
}

func TestService_IdempotentRetry(t *testing.T) {
	ctx := context.Background()
	events := NewInMemoryEventLog()
	svc := newTestService(t, events, nil)

	id, err := svc.StartGame(ctx, 1)
	require.NoError(t, err)

	first, err := svc.MakeGuess(ctx, id, NewCode(Green, Green, Green, Green), "cmd-1")
	require.NoError(t, err)
	assert.Equal(t, Lost, first.Outcome)

	// the game is over, but the retry of the command that ended it still
	// gets its original answer
	again, err := svc.MakeGuess(ctx, id, NewCode(Green, Green, Green, Green), "cmd-1")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	_, err = svc.MakeGuess(ctx, id, NewCode(Green, Green, Green, Green), "cmd-2")
	require.ErrorIs(t, err, ErrGameFinished)

	records, err := events.ReadAll(ctx, id)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "cmd-1", records[1].CommandID)
}

func TestService_CanceledCommand(t *testing.T) {
	ctx := context.Background()
	events := NewInMemoryEventLog()
	svc := newTestService(t, events, nil)

	id, err := svc.StartGame(ctx, 0)
	require.NoError(t, err)

	gone, cancel := context.WithCancel(ctx)
	cancel()

	_, err = svc.MakeGuess(gone, id, NewCode(Red, Red, Red, Red), "")
	require.ErrorIs(t, err, ErrCanceled)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, ErrTimeout)

	_, err = svc.StartGame(gone, 0)
	require.ErrorIs(t, err, ErrCanceled)

	records, err := events.ReadAll(ctx, id)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestService_StorageFailure(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, failingLog{err: errors.New("connection refused")}, nil)

	_, err := svc.StartGame(ctx, 0)
	require.ErrorIs(t, err, ErrStorage)
	assert.False(t, IsValidation(err))

	_, err = svc.MakeGuess(ctx, NewID(), NewCode(Red, Red, Red, Red), "")
	require.ErrorIs(t, err, ErrStorage)
}

func TestService_TimeoutWhileGameBusy(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.CommandTimeout = 50 * time.Millisecond
	svc := NewService(cfg, NewInMemoryEventLog(), nil, fixedSecret(Red, Red, Red, Red), quietLogger())

	id, err := svc.StartGame(ctx, 0)
	require.NoError(t, err)

	unlock, err := svc.locks.lock(ctx, id)
	require.NoError(t, err)

	_, err = svc.MakeGuess(ctx, id, NewCode(Red, Red, Red, Red), "")
	require.ErrorIs(t, err, ErrTimeout)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()

	fb, err := svc.MakeGuess(ctx, id, NewCode(Red, Red, Red, Red), "")
	require.NoError(t, err)
	assert.Equal(t, Won, fb.Outcome)
}

func TestService_ConcurrentGuessesAreSerialized(t *testing.T) {
	ctx := context.Background()
	events := NewInMemoryEventLog()
	d := &recordingDispatcher{}
	svc := newTestService(t, events, d)

	const moves = 12
	id, err := svc.StartGame(ctx, moves)
	require.NoError(t, err)

	const players = 30
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		finished int
	)
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.MakeGuess(ctx, id, NewCode(Green, Green, Green, Green), "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrGameFinished):
				finished++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, moves, accepted)
	assert.Equal(t, players-moves, finished)

	records, err := events.ReadAll(ctx, id)
	require.NoError(t, err)
	require.Len(t, records, moves+1)
	for i, r := range records {
		assert.Equal(t, uint64(i+1), r.Seq)
	}
	assert.Equal(t, moves+1, len(d.seqs()))
	assert.Equal(t, 0, svc.locks.size())
}
