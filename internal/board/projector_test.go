package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"example.com/mastermind/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inlineProjector(store Store, feed *Feed) *Projector {
	cfg := DefaultProjectorConfig()
	cfg.Workers = 0
	cfg.RetryBase = time.Millisecond
	return NewProjector(cfg, store, nil, feed, quietLogger())
}

func TestProjector_Inline(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	p := inlineProjector(store, nil)

	id, records := play(t, secretRBYB, 12, guessRRGO, guessBRGO)
	require.NoError(t, p.Dispatch(ctx, records[:1]))

	b, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, b.Moves)
	assert.Equal(t, uint64(1), b.Version)

	require.NoError(t, p.Dispatch(ctx, records[1:]))
	b, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, b.Moves, 2)
	assert.Equal(t, uint64(3), b.Version)
}

func TestProjector_RedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	p := inlineProjector(store, nil)

	id, records := play(t, secretRBYB, 12, guessRRGO, guessBRGO)
	require.NoError(t, p.Dispatch(ctx, records))
	once, err := store.Get(ctx, id)
	require.NoError(t, err)

	require.NoError(t, p.Dispatch(ctx, records))
	require.NoError(t, p.Dispatch(ctx, records[1:2]))
	twice, err := store.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestProjector_GapLeavesBoardAlone(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	p := inlineProjector(store, nil)

	id, records := play(t, secretRBYB, 12, guessRRGO, guessBRGO)
	require.NoError(t, p.Dispatch(ctx, records[:1]))

	err := p.Dispatch(ctx, records[2:])
	require.ErrorIs(t, err, ErrOutOfSequence)

	b, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), b.Version)
	assert.Empty(t, b.Moves)
}

// racyStore makes the first n Puts lose to a concurrent writer.
type racyStore struct {
	*InMemoryStore
	mu        sync.Mutex
	conflicts int
	puts      int
}

func (s *racyStore) Put(ctx context.Context, b DecodingBoard, expected uint64) error {
	s.mu.Lock()
	s.puts++
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return ErrVersionConflict
	}
	s.mu.Unlock()
	return s.InMemoryStore.Put(ctx, b, expected)
}

func TestProjector_RetriesVersionConflicts(t *testing.T) {
	ctx := context.Background()
	store := &racyStore{InMemoryStore: NewInMemoryStore(), conflicts: 2}
	p := inlineProjector(store, nil)

	id, records := play(t, secretRBYB, 12)
	require.NoError(t, p.Dispatch(ctx, records))

	b, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), b.Version)
	assert.Equal(t, 3, store.puts)
}

func TestProjector_GivesUpAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	store := &racyStore{InMemoryStore: NewInMemoryStore(), conflicts: 100}
	cfg := DefaultProjectorConfig()
	cfg.Workers = 0
	cfg.MaxRetries = 2
	cfg.RetryBase = time.Millisecond
	p := NewProjector(cfg, store, nil, nil, quietLogger())

	_, records := play(t, secretRBYB, 12)
	err := p.Dispatch(ctx, records)
	require.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 3, store.puts)
}

type brokenStore struct{ InMemoryStore }

func (*brokenStore) Get(context.Context, game.ID) (DecodingBoard, error) {
	return DecodingBoard{}, errors.New("connection reset")
}

func TestProjector_StoreFailureMarksGameStale(t *testing.T) {
	p := inlineProjector(&brokenStore{}, nil)
	id, records := play(t, secretRBYB, 12)

	err := p.Dispatch(context.Background(), records)
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection reset")
	assert.NotErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, []game.ID{id}, p.Stale())
}

func TestProjector_Workers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewInMemoryStore()
	feed := NewFeed(16)
	cfg := DefaultProjectorConfig()
	cfg.Workers = 3
	p := NewProjector(cfg, store, nil, feed, quietLogger())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	type stream struct {
		id      game.ID
		records []game.Record
	}
	var streams []stream
	for i := 0; i < 10; i++ {
		id, records := play(t, secretRBYB, 12, guessRRGO, guessBRGO, secretRBYB)
		streams = append(streams, stream{id, records})
	}

	watched := streams[0].id
	updates, stop := feed.Subscribe(watched)
	defer stop()

	// dispatch one event at a time per game, interleaving games
	for seq := 0; seq < 4; seq++ {
		for _, s := range streams {
			require.NoError(t, p.Dispatch(ctx, s.records[seq:seq+1]))
		}
	}

	require.Eventually(t, func() bool {
		for _, s := range streams {
			b, err := store.Get(ctx, s.id)
			if err != nil || b.Version != 4 {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)

	for _, s := range streams {
		b, err := store.Get(ctx, s.id)
		require.NoError(t, err)
		require.Len(t, b.Moves, 3)
		assert.Equal(t, game.Won, b.Outcome())
	}

	var versions []uint64
	for len(versions) < 4 {
		select {
		case b := <-updates:
			versions = append(versions, b.Version)
		case <-time.After(time.Second):
			t.Fatalf("feed delivered %v, want 4 updates", versions)
		}
	}
	assert.Equal(t, []uint64{1, 2, 3, 4}, versions)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("projector did not stop")
	}
}

func TestProjector_DispatchRespectsContext(t *testing.T) {
	cfg := DefaultProjectorConfig()
	cfg.Workers = 1
	cfg.QueueSize = 0
	p := NewProjector(cfg, NewInMemoryStore(), nil, nil, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	id, records := play(t, secretRBYB, 12)
	err := p.Dispatch(ctx, records)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []game.ID{id}, p.Stale())
}
