package board

import (
	"context"
	"sync"

	"example.com/mastermind/internal/game"
)

// Store keeps the latest board per game.
//
// Put writes b (with b.Version as the new version) only if the stored version
// is still expectedVersion, 0 meaning "no board yet". Otherwise it returns
// ErrVersionConflict and leaves the stored board alone.
type Store interface {
	Get(ctx context.Context, id game.ID) (DecodingBoard, error)
	Put(ctx context.Context, b DecodingBoard, expectedVersion uint64) error
}

type InMemoryStore struct {
	mu     sync.Mutex
	boards map[game.ID]DecodingBoard
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{boards: make(map[game.ID]DecodingBoard)}
}

func (s *InMemoryStore) Get(ctx context.Context, id game.ID) (DecodingBoard, error) {
	if err := ctx.Err(); err != nil {
		return DecodingBoard{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[id]
	if !ok {
		return DecodingBoard{}, ErrNotFound
	}
	return b.Clone(), nil
}

func (s *InMemoryStore) Put(ctx context.Context, b DecodingBoard, expectedVersion uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var current uint64
	if prev, ok := s.boards[b.GameID]; ok {
		current = prev.Version
	}
	if current != expectedVersion {
		return ErrVersionConflict
	}
	s.boards[b.GameID] = b.Clone()
	return nil
}
