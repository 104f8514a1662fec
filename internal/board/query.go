package board

import (
	"context"
	"errors"

	"example.com/mastermind/internal/game"
)

type Query struct {
	store Store
}

func NewQuery(store Store) *Query {
	return &Query{store: store}
}

// FindDecodingBoard returns false for a game the read side has never seen. A
// started game without guesses is found, with no moves.
func (q *Query) FindDecodingBoard(ctx context.Context, id game.ID) (DecodingBoard, bool, error) {
	b, err := q.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return DecodingBoard{}, false, nil
	}
	if err != nil {
		return DecodingBoard{}, false, err
	}
	return b, true, nil
}
