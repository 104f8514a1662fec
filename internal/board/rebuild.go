package board

import (
	"context"
	"errors"
	"fmt"

	"example.com/mastermind/internal/game"
)

// Rebuild refolds a game's whole stream and writes the result over whatever
// board is stored. It is the repair path for a board stuck out of sequence.
func Rebuild(ctx context.Context, events game.EventLog, store Store, id game.ID) (DecodingBoard, error) {
	records, err := events.ReadAll(ctx, id)
	if err != nil {
		return DecodingBoard{}, fmt.Errorf("read stream %s: %w", id, err)
	}
	if len(records) == 0 {
		return DecodingBoard{}, game.ErrGameNotFound
	}

	b, err := Fold(records)
	if err != nil {
		return DecodingBoard{}, fmt.Errorf("fold stream %s: %w", id, err)
	}

	var expected uint64
	current, err := store.Get(ctx, id)
	switch {
	case err == nil:
		expected = current.Version
	case errors.Is(err, ErrNotFound):
	default:
		return DecodingBoard{}, err
	}

	if err := store.Put(ctx, b, expected); err != nil {
		return DecodingBoard{}, fmt.Errorf("write board %s: %w", id, err)
	}
	return b, nil
}
