package board

import "example.com/mastermind/internal/game"

// Move is one row of the board: the guess and the key pegs it earned.
type Move struct {
	Guess    []string     `json:"guess"`
	Feedback []string     `json:"feedback"`
	Outcome  game.Outcome `json:"outcome"`
}

// DecodingBoard is the read model of a single game. Version is the number of
// events folded into it, which is also the seq of the last one.
type DecodingBoard struct {
	GameID   game.ID `json:"gameId"`
	MaxMoves int     `json:"maxMoves"`
	Moves    []Move  `json:"moves"`
	Version  uint64  `json:"version"`
}

func (b DecodingBoard) Outcome() game.Outcome {
	if len(b.Moves) == 0 {
		return game.InProgress
	}
	return b.Moves[len(b.Moves)-1].Outcome
}

func (b DecodingBoard) MovesLeft() int {
	if left := b.MaxMoves - len(b.Moves); left > 0 && !b.Outcome().Finished() {
		return left
	}
	return 0
}

// Clone returns a deep copy, so stores can hand out boards without sharing
// the moves slice.
func (b DecodingBoard) Clone() DecodingBoard {
	out := b
	out.Moves = make([]Move, len(b.Moves))
	for i, m := range b.Moves {
		out.Moves[i] = Move{
			Guess:    append([]string(nil), m.Guess...),
			Feedback: append([]string{}, m.Feedback...),
			Outcome:  m.Outcome,
		}
	}
	return out
}
