package board

import (
	"errors"
	"fmt"

	"example.com/mastermind/internal/game"
)

var (
	ErrNotFound        = errors.New("board not found")
	ErrVersionConflict = errors.New("board version conflict")
	ErrOutOfSequence   = errors.New("out of sequence event")
)

// OutOfSequenceError means the board skipped an event. The document stays as
// it is until an operator rebuilds it from the event log.
type OutOfSequenceError struct {
	GameID   game.ID
	Previous uint64
	Current  uint64
}

func (e *OutOfSequenceError) Error() string {
	return fmt.Sprintf("out of sequence event received in projection of %s (%d -> %d)", e.GameID, e.Previous, e.Current)
}

func (e *OutOfSequenceError) Is(target error) bool { return target == ErrOutOfSequence }

// CurrentDataFor turns one record into the partial board it contributes.
// A guess carries MaxMoves 0, meaning "keep what is there".
func CurrentDataFor(rec game.Record) (DecodingBoard, error) {
	evt, err := rec.Event()
	if err != nil {
		return DecodingBoard{}, err
	}

	switch e := evt.(type) {
	case game.GameStarted:
		return DecodingBoard{GameID: rec.GameID, MaxMoves: e.MaxMoves, Moves: []Move{}}, nil
	case game.GuessMade:
		return DecodingBoard{GameID: rec.GameID, Moves: []Move{moveFrom(e)}}, nil
	default:
		return DecodingBoard{}, fmt.Errorf("no projection for %s", rec.Type)
	}
}

func moveFrom(e game.GuessMade) Move {
	pegs := e.Feedback.Pegs()
	feedback := make([]string, len(pegs))
	for i, p := range pegs {
		feedback[i] = string(p)
	}
	return Move{
		Guess:    e.Guess.Strings(),
		Feedback: feedback,
		Outcome:  e.Feedback.Outcome,
	}
}

// Merge folds incoming (the data of event incomingVersion) into prev.
//
// prev == nil means there is no document yet; only version 1 may create one.
// A version at or below prevVersion is a redelivery and is dropped (applied is
// false). Anything but prevVersion+1 otherwise is an *OutOfSequenceError.
// The merged board keeps prev's id and max moves; moves are only ever appended.
func Merge(prev *DecodingBoard, prevVersion uint64, incoming DecodingBoard, incomingVersion uint64) (merged DecodingBoard, applied bool, err error) {
	if prev == nil {
		if incomingVersion != 1 {
			return DecodingBoard{}, false, &OutOfSequenceError{GameID: incoming.GameID, Previous: 0, Current: incomingVersion}
		}
		out := incoming.Clone()
		out.Version = incomingVersion
		return out, true, nil
	}

	if incomingVersion <= prevVersion {
		return prev.Clone(), false, nil
	}
	if incomingVersion != prevVersion+1 {
		return DecodingBoard{}, false, &OutOfSequenceError{GameID: prev.GameID, Previous: prevVersion, Current: incomingVersion}
	}

	out := prev.Clone()
	out.Moves = append(out.Moves, incoming.Clone().Moves...)
	out.Version = incomingVersion
	return out, true, nil
}

// Fold builds a board from a whole stream, starting from nothing.
func Fold(records []game.Record) (DecodingBoard, error) {
	var (
		current *DecodingBoard
		version uint64
	)
	for _, rec := range records {
		data, err := CurrentDataFor(rec)
		if err != nil {
			return DecodingBoard{}, err
		}
		next, applied, err := Merge(current, version, data, rec.Seq)
		if err != nil {
			return DecodingBoard{}, err
		}
		if applied {
			current = &next
			version = next.Version
		}
	}
	if current == nil {
		return DecodingBoard{}, ErrNotFound
	}
	return *current, nil
}
