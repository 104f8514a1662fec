package game

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	TypeGameStarted EventType = "game.started"
	TypeGuessMade   EventType = "game.guess_made"
)

// Event is one of GameStarted or GuessMade.
type Event interface {
	Type() EventType
	isEvent()
}

type GameStarted struct {
	Secret   Code `json:"secret"`
	MaxMoves int  `json:"maxMoves"`
}

type GuessMade struct {
	Guess    Code     `json:"guess"`
	Feedback Feedback `json:"feedback"`
}

func (GameStarted) Type() EventType { return TypeGameStarted }
func (GuessMade) Type() EventType   { return TypeGuessMade }

func (GameStarted) isEvent() {}
func (GuessMade) isEvent()   {}

// Record is an event as stored in a game's stream. Seq starts at 1 and grows
// by one per event; it is assigned by the event log on append.
type Record struct {
	GameID     ID              `json:"gameId"`
	Seq        uint64          `json:"seq"`
	Type       EventType       `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	CommandID  string          `json:"commandId,omitempty"`
	RecordedAt time.Time       `json:"recordedAt"`
}

func NewRecord(id ID, evt Event, commandID string) (Record, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s: %w", evt.Type(), err)
	}
	return Record{
		GameID:    id,
		Type:      evt.Type(),
		Payload:   payload,
		CommandID: commandID,
	}, nil
}

// Event decodes the payload into its concrete event type.
func (r Record) Event() (Event, error) {
	switch r.Type {
	case TypeGameStarted:
		var e GameStarted
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s #%d: %w", r.Type, r.Seq, err)
		}
		return e, nil
	case TypeGuessMade:
		var e GuessMade
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s #%d: %w", r.Type, r.Seq, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unexpected event type %q in stream %s", r.Type, r.GameID)
	}
}
