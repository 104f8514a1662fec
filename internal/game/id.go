package game

import (
	"fmt"

	"github.com/google/uuid"
)

// ID identifies a game. It is the key of the event stream and of the board.
type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

// ParseID accepts any UUID spelling and returns the canonical lower-case form.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrGameNotFound, s)
	}
	return ID(u.String()), nil
}

func (id ID) String() string { return string(id) }
