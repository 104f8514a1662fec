package game

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors: the caller can fix the command and try again.
var (
	ErrIncompleteCode     = errors.New("incomplete code")
	ErrGameFinished       = errors.New("The game has already finished.")
	ErrInvalidCode        = errors.New("invalid code")
	ErrInvalidMoves       = errors.New("number of moves must be at least 1")
	ErrGameAlreadyStarted = errors.New("game already started")
)

var ErrGameNotFound = errors.New("game not found")

// Infrastructure errors. ErrStorage wraps every failure of the event log so the
// transport can tell it apart from a rejected command. ErrTimeout and
// ErrCanceled wrap the command's own context ending instead.
var (
	ErrStorage             = errors.New("storage failure")
	ErrConcurrencyConflict = errors.New("concurrent append to game stream")
	ErrTimeout             = errors.New("command timed out")
	ErrCanceled            = errors.New("command canceled")
)

type IncompleteCodeError struct {
	Expected int
	Actual   int
}

func (e *IncompleteCodeError) Error() string {
	return fmt.Sprintf("The code is %d colours long but expected it to be %d.", e.Actual, e.Expected)
}

func (e *IncompleteCodeError) Is(target error) bool { return target == ErrIncompleteCode }

type InvalidCodeError struct {
	Names []string
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("Invalid guess code: %s. Allowed colours: %s.", strings.Join(e.Names, ", "), allowedColours())
}

func (e *InvalidCodeError) Is(target error) bool { return target == ErrInvalidCode }

// IsValidation reports whether err is a rejected command rather than a failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrIncompleteCode) ||
		errors.Is(err, ErrGameFinished) ||
		errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrInvalidMoves) ||
		errors.Is(err, ErrGameAlreadyStarted)
}
