package flip7

import (
	"errors"
	"fmt"

	"flip7-server/pkg/deck"
)

// ErrValidation is returned for malformed or missing input
var ErrValidation = errors.New("invalid input")

// ErrNotFound is returned when a game or player does not exist
var ErrNotFound = errors.New("not found")

// ErrIllegalAction is returned when an action is not valid for the current phase, turn, or player status
var ErrIllegalAction = errors.New("illegal action")

// ErrAlreadyExists is returned when a game id is already taken
var ErrAlreadyExists = errors.New("already exists")

// ErrEmptyDeck is returned when a draw is attempted with no cards left
var ErrEmptyDeck = fmt.Errorf("empty deck: %w", deck.ErrEndOfDeck)

// ErrInternal is returned for serialization or invariant failures
var ErrInternal = errors.New("internal error")

// Error codes sent over the wire
const (
	CodeValidation    = "validation"
	CodeNotFound      = "notFound"
	CodeIllegalAction = "illegalAction"
	CodeAlreadyExists = "alreadyExists"
	CodeEmptyDeck     = "emptyDeck"
	CodeInternal      = "internal"
)

// Code classifies an error into one of the wire error codes
// Anything that does not wrap a known sentinel is reported as internal
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrIllegalAction):
		return CodeIllegalAction
	case errors.Is(err, ErrAlreadyExists):
		return CodeAlreadyExists
	case errors.Is(err, ErrEmptyDeck):
		return CodeEmptyDeck
	default:
		return CodeInternal
	}
}

// PlayerCountError is an error on the number of players in the game
type PlayerCountError struct {
	Min int
	Max int
	Got int
}

func (p PlayerCountError) Error() string {
	return fmt.Sprintf("expected %d–%d players, got %d", p.Min, p.Max, p.Got)
}

// Unwrap lets PlayerCountError match ErrValidation
func (p PlayerCountError) Unwrap() error {
	return ErrValidation
}

func illegal(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrIllegalAction, fmt.Sprintf(format, a...))
}

func invalid(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, a...))
}

func playerNotFound(playerID string) error {
	return fmt.Errorf("%w: player %q", ErrNotFound, playerID)
}
