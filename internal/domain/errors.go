package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrQueueEmpty          = errors.New("queue empty")
	ErrPositionUnavailable = errors.New("ledger position unavailable")
	ErrPriceUnavailable    = errors.New("price unavailable")
	ErrAlreadySettled      = errors.New("bet already settled or invalidated")
	ErrMarginTooSmall      = errors.New("settlement deadline inside safety margin")
	ErrIDSpaceExhausted    = errors.New("proposal id namespace exhausted")
	ErrLockHeld            = errors.New("lock already held")
)

// ValidationError is a user-caused failure. The Reason is safe to relay
// verbatim to the person who issued the request; no state was mutated.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Invalid builds a ValidationError with a formatted reason.
func Invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
