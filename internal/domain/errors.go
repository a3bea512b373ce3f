package domain

import (
	"errors"
	"strings"
)

// Domain errors
var (
	ErrPlayerNotFound    = errors.New("player not found")
	ErrChangelogNotFound = errors.New("changelog entry not found")
	ErrUnknownPool       = errors.New("unknown player pool")
	ErrUnknownMode       = errors.New("unknown game mode")
	ErrVersionConflict   = errors.New("record was modified concurrently")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInternalError     = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound) || errors.Is(err, ErrChangelogNotFound)
}

// ValidationErrors is the list of human-readable messages produced when a
// player write is rejected. The write is never partially applied.
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return "validation failed: " + strings.Join(v, "; ")
}

// AsValidationErrors unwraps err into a ValidationErrors list if it is one.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var v ValidationErrors
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
