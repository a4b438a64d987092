package artifact

import "errors"

var (
	// ErrNotFound is returned when a transcript for the given chat / id pair
	// does not exist in the underlying store.
	ErrNotFound = errors.New("transcript not found")
)
