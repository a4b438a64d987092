package core

import "errors"

var (
	// ErrWorldNotFound is returned when a world id is not registered.
	ErrWorldNotFound = errors.New("world not found")
	// ErrAgentNotFound is returned when an agent name is not part of a roster.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrDuplicateAgent is returned when an agent name is registered twice.
	ErrDuplicateAgent = errors.New("duplicate agent")
	// ErrInvalidMessage is returned for messages that cannot be dispatched.
	ErrInvalidMessage = errors.New("invalid message")
)
