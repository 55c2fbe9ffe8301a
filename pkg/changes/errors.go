// Package changes turns revision patches into human-readable change records
package changes

import "errors"

var (
	// ErrMalformedPath indicates a path whose shape does not fit its category
	ErrMalformedPath = errors.New("changes: malformed path")

	// ErrMissingValue indicates an operation that needs a value but carries none
	ErrMissingValue = errors.New("changes: operation value missing")

	// ErrUnknownKind indicates an operation kind no handler covers
	ErrUnknownKind = errors.New("changes: unknown operation kind")

	// ErrHandlerPanic indicates a handler that panicked while describing an operation
	ErrHandlerPanic = errors.New("changes: handler panic")
)
