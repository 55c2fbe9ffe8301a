// Package revlog stores revisions in an append-only, checksummed log
package revlog

import "errors"

var (
	// ErrCorrupted indicates a corrupted entry (CRC mismatch)
	ErrCorrupted = errors.New("revlog: corrupted entry")

	// ErrInvalidEntry indicates an entry with an impossible header
	ErrInvalidEntry = errors.New("revlog: invalid entry")

	// ErrLogClosed indicates an operation on a closed log
	ErrLogClosed = errors.New("revlog: log closed")

	// ErrTruncated indicates an entry cut short, usually by a crash mid-write
	ErrTruncated = errors.New("revlog: truncated entry")
)
