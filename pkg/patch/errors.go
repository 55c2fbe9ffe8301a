// Package patch parses and classifies JSON-Patch style operations addressed
// into a tree-shaped document
package patch

import "errors"

var (
	// ErrUnknownKind indicates an operation name outside add/remove/replace/move/copy
	ErrUnknownKind = errors.New("patch: unknown operation kind")
)
