// Package revision persists the revision history of a document and
// materializes its snapshot at any committed version
package revision

import "errors"

var (
	// ErrUnknownVersion indicates a version outside the committed history
	ErrUnknownVersion = errors.New("revision: unknown version")

	// ErrPatchRejected indicates a patch that does not apply to the latest state
	ErrPatchRejected = errors.New("revision: patch does not apply")

	// ErrEmptyPatch indicates a commit with no operations
	ErrEmptyPatch = errors.New("revision: empty patch")
)
