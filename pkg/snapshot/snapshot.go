// ABOUTME: Document snapshot as committed at a revision
// ABOUTME: Raw JSON tree of the live document plus the pending side list

package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed indicates snapshot bytes that are not a state object
var ErrMalformed = errors.New("snapshot: malformed state")

// Snapshot is the full document state at one version. Nodes are kept in
// their decoded JSON form (map[string]any) so that arbitrary field paths
// can be resolved without a schema. Callers must treat it as read-only.
type Snapshot struct {
	Document []any `json:"document"`
	Pending  []any `json:"pending"`
}

// Empty returns the state before the first revision
func Empty() *Snapshot {
	return &Snapshot{Document: []any{}, Pending: []any{}}
}

// Decode parses a {"document": [...], "pending": [...]} state object
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if s.Document == nil {
		s.Document = []any{}
	}
	if s.Pending == nil {
		s.Pending = []any{}
	}
	return &s, nil
}

// Encode serializes the snapshot into its state object form
func (s *Snapshot) Encode() ([]byte, error) {
	if s == nil {
		s = Empty()
	}
	return json.Marshal(s)
}

// Title returns the display title of a raw node, preferring name over title
func Title(node any) string {
	m, ok := node.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"name", "title"} {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// ID returns the explicit id of a raw node, if any
func ID(node any) (string, bool) {
	m, ok := node.(map[string]any)
	if !ok {
		return "", false
	}
	switch id := m["id"].(type) {
	case string:
		return id, id != ""
	case float64:
		return fmt.Sprintf("%g", id), true
	}
	return "", false
}
