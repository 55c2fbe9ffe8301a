// ABOUTME: Live document data model for hierarchical outline documents
// ABOUTME: Defines Document and Node structures decoded from a snapshot

package document

import (
	"bytes"
	"encoding/json"
)

// Document is the live tree being edited plus its pending side list
type Document struct {
	Nodes   []*Node // Root nodes in display order
	Pending []*Node // Nodes set aside from the tree, not yet deleted
}

// Node represents one section of the outline
type Node struct {
	ID           NodeID   `json:"id,omitempty"`           // Explicit identifier, if assigned
	Name         string   `json:"name,omitempty"`         // Display name
	Title        string   `json:"title,omitempty"`        // Legacy display name
	Content      []string `json:"content,omitempty"`      // Body paragraphs
	Children     []*Node  `json:"children,omitempty"`     // Child sections
	LastModified string   `json:"lastModified,omitempty"` // Edit timestamp maintained by the editor
}

// DisplayTitle returns the name, falling back to the legacy title field
func (n *Node) DisplayTitle() string {
	if n.Name != "" {
		return n.Name
	}
	return n.Title
}

// NodeID is an explicit node identifier. Editors write either strings or
// numbers, so both decode.
type NodeID string

// UnmarshalJSON implements json.Unmarshaler
func (id *NodeID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = NodeID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = NodeID(n.String())
	return nil
}
