// ABOUTME: Tree construction and traversal for live documents
// ABOUTME: Decodes snapshots into typed nodes and resolves hierarchical ids

package document

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nainya/treeaudit/pkg/snapshot"
)

// FromSnapshot decodes the raw snapshot tree into typed nodes
func FromSnapshot(s *snapshot.Snapshot) (*Document, error) {
	if s == nil {
		return &Document{}, nil
	}
	doc := &Document{}
	if err := recode(s.Document, &doc.Nodes); err != nil {
		return nil, fmt.Errorf("decode document nodes: %w", err)
	}
	if err := recode(s.Pending, &doc.Pending); err != nil {
		return nil, fmt.Errorf("decode pending nodes: %w", err)
	}
	return doc, nil
}

func recode(raw []any, out *[]*Node) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// WalkFunc is called for each node with its hierarchical id and depth.
// Returning false skips the node's children.
type WalkFunc func(node *Node, hid string, depth int) bool

// Walk visits nodes depth-first in display order
func Walk(nodes []*Node, fn WalkFunc) {
	walk(nodes, "", 0, fn)
}

func walk(nodes []*Node, prefix string, depth int, fn WalkFunc) {
	for i, n := range nodes {
		if n == nil {
			continue
		}
		hid := childID(prefix, i)
		if n.ID != "" {
			hid = string(n.ID)
		}
		if fn(n, hid, depth) {
			walk(n.Children, hid, depth+1, fn)
		}
	}
}

func childID(prefix string, index int) string {
	if prefix == "" {
		return strconv.Itoa(index + 1)
	}
	return prefix + "-" + strconv.Itoa(index+1)
}

// Count returns the number of nodes in the tree
func Count(nodes []*Node) int {
	total := 0
	Walk(nodes, func(*Node, string, int) bool {
		total++
		return true
	})
	return total
}

// AncestorPath returns the nodes from a root down to the node with the
// given hierarchical id, or nil when no node carries it
func AncestorPath(nodes []*Node, hid string) []*Node {
	var path []*Node
	var found bool
	var visit func(nodes []*Node, prefix string) bool
	visit = func(nodes []*Node, prefix string) bool {
		for i, n := range nodes {
			if n == nil {
				continue
			}
			id := childID(prefix, i)
			if n.ID != "" {
				id = string(n.ID)
			}
			path = append(path, n)
			if id == hid || visit(n.Children, id) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}
	found = visit(nodes, "")
	if !found {
		return nil
	}
	return path
}

// Find returns the node with the given hierarchical id
func Find(nodes []*Node, hid string) (*Node, bool) {
	path := AncestorPath(nodes, hid)
	if len(path) == 0 {
		return nil, false
	}
	return path[len(path)-1], true
}

// Matches reports whether the node's title or any content paragraph
// contains an already lowercased query
func (n *Node) Matches(query string) bool {
	if strings.Contains(strings.ToLower(n.DisplayTitle()), query) {
		return true
	}
	for _, p := range n.Content {
		if strings.Contains(strings.ToLower(p), query) {
			return true
		}
	}
	return false
}
