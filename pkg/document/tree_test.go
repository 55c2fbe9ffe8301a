// ABOUTME: Tests for live document decoding and traversal
// ABOUTME: Verifies snapshot decoding, hierarchical ids, ancestor paths and matching

package document

import (
	"testing"

	"github.com/nainya/treeaudit/pkg/snapshot"
)

func testSnapshot(t *testing.T) *snapshot.Snapshot {
	s, err := snapshot.Decode([]byte(`{
		"document": [
			{"name": "Intro", "content": ["Welcome text"], "children": [
				{"name": "Scope"},
				{"title": "Audience", "id": 7, "children": [{"name": "Readers"}]}
			]},
			{"name": "Body", "id": "body"}
		],
		"pending": [{"name": "Old draft"}]
	}`))
	if err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	return s
}

func TestFromSnapshot(t *testing.T) {
	doc, err := FromSnapshot(testSnapshot(t))
	if err != nil {
		t.Fatalf("FromSnapshot failed: %v", err)
	}

	if len(doc.Nodes) != 2 {
		t.Fatalf("Expected 2 root nodes, got %d", len(doc.Nodes))
	}
	if len(doc.Pending) != 1 || doc.Pending[0].Name != "Old draft" {
		t.Errorf("Unexpected pending list %+v", doc.Pending)
	}

	audience := doc.Nodes[0].Children[1]
	if audience.ID != "7" {
		t.Errorf("Expected numeric id to decode as 7, got %q", audience.ID)
	}
	if audience.DisplayTitle() != "Audience" {
		t.Errorf("Expected title fallback, got %q", audience.DisplayTitle())
	}
	if got := Count(doc.Nodes); got != 5 {
		t.Errorf("Expected 5 nodes, got %d", got)
	}
}

func TestFromNilSnapshot(t *testing.T) {
	doc, err := FromSnapshot(nil)
	if err != nil {
		t.Fatalf("FromSnapshot failed: %v", err)
	}
	if len(doc.Nodes) != 0 {
		t.Errorf("Expected empty document")
	}
}

func TestWalkHierarchicalIDs(t *testing.T) {
	doc, err := FromSnapshot(testSnapshot(t))
	if err != nil {
		t.Fatal(err)
	}

	var ids []string
	Walk(doc.Nodes, func(n *Node, hid string, depth int) bool {
		ids = append(ids, hid)
		return true
	})

	want := []string{"1", "1-1", "7", "7-1", "body"}
	if len(ids) != len(want) {
		t.Fatalf("Expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], ids[i])
		}
	}
}

func TestAncestorPath(t *testing.T) {
	doc, err := FromSnapshot(testSnapshot(t))
	if err != nil {
		t.Fatal(err)
	}

	path := AncestorPath(doc.Nodes, "7-1")
	if len(path) != 3 {
		t.Fatalf("Expected path of 3 nodes, got %d", len(path))
	}
	if path[0].Name != "Intro" || path[2].Name != "Readers" {
		t.Errorf("Unexpected path %s .. %s", path[0].Name, path[2].Name)
	}

	if _, ok := Find(doc.Nodes, "9-9"); ok {
		t.Errorf("Expected no node for 9-9")
	}
	if n, ok := Find(doc.Nodes, "body"); !ok || n.Name != "Body" {
		t.Errorf("Expected to find Body by explicit id")
	}
}

func TestNodeMatches(t *testing.T) {
	n := &Node{Name: "Intro", Content: []string{"Welcome Text"}}

	for _, q := range []string{"intro", "welcome", "text"} {
		if !n.Matches(q) {
			t.Errorf("Expected match for %q", q)
		}
	}
	if n.Matches("missing") {
		t.Errorf("Unexpected match")
	}
}
