package search

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nainya/treeaudit/pkg/audit"
	"github.com/nainya/treeaudit/pkg/changes"
	"github.com/nainya/treeaudit/pkg/document"
	"github.com/nainya/treeaudit/pkg/patch"
	"github.com/nainya/treeaudit/pkg/revision"
)

func revisions(t *testing.T, messages ...string) []revision.Revision {
	t.Helper()
	base := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	out := make([]revision.Revision, len(messages))
	for i, msg := range messages {
		op, err := patch.NewOperation(patch.Add, "/document/-", map[string]any{"name": fmt.Sprintf("Section %d", i+1)})
		if err != nil {
			t.Fatal(err)
		}
		out[i] = revision.Revision{
			Version:   i + 1,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Author:    "editor",
			Message:   msg,
			Patch:     []patch.Operation{op},
		}
	}
	return out
}

func newIndex(t *testing.T, messages ...string) *audit.Index {
	return audit.NewIndex(revisions(t, messages...), changes.NewBuilder(nil))
}

func matchedVersions(res Result) []int {
	out := make([]int, len(res.Matches))
	for i, m := range res.Matches {
		out[i] = m.Revision.Version
	}
	return out
}

func TestFilterRevisionsByMessage(t *testing.T) {
	idx := newIndex(t, "initial import", "fix typo", "restructure", "fix links", "cleanup")

	res := FilterRevisions(idx, FilterState{Query: "  FIX "})
	if diff := cmp.Diff([]int{4, 2}, matchedVersions(res)); diff != "" {
		t.Errorf("Visible revisions mismatch (-want +got):\n%s", diff)
	}
	if res.Label != "2/5" {
		t.Errorf("Expected label 2/5, got %q", res.Label)
	}

	all := FilterRevisions(idx, FilterState{})
	if diff := cmp.Diff([]int{5, 4, 3, 2, 1}, matchedVersions(all)); diff != "" {
		t.Errorf("Empty query must keep everything in order (-want +got):\n%s", diff)
	}
	if all.Label != "5" {
		t.Errorf("Expected label 5, got %q", all.Label)
	}
}

func TestFilterRevisionsByCachedRecords(t *testing.T) {
	idx := newIndex(t, "one", "two", "three")

	// Records are only searched once built
	res := FilterRevisions(idx, FilterState{Query: "section 2"})
	if len(res.Matches) != 0 {
		t.Fatalf("Expected no match before expansion, got %v", matchedVersions(res))
	}

	if _, err := idx.Expand(2); err != nil {
		t.Fatal(err)
	}
	res = FilterRevisions(idx, FilterState{Query: "section 2"})
	if diff := cmp.Diff([]int{2}, matchedVersions(res)); diff != "" {
		t.Fatalf("Visible revisions mismatch (-want +got):\n%s", diff)
	}
	m := res.Matches[0]
	if m.MetadataMatch {
		t.Errorf("Expected a record-only match")
	}
	if len(m.Records) != 1 || m.Records[0].CurrentValue != "Section 2" {
		t.Errorf("Unexpected records %+v", m.Records)
	}
	if !m.Expanded {
		t.Errorf("Expected expand state to be carried through")
	}
}

func TestFilterRevisionsMetadataShowsAllRecords(t *testing.T) {
	revs := revisions(t, "one", "two")
	op, _ := patch.NewOperation(patch.Add, "/pending/-", map[string]any{"name": "Scratch"})
	revs[1].Patch = append(revs[1].Patch, op)
	idx := audit.NewIndex(revs, changes.NewBuilder(nil))
	if _, err := idx.Expand(2); err != nil {
		t.Fatal(err)
	}

	res := FilterRevisions(idx, FilterState{Query: "two"})
	if len(res.Matches) != 1 {
		t.Fatalf("Expected one match, got %d", len(res.Matches))
	}
	if !res.Matches[0].MetadataMatch || len(res.Matches[0].Records) != 2 {
		t.Errorf("Metadata match must show all records, got %+v", res.Matches[0])
	}
}

func TestFilterRevisionsMatchesVersionTag(t *testing.T) {
	idx := newIndex(t, "a", "b", "c")
	res := FilterRevisions(idx, FilterState{Query: "v3"})
	if diff := cmp.Diff([]int{3}, matchedVersions(res)); diff != "" {
		t.Errorf("Visible revisions mismatch (-want +got):\n%s", diff)
	}
}

func tree() []*document.Node {
	return []*document.Node{
		{Name: "Root A", Children: []*document.Node{
			{Name: "Middle", Children: []*document.Node{
				{Name: "Needle leaf"},
				{Name: "Other leaf"},
			}},
			{Name: "Sibling", Children: []*document.Node{{Name: "Deep"}}},
		}},
		{Name: "Root B", Children: []*document.Node{{Name: "Nothing"}}},
	}
}

func TestFilterTreeKeepsAncestors(t *testing.T) {
	nodes := tree()
	got := FilterTree(nodes, "needle")

	if len(got) != 1 {
		t.Fatalf("Expected one root, got %d", len(got))
	}
	root := got[0]
	if root == nodes[0] {
		t.Errorf("Root with pruned children must be a copy")
	}
	if len(root.Children) != 1 || root.Children[0].Name != "Middle" {
		t.Fatalf("Expected only Middle under root, got %+v", root.Children)
	}
	middle := root.Children[0]
	if middle == nodes[0].Children[0] {
		t.Errorf("Middle with pruned children must be a copy")
	}
	if len(middle.Children) != 1 || middle.Children[0] != nodes[0].Children[0].Children[0] {
		t.Errorf("Expected the original matching leaf, got %+v", middle.Children)
	}

	// Originals are untouched
	if len(nodes[0].Children) != 2 || len(nodes[0].Children[0].Children) != 2 {
		t.Errorf("Input tree was mutated")
	}
}

func TestFilterTreeSharesUntouchedSubtrees(t *testing.T) {
	nodes := tree()
	got := FilterTree(nodes, "deep")

	if len(got) != 1 || len(got[0].Children) != 1 {
		t.Fatalf("Unexpected result %+v", got)
	}
	if got[0].Children[0] != nodes[0].Children[1] {
		t.Errorf("Fully kept subtree should keep its original pointer")
	}
}

func TestFilterTreeContentAndIdentity(t *testing.T) {
	nodes := []*document.Node{
		{Name: "Intro", Content: []string{"Mentions Budget"}},
		{Name: "Outro"},
	}

	got := FilterTree(nodes, "budget")
	if len(got) != 1 || got[0] != nodes[0] {
		t.Errorf("Expected the original Intro node, got %+v", got)
	}

	same := FilterTree(nodes, "   ")
	if len(same) != 2 || same[0] != nodes[0] || same[1] != nodes[1] {
		t.Errorf("Empty query must return the input unchanged")
	}
	if none := FilterTree(nodes, "absent"); len(none) != 0 {
		t.Errorf("Expected nothing, got %d nodes", len(none))
	}
}

func TestFilterDocumentLabel(t *testing.T) {
	doc := &document.Document{Nodes: tree()}

	res := FilterDocument(doc, FilterState{Query: "needle"})
	if res.Label != "3/8" {
		t.Errorf("Expected label 3/8, got %q", res.Label)
	}
	if res := FilterDocument(doc, FilterState{}); res.Label != "8" {
		t.Errorf("Expected label 8, got %q", res.Label)
	}
	if res := FilterDocument(&document.Document{}, FilterState{Query: "x"}); res.Label != "" {
		t.Errorf("Expected empty label, got %q", res.Label)
	}
}

func TestCounter(t *testing.T) {
	tests := []struct {
		visible, total int
		want           string
	}{
		{0, 0, ""},
		{5, 5, "5"},
		{2, 5, "2/5"},
		{0, 3, "0/3"},
	}
	for _, tt := range tests {
		if got := Counter(tt.visible, tt.total); got != tt.want {
			t.Errorf("Counter(%d, %d) = %q, want %q", tt.visible, tt.total, got, tt.want)
		}
	}
}
