// ABOUTME: Substring filters over the audit trail and the live document tree
// ABOUTME: Revision-level filter with record fallback, pruning tree filter and result counters

package search

import (
	"strconv"
	"strings"

	"github.com/nainya/treeaudit/pkg/audit"
	"github.com/nainya/treeaudit/pkg/changes"
	"github.com/nainya/treeaudit/pkg/document"
	"github.com/nainya/treeaudit/pkg/revision"
)

// FilterState is the query a view currently filters by. The view owns it
// and passes it to each call.
type FilterState struct {
	Query string
}

// Normalized returns the trimmed, lowercased query
func (s FilterState) Normalized() string {
	return Normalize(s.Query)
}

// Normalize trims and lowercases a raw query
func Normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// RevisionSource is the part of audit.Index the revision filter reads
type RevisionSource interface {
	Entries() []audit.Entry
	CachedRecords(version int) ([]changes.Record, bool)
}

// Match is one visible revision with the records to show inside it
type Match struct {
	Revision      revision.Revision
	Expanded      bool
	MetadataMatch bool             // Matched on version, time, author or message
	Records       []changes.Record // Cached records to show, nil if never built
}

// Result is the outcome of a revision-level filter
type Result struct {
	Matches []Match
	Total   int
	Label   string
}

// FilterRevisions selects the revisions whose metadata or cached change
// records contain the query. A metadata match shows every record of the
// revision, a record-only match shows just the matching records. Only
// records already built are searched.
func FilterRevisions(src RevisionSource, state FilterState) Result {
	q := state.Normalized()
	entries := src.Entries()
	res := Result{Total: len(entries), Matches: make([]Match, 0, len(entries))}

	for _, e := range entries {
		records, _ := src.CachedRecords(e.Revision.Version)
		m := Match{Revision: e.Revision, Expanded: e.Expanded}

		if q == "" || strings.Contains(e.Revision.SearchText(), q) {
			m.MetadataMatch = q != ""
			m.Records = records
			res.Matches = append(res.Matches, m)
			continue
		}

		matched := FilterRecords(records, q)
		if len(matched) == 0 {
			continue
		}
		m.Records = matched
		res.Matches = append(res.Matches, m)
	}

	res.Label = Counter(len(res.Matches), res.Total)
	return res
}

// FilterRecords returns the records whose search text contains an already
// normalized query
func FilterRecords(records []changes.Record, q string) []changes.Record {
	if q == "" {
		return records
	}
	var out []changes.Record
	for _, r := range records {
		if r.Matches(q) {
			out = append(out, r)
		}
	}
	return out
}

// FilterTree keeps the nodes whose title or content contains the query,
// plus every ancestor of such a node. Ancestors whose children were pruned
// are shallow copies; untouched subtrees are returned as is.
func FilterTree(nodes []*document.Node, query string) []*document.Node {
	q := Normalize(query)
	if q == "" {
		return nodes
	}
	kept, _ := filterNodes(nodes, q)
	return kept
}

// filterNodes filters one sibling list post-order and reports whether the
// result differs from the input
func filterNodes(nodes []*document.Node, q string) ([]*document.Node, bool) {
	out := make([]*document.Node, 0, len(nodes))
	changed := false

	for _, n := range nodes {
		if n == nil {
			changed = true
			continue
		}
		children, childrenChanged := filterNodes(n.Children, q)
		if !n.Matches(q) && len(children) == 0 {
			changed = true
			continue
		}
		if childrenChanged {
			cp := *n
			cp.Children = children
			n = &cp
			changed = true
		}
		out = append(out, n)
	}
	return out, changed
}

// TreeResult is the outcome of a tree-level filter
type TreeResult struct {
	Nodes []*document.Node
	Label string
}

// FilterDocument runs FilterTree over a live document and counts the
// visible nodes against the whole tree
func FilterDocument(doc *document.Document, state FilterState) TreeResult {
	if doc == nil {
		return TreeResult{}
	}
	nodes := FilterTree(doc.Nodes, state.Query)
	return TreeResult{
		Nodes: nodes,
		Label: Counter(document.Count(nodes), document.Count(doc.Nodes)),
	}
}

// Counter renders a visible/total label: empty when there is nothing,
// the bare count when everything is visible.
func Counter(visible, total int) string {
	switch {
	case total == 0:
		return ""
	case visible == total:
		return strconv.Itoa(visible)
	default:
		return strconv.Itoa(visible) + "/" + strconv.Itoa(total)
	}
}
