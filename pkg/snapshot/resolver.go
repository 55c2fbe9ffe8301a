package snapshot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nainya/treeaudit/pkg/patch"
)

const (
	// EmptyValue is displayed wherever a value is absent
	EmptyValue = "—"

	// MaxValueLength bounds formatted values, in runes
	MaxValueLength = 150

	ellipsis = "…"
)

// Resolver answers questions about a prior snapshot. A nil snapshot is
// valid and behaves as a document with no nodes.
type Resolver struct {
	snap *Snapshot
}

// NewResolver wraps a snapshot, which may be nil
func NewResolver(s *Snapshot) Resolver {
	return Resolver{snap: s}
}

func (r Resolver) document() []any {
	if r.snap == nil {
		return nil
	}
	return r.snap.Document
}

func (r Resolver) pending() []any {
	if r.snap == nil {
		return nil
	}
	return r.snap.Pending
}

// Len returns the number of root nodes
func (r Resolver) Len() int { return len(r.document()) }

// PendingLen returns the number of side-list entries
func (r Resolver) PendingLen() int { return len(r.pending()) }

// NodeAt returns the root node at index
func (r Resolver) NodeAt(index int) (map[string]any, bool) {
	doc := r.document()
	if index < 0 || index >= len(doc) {
		return nil, false
	}
	m, ok := doc[index].(map[string]any)
	return m, ok
}

// PendingAt returns the side-list entry at index
func (r Resolver) PendingAt(index int) (map[string]any, bool) {
	pending := r.pending()
	if index < 0 || index >= len(pending) {
		return nil, false
	}
	m, ok := pending[index].(map[string]any)
	return m, ok
}

// NodeRef renders "Node {index+1}", with the title appended when known
func (r Resolver) NodeRef(index int, includeTitle bool) string {
	if index < 0 {
		return "Node"
	}
	ref := "Node " + strconv.Itoa(index+1)
	if !includeTitle {
		return ref
	}
	if node, ok := r.NodeAt(index); ok {
		if title := Title(node); title != "" {
			return ref + ": " + title
		}
	}
	return ref
}

// PreviousValue walks path from the document root (or the side list when
// the path starts with the pending sentinel). Numeric segments index
// arrays and field segments look up object keys; any failed step yields
// false.
func (r Resolver) PreviousValue(path patch.Path) (any, bool) {
	var cur any = r.document()
	segs := path
	if len(segs) > 0 && segs[0].Is(patch.PendingSegment) {
		cur = r.pending()
		segs = segs[1:]
	}
	for _, seg := range segs {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

func step(cur any, seg patch.Segment) (any, bool) {
	switch v := cur.(type) {
	case []any:
		if !seg.IsIndex() || seg.Index >= len(v) {
			return nil, false
		}
		return v[seg.Index], true
	case map[string]any:
		if seg.Kind == patch.AppendSegment {
			return nil, false
		}
		val, ok := v[seg.Name]
		return val, ok
	}
	return nil, false
}

// HierarchicalID reconstructs the positional identifier of the node owning
// path: the root index plus one, then "-{child+1}" for every children hop.
// An explicit id at any depth replaces what has been accumulated so far.
func (r Resolver) HierarchicalID(path patch.Path) string {
	if len(path) == 0 || !path[0].IsIndex() {
		return "Unknown"
	}
	id := strconv.Itoa(path[0].Index + 1)
	node, _ := r.NodeAt(path[0].Index)
	if explicit, ok := ID(node); ok {
		id = explicit
	}
	for i := 1; i+1 < len(path); i += 2 {
		if !path[i].Is(patch.ChildrenField) || !path[i+1].IsIndex() {
			break
		}
		child := path[i+1].Index
		id += "-" + strconv.Itoa(child+1)
		node = childAt(node, child)
		if explicit, ok := ID(node); ok {
			id = explicit
		}
	}
	return id
}

func childAt(node map[string]any, index int) map[string]any {
	if node == nil {
		return nil
	}
	children, ok := node[patch.ChildrenField].([]any)
	if !ok || index < 0 || index >= len(children) {
		return nil
	}
	m, _ := children[index].(map[string]any)
	return m
}

// NodePath trims path down to the deepest node it addresses: the root
// index followed by as many children/index pairs as are present.
func NodePath(path patch.Path) patch.Path {
	if len(path) == 0 || !path[0].IsIndex() {
		return nil
	}
	end := 1
	for end+1 < len(path) && path[end].Is(patch.ChildrenField) && path[end+1].IsIndex() {
		end += 2
	}
	return path[:end]
}

// Ref renders a reference to the node at nodePath. Root nodes use their
// position; nested nodes use the hierarchical id.
func (r Resolver) Ref(nodePath patch.Path, includeTitle bool) string {
	switch {
	case len(nodePath) == 0:
		return "Node"
	case len(nodePath) == 1:
		if !nodePath[0].IsIndex() {
			return "Node"
		}
		return r.NodeRef(nodePath[0].Index, includeTitle)
	}
	ref := "Node " + r.HierarchicalID(nodePath)
	if !includeTitle {
		return ref
	}
	if node, ok := r.PreviousValue(nodePath); ok {
		if title := Title(node); title != "" {
			return ref + ": " + title
		}
	}
	return ref
}

// FormatValue renders a value for display: nil becomes an em dash, arrays
// are joined with " | " and nodes render by title. Results longer than
// MaxValueLength runes are truncated with an ellipsis.
func FormatValue(v any) string {
	return truncate(format(v))
}

func format(v any) string {
	switch val := v.(type) {
	case nil:
		return EmptyValue
	case string:
		return val
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = format(item)
		}
		return strings.Join(parts, " | ")
	case []string:
		return strings.Join(val, " | ")
	case map[string]any:
		if title := Title(val); title != "" {
			return title
		}
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxValueLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxValueLength]) + ellipsis
}
