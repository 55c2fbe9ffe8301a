package patch

import (
	"strconv"
	"strings"
)

const (
	// DocumentSegment is the optional leading segment naming the live document
	DocumentSegment = "document"

	// PendingSegment is the sentinel first segment of side-list paths
	PendingSegment = "pending"

	// ChildrenField holds a node's nested child nodes
	ChildrenField = "children"

	// ContentField holds a node's ordered content items
	ContentField = "content"

	// EditTimestampField is maintained by the editor on every save
	EditTimestampField = "lastModified"

	// AppendToken addresses one past the end of an array
	AppendToken = "-"
)

// SegmentKind tells how a path segment addresses its parent
type SegmentKind uint8

const (
	FieldSegment SegmentKind = iota
	IndexSegment
	AppendSegment
)

// Segment is one token of a parsed path
type Segment struct {
	Kind  SegmentKind
	Name  string // field name, or the raw text for index/append segments
	Index int    // valid when Kind == IndexSegment
}

// Index builds an array index segment
func Index(n int) Segment {
	return Segment{Kind: IndexSegment, Name: strconv.Itoa(n), Index: n}
}

// Field builds a field segment
func Field(name string) Segment {
	return Segment{Kind: FieldSegment, Name: name}
}

// IsIndex reports whether the segment is a numeric array index
func (s Segment) IsIndex() bool { return s.Kind == IndexSegment }

// Is reports whether the segment is the field with the given name
func (s Segment) Is(name string) bool { return s.Kind == FieldSegment && s.Name == name }

func (s Segment) String() string { return s.Name }

// Path is a parsed sequence of segments with the document prefix removed
type Path []Segment

// ParsePath splits a raw path, strips the optional document prefix and
// tokenizes each segment. Malformed input never fails; unparseable
// segments become field segments.
func ParsePath(raw string) Path {
	raw = strings.TrimPrefix(raw, "/")
	if raw == "" {
		return Path{}
	}
	parts := strings.Split(raw, "/")
	if parts[0] == DocumentSegment {
		parts = parts[1:]
	}
	path := make(Path, 0, len(parts))
	for _, p := range parts {
		path = append(path, parseSegment(unescape(p)))
	}
	return path
}

func parseSegment(s string) Segment {
	if s == AppendToken {
		return Segment{Kind: AppendSegment, Name: s}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && isDigits(s) {
		return Index(n)
	}
	return Field(s)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func unescape(s string) string {
	if !strings.Contains(s, "~") {
		return s
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "~1", "/"), "~0", "~")
}

// Last returns the final segment, or a zero segment for an empty path
func (p Path) Last() Segment {
	if len(p) == 0 {
		return Segment{}
	}
	return p[len(p)-1]
}

// At returns the i-th segment, or a zero segment when out of range
func (p Path) At(i int) Segment {
	if i < 0 || i >= len(p) {
		return Segment{}
	}
	return p[i]
}

// Parent returns the path without its final segment
func (p Path) Parent() Path {
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1]
}

// String renders the path in its canonical slash form
func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = strings.ReplaceAll(strings.ReplaceAll(s.Name, "~", "~0"), "/", "~1")
	}
	return "/" + strings.Join(parts, "/")
}

// Category is the structural role of the target of a path
type Category uint8

const (
	GenericProperty Category = iota
	SideListItem
	ChildNode
	RootNode
	ContentItem
)

func (c Category) String() string {
	switch c {
	case SideListItem:
		return "sideListItem"
	case ChildNode:
		return "childNode"
	case RootNode:
		return "rootNode"
	case ContentItem:
		return "contentItem"
	default:
		return "genericProperty"
	}
}

// Classified is the result of classifying a path
type Classified struct {
	Category Category
	Path     Path
}

// Classify determines which kind of document location a raw path addresses.
// The checks run in a fixed order and the first match wins.
func Classify(raw string) Classified {
	path := ParsePath(raw)
	return Classified{Category: categorize(path), Path: path}
}

func categorize(p Path) Category {
	switch {
	case len(p) > 0 && p[0].Is(PendingSegment):
		return SideListItem
	case len(p) >= 2 && p[len(p)-2].Is(ChildrenField):
		return ChildNode
	case len(p) == 1:
		return RootNode
	case len(p) > 2 && p[1].Is(ContentField):
		return ContentItem
	default:
		return GenericProperty
	}
}

// IsEditTimestamp reports whether the path ends in the edit-timestamp field
func (p Path) IsEditTimestamp() bool {
	return p.Last().Is(EditTimestampField)
}

// Canonical returns the raw path rewritten under the /document root unless
// it already addresses /document or /pending. The revision store replays
// patches against {"document": [...], "pending": [...]}.
func Canonical(raw string) string {
	trimmed := strings.TrimPrefix(raw, "/")
	first, _, _ := strings.Cut(trimmed, "/")
	if first == DocumentSegment || first == PendingSegment {
		return "/" + trimmed
	}
	if trimmed == "" {
		return "/" + DocumentSegment
	}
	return "/" + DocumentSegment + "/" + trimmed
}
