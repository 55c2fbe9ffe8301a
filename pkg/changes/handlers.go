package changes

import (
	"fmt"

	"github.com/nainya/treeaudit/pkg/patch"
	"github.com/nainya/treeaudit/pkg/snapshot"
)

const (
	untitled = "Untitled"
	unknown  = "Unknown"
)

// Describe renders one operation against the snapshot that preceded its
// revision. prior may be nil.
func Describe(op patch.Operation, prior *snapshot.Snapshot) (Change, error) {
	h := handler{res: snapshot.NewResolver(prior)}
	c := patch.Classify(op.Path)

	if c.Category == patch.SideListItem {
		return h.pending(op, c.Path)
	}

	switch op.Kind {
	case patch.Add:
		return h.add(op, c)
	case patch.Remove:
		return h.remove(c)
	case patch.Replace:
		return h.replace(op, c)
	case patch.Move:
		return h.move(op, c.Path)
	case patch.Copy:
		return h.copy(op, c.Path)
	default:
		return Change{}, fmt.Errorf("%w: %s", ErrUnknownKind, op.Kind)
	}
}

type handler struct {
	res snapshot.Resolver
}

func (h handler) add(op patch.Operation, c patch.Classified) (Change, error) {
	value, err := requiredValue(op)
	if err != nil {
		return Change{}, err
	}
	ch := Change{PreviousValue: snapshot.EmptyValue, Class: ClassAdd}

	switch c.Category {
	case patch.ChildNode:
		parent := c.Path[:len(c.Path)-2]
		ch.Action = "Added child to " + h.res.Ref(snapshot.NodePath(parent), true)
		ch.CurrentValue = nodeLabel(value)

	case patch.ContentItem:
		ch.Action = "Added content to " + h.ownerRef(c.Path)
		ch.CurrentValue = snapshot.FormatValue(value)

	case patch.RootNode:
		index, ok := h.position(c.Path, 0)
		if !ok {
			return Change{}, fmt.Errorf("%w: root add at %q", ErrMalformedPath, op.Path)
		}
		title := nodeLabel(value)
		ch.Action = fmt.Sprintf("Added Root Node %d: %s", index+1, title)
		ch.CurrentValue = title

	default:
		if len(c.Path) == 0 {
			ch.Action = "Added document content"
			ch.CurrentValue = countLabel(value)
			break
		}
		ch.Action = fmt.Sprintf("Added %s to %s", fieldLabel(c.Path), h.ownerRef(c.Path))
		ch.CurrentValue = snapshot.FormatValue(value)
	}
	return ch, nil
}

// remove carries no value on the wire, so what was removed is looked up in
// the prior snapshot.
func (h handler) remove(c patch.Classified) (Change, error) {
	prev, found := h.res.PreviousValue(c.Path)
	ch := Change{CurrentValue: snapshot.EmptyValue, Class: ClassRemove}
	last := c.Path.Last()

	switch {
	case c.Category == patch.ChildNode:
		parent := c.Path[:len(c.Path)-2]
		ch.Action = "Deleted child from " + h.res.Ref(snapshot.NodePath(parent), true)
		ch.PreviousValue = removedLabel(prev, found)

	case c.Category == patch.RootNode:
		if !last.IsIndex() {
			return Change{}, fmt.Errorf("%w: root remove at %q", ErrMalformedPath, c.Path)
		}
		title := removedLabel(prev, found)
		ch.Action = fmt.Sprintf("Deleted Root Node %d: %s", last.Index+1, title)
		ch.PreviousValue = title

	case len(c.Path) == 0:
		return Change{}, fmt.Errorf("%w: remove of the whole document", ErrMalformedPath)

	case last.IsIndex() && len(c.Path) > 2:
		ch.Action = fmt.Sprintf("Deleted content item %d from %s", last.Index+1, h.ownerRef(c.Path))
		ch.PreviousValue = formatFound(prev, found)

	default:
		ch.Action = fmt.Sprintf("Deleted %s from %s", fieldLabel(c.Path), h.ownerRef(c.Path))
		ch.PreviousValue = formatFound(prev, found)
	}
	return ch, nil
}

func (h handler) replace(op patch.Operation, c patch.Classified) (Change, error) {
	last := c.Path.Last()
	if last.Is(patch.EditTimestampField) {
		return Change{Class: ClassIgnore}, nil
	}

	value, err := requiredValue(op)
	if err != nil {
		return Change{}, err
	}
	prev, _ := h.res.PreviousValue(c.Path)
	ch := Change{
		PreviousValue: snapshot.FormatValue(prev),
		CurrentValue:  snapshot.FormatValue(value),
		Class:         ClassReplace,
	}

	// Whole-node replaces are named before the final-segment cases, so a
	// numeric last segment after children reads as a node, not content.
	switch {
	case len(c.Path) == 0:
		ch.Action = "Replaced the whole document"
		ch.PreviousValue = countLabel(prev)
		ch.CurrentValue = countLabel(value)

	case c.Category == patch.RootNode || c.Category == patch.ChildNode:
		ch.Action = "Replaced " + h.res.Ref(snapshot.NodePath(c.Path), true)

	case last.Is("name") || last.Is("title"):
		ch.Action = "Changed title of " + h.ownerRef(c.Path)

	case last.Is(patch.ContentField):
		ch.Action = "Changed content of " + h.ownerRef(c.Path)

	case last.IsIndex() && len(c.Path) > 2:
		ch.Action = fmt.Sprintf("Changed content item %d in %s", last.Index+1, h.ownerRef(c.Path))

	default:
		ch.Action = fmt.Sprintf("Changed %s of %s", fieldLabel(c.Path), h.ownerRef(c.Path))
	}
	return ch, nil
}

// move names the node by its destination position and by the title of the
// node being moved, taken from its origin in the prior snapshot. The node
// that used to sit at the destination is not the one that moved.
func (h handler) move(op patch.Operation, to patch.Path) (Change, error) {
	from := patch.ParsePath(op.From)
	origin, okFrom := h.position(from, 0)
	dest, okTo := h.position(to, 1)
	if !okFrom || !okTo {
		return Change{
			Action:        "Reordered " + h.ownerRef(to),
			PreviousValue: "Previous position",
			CurrentValue:  "New position",
			Class:         ClassMove,
		}, nil
	}

	moved, _ := h.res.PreviousValue(from)
	return Change{
		Action:        fmt.Sprintf("Reordered %s to position %d", h.positionRef(to, dest, snapshot.Title(moved)), dest+1),
		PreviousValue: fmt.Sprintf("Position %d", origin+1),
		CurrentValue:  fmt.Sprintf("Position %d", dest+1),
		Class:         ClassMove,
	}, nil
}

func (h handler) copy(op patch.Operation, to patch.Path) (Change, error) {
	from := patch.ParsePath(op.From)
	dest, okTo := h.position(to, 0)
	destRef := h.ownerRef(to)
	if okTo {
		destRef = h.positionRef(to, dest, "")
	}

	origin, okFrom := h.position(from, 0)
	if !okFrom {
		return Change{
			Action:        "Duplicated item to " + destRef,
			PreviousValue: "Source",
			CurrentValue:  "Copy",
			Class:         ClassCopy,
		}, nil
	}

	ch := Change{
		Action:        fmt.Sprintf("Duplicated %s to %s", h.res.Ref(snapshot.NodePath(from), true), destRef),
		PreviousValue: fmt.Sprintf("Position %d", origin+1),
		CurrentValue:  "Copy",
		Class:         ClassCopy,
	}
	if okTo {
		ch.CurrentValue = fmt.Sprintf("Position %d", dest+1)
	}
	return ch, nil
}

// pending handles side-list paths. Their meaning is independent of the
// nominal operation: adding to the list moves a node out of the document,
// removing from it deletes the node for good.
func (h handler) pending(op patch.Operation, path patch.Path) (Change, error) {
	entry := len(path) == 2

	switch {
	case op.Kind == patch.Add && entry:
		value, err := requiredValue(op)
		if err != nil {
			return Change{}, err
		}
		return Change{
			Action:        "Moved to Pending: " + nodeLabel(value),
			PreviousValue: "Document",
			CurrentValue:  "Pending",
			Class:         ClassMove,
		}, nil

	case op.Kind == patch.Remove && entry:
		last := path.Last()
		if !last.IsIndex() {
			return Change{}, fmt.Errorf("%w: pending remove at %q", ErrMalformedPath, path)
		}
		title := unknown
		if node, ok := h.res.PendingAt(last.Index); ok {
			title = nodeLabel(node)
		}
		return Change{
			Action:        "Permanently deleted from Pending: " + title,
			PreviousValue: title,
			CurrentValue:  snapshot.EmptyValue,
			Class:         ClassRemove,
		}, nil

	case op.Kind == patch.Replace && len(path) == 1:
		value, err := requiredValue(op)
		if err != nil {
			return Change{}, err
		}
		prev, _ := h.res.PreviousValue(path)
		return Change{
			Action:        "Replaced Pending list",
			PreviousValue: countLabel(prev),
			CurrentValue:  countLabel(value),
			Class:         ClassReplace,
		}, nil

	case op.Kind == patch.Replace || (len(path) > 2 && (op.Kind == patch.Add || op.Kind == patch.Remove)):
		value, err := op.DecodedValue()
		if err != nil {
			return Change{}, err
		}
		prev, _ := h.res.PreviousValue(path)
		return Change{
			Action:        "Modified Pending item",
			PreviousValue: snapshot.FormatValue(prev),
			CurrentValue:  snapshot.FormatValue(value),
			Class:         ClassReplace,
		}, nil
	}

	return Change{
		Action:        "Pending operation: " + op.Kind.String(),
		PreviousValue: snapshot.EmptyValue,
		CurrentValue:  snapshot.EmptyValue,
		Class:         kindClass(op.Kind),
	}, nil
}

// requiredValue decodes the value an add or replace must carry
func requiredValue(op patch.Operation) (any, error) {
	if len(op.Value) == 0 {
		return nil, fmt.Errorf("%w: %s at %q", ErrMissingValue, op.Kind, op.Path)
	}
	return op.DecodedValue()
}

func (h handler) ownerRef(path patch.Path) string {
	return h.res.Ref(snapshot.NodePath(path), true)
}

// positionRef names the node that ends up at index within the array that
// path points into, titled with title when given.
func (h handler) positionRef(path patch.Path, index int, title string) string {
	var ref string
	if len(path) <= 1 {
		ref = fmt.Sprintf("Node %d", index+1)
	} else {
		target := make(patch.Path, len(path))
		copy(target, path)
		target[len(target)-1] = patch.Index(index)
		ref = "Node " + h.res.HierarchicalID(target)
	}
	if title != "" {
		ref += ": " + title
	}
	return ref
}

// position extracts the array index a path ends in. The append token
// resolves against the prior length of the target array, less shrink for
// operations that remove their source first.
func (h handler) position(path patch.Path, shrink int) (int, bool) {
	last := path.Last()
	switch last.Kind {
	case patch.IndexSegment:
		return last.Index, true
	case patch.AppendSegment:
		n := h.res.Len()
		if len(path) > 1 {
			arr, ok := h.res.PreviousValue(path.Parent())
			items, isArr := arr.([]any)
			if !ok || !isArr {
				return 0, false
			}
			n = len(items)
		}
		if n-shrink < 0 {
			return 0, false
		}
		return n - shrink, true
	}
	return 0, false
}

func kindClass(k patch.Kind) Class {
	switch k {
	case patch.Add:
		return ClassAdd
	case patch.Remove:
		return ClassRemove
	case patch.Replace:
		return ClassReplace
	case patch.Move:
		return ClassMove
	case patch.Copy:
		return ClassCopy
	}
	return ClassError
}

// fieldLabel names the property a path addresses: the last field segment,
// skipping trailing indexes.
func fieldLabel(path patch.Path) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i].Kind == patch.FieldSegment && path[i].Name != "" {
			return path[i].Name
		}
	}
	return "item"
}

func nodeLabel(v any) string {
	if _, ok := v.(map[string]any); ok {
		if title := snapshot.Title(v); title != "" {
			return title
		}
		return untitled
	}
	if v == nil {
		return untitled
	}
	return snapshot.FormatValue(v)
}

func removedLabel(prev any, found bool) string {
	if !found {
		return unknown
	}
	return nodeLabel(prev)
}

func formatFound(prev any, found bool) string {
	if !found {
		return unknown
	}
	return snapshot.FormatValue(prev)
}

func countLabel(v any) string {
	switch val := v.(type) {
	case []any:
		if len(val) == 1 {
			return "1 item"
		}
		return fmt.Sprintf("%d items", len(val))
	case map[string]any:
		doc, _ := val[patch.DocumentSegment].([]any)
		pending, _ := val[patch.PendingSegment].([]any)
		return fmt.Sprintf("%d nodes, %d pending", len(doc), len(pending))
	}
	return snapshot.FormatValue(v)
}
