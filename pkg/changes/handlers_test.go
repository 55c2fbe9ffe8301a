package changes

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nainya/treeaudit/pkg/patch"
	"github.com/nainya/treeaudit/pkg/snapshot"
)

const priorState = `{
	"document": [
		{"name": "Intro", "children": [{"name": "Scope"}]},
		{"title": "Body", "content": ["a", "b"], "lastModified": "2024-01-01"},
		{"name": "Appendix", "id": "app", "children": [{"name": "Glossary", "children": [{"name": "Terms"}]}]}
	],
	"pending": [{"name": "Old"}]
}`

func priorSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	s, err := snapshot.Decode([]byte(priorState))
	if err != nil {
		t.Fatalf("Failed to decode prior state: %v", err)
	}
	return s
}

func mustOp(t *testing.T, kind patch.Kind, path string, value any) patch.Operation {
	t.Helper()
	op, err := patch.NewOperation(kind, path, value)
	if err != nil {
		t.Fatalf("Failed to build op: %v", err)
	}
	return op
}

func moveOp(kind patch.Kind, from, path string) patch.Operation {
	return patch.Operation{Kind: kind, From: from, Path: path}
}

func TestDescribe(t *testing.T) {
	prior := priorSnapshot(t)

	tests := []struct {
		name string
		op   patch.Operation
		want Change
	}{
		{
			name: "append root node",
			op:   mustOp(t, patch.Add, "/document/-", map[string]any{"name": "Summary"}),
			want: Change{Action: "Added Root Node 4: Summary", PreviousValue: "—", CurrentValue: "Summary", Class: ClassAdd},
		},
		{
			name: "insert untitled root node",
			op:   mustOp(t, patch.Add, "/document/0", map[string]any{}),
			want: Change{Action: "Added Root Node 1: Untitled", PreviousValue: "—", CurrentValue: "Untitled", Class: ClassAdd},
		},
		{
			name: "add child",
			op:   mustOp(t, patch.Add, "/document/0/children/-", map[string]any{"name": "Goals"}),
			want: Change{Action: "Added child to Node 1: Intro", PreviousValue: "—", CurrentValue: "Goals", Class: ClassAdd},
		},
		{
			name: "add content item",
			op:   mustOp(t, patch.Add, "/1/content/-", "c"),
			want: Change{Action: "Added content to Node 2: Body", PreviousValue: "—", CurrentValue: "c", Class: ClassAdd},
		},
		{
			name: "add property",
			op:   mustOp(t, patch.Add, "/0/tags", []any{"x", "y"}),
			want: Change{Action: "Added tags to Node 1: Intro", PreviousValue: "—", CurrentValue: "x | y", Class: ClassAdd},
		},
		{
			name: "remove root node",
			op:   mustOp(t, patch.Remove, "/document/1", nil),
			want: Change{Action: "Deleted Root Node 2: Body", PreviousValue: "Body", CurrentValue: "—", Class: ClassRemove},
		},
		{
			name: "remove missing root node",
			op:   mustOp(t, patch.Remove, "/document/9", nil),
			want: Change{Action: "Deleted Root Node 10: Unknown", PreviousValue: "Unknown", CurrentValue: "—", Class: ClassRemove},
		},
		{
			name: "remove child",
			op:   mustOp(t, patch.Remove, "/0/children/0", nil),
			want: Change{Action: "Deleted child from Node 1: Intro", PreviousValue: "Scope", CurrentValue: "—", Class: ClassRemove},
		},
		{
			name: "remove content item",
			op:   mustOp(t, patch.Remove, "/1/content/0", nil),
			want: Change{Action: "Deleted content item 1 from Node 2: Body", PreviousValue: "a", CurrentValue: "—", Class: ClassRemove},
		},
		{
			name: "rename root",
			op:   mustOp(t, patch.Replace, "/document/0/name", "Overview"),
			want: Change{Action: "Changed title of Node 1: Intro", PreviousValue: "Intro", CurrentValue: "Overview", Class: ClassReplace},
		},
		{
			name: "rename nested node",
			op:   mustOp(t, patch.Replace, "/0/children/0/name", "Range"),
			want: Change{Action: "Changed title of Node 1-1: Scope", PreviousValue: "Scope", CurrentValue: "Range", Class: ClassReplace},
		},
		{
			name: "explicit id replaces accumulated prefix",
			op:   mustOp(t, patch.Replace, "/2/children/0/children/0/name", "Words"),
			want: Change{Action: "Changed title of Node app-1-1: Terms", PreviousValue: "Terms", CurrentValue: "Words", Class: ClassReplace},
		},
		{
			name: "replace content",
			op:   mustOp(t, patch.Replace, "/1/content", []any{"z"}),
			want: Change{Action: "Changed content of Node 2: Body", PreviousValue: "a | b", CurrentValue: "z", Class: ClassReplace},
		},
		{
			name: "replace content item",
			op:   mustOp(t, patch.Replace, "/1/content/1", "B"),
			want: Change{Action: "Changed content item 2 in Node 2: Body", PreviousValue: "b", CurrentValue: "B", Class: ClassReplace},
		},
		{
			name: "replace root node",
			op:   mustOp(t, patch.Replace, "/0", map[string]any{"name": "Preface"}),
			want: Change{Action: "Replaced Node 1: Intro", PreviousValue: "Intro", CurrentValue: "Preface", Class: ClassReplace},
		},
		{
			name: "replace whole document",
			op:   mustOp(t, patch.Replace, "/document", []any{map[string]any{"name": "Only"}}),
			want: Change{Action: "Replaced the whole document", PreviousValue: "3 items", CurrentValue: "1 item", Class: ClassReplace},
		},
		{
			name: "edit timestamp is ignored",
			op:   mustOp(t, patch.Replace, "/1/lastModified", "2024-02-02"),
			want: Change{Class: ClassIgnore},
		},
		{
			name: "reorder root",
			op:   moveOp(patch.Move, "/document/0", "/document/2"),
			want: Change{Action: "Reordered Node 3: Intro to position 3", PreviousValue: "Position 1", CurrentValue: "Position 3", Class: ClassMove},
		},
		{
			name: "reorder to end",
			op:   moveOp(patch.Move, "/document/0", "/document/-"),
			want: Change{Action: "Reordered Node 3: Intro to position 3", PreviousValue: "Position 1", CurrentValue: "Position 3", Class: ClassMove},
		},
		{
			name: "move without positions",
			op:   moveOp(patch.Move, "/0/name", "/0/title"),
			want: Change{Action: "Reordered Node 1: Intro", PreviousValue: "Previous position", CurrentValue: "New position", Class: ClassMove},
		},
		{
			name: "duplicate child",
			op:   moveOp(patch.Copy, "/0/children/0", "/0/children/-"),
			want: Change{Action: "Duplicated Node 1-1: Scope to Node 1-2", PreviousValue: "Position 1", CurrentValue: "Position 2", Class: ClassCopy},
		},
		{
			name: "duplicate from property",
			op:   moveOp(patch.Copy, "/0/name", "/1/name"),
			want: Change{Action: "Duplicated item to Node 2: Body", PreviousValue: "Source", CurrentValue: "Copy", Class: ClassCopy},
		},
		{
			name: "move to pending",
			op:   mustOp(t, patch.Add, "/pending/-", map[string]any{"name": "Intro"}),
			want: Change{Action: "Moved to Pending: Intro", PreviousValue: "Document", CurrentValue: "Pending", Class: ClassMove},
		},
		{
			name: "delete from pending",
			op:   mustOp(t, patch.Remove, "/pending/0", nil),
			want: Change{Action: "Permanently deleted from Pending: Old", PreviousValue: "Old", CurrentValue: "—", Class: ClassRemove},
		},
		{
			name: "replace pending list",
			op:   mustOp(t, patch.Replace, "/pending", []any{}),
			want: Change{Action: "Replaced Pending list", PreviousValue: "1 item", CurrentValue: "0 items", Class: ClassReplace},
		},
		{
			name: "modify pending item",
			op:   mustOp(t, patch.Replace, "/pending/0/name", "Older"),
			want: Change{Action: "Modified Pending item", PreviousValue: "Old", CurrentValue: "Older", Class: ClassReplace},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Describe(tt.op, prior)
			if err != nil {
				t.Fatalf("Describe failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Describe mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDescribeWithoutPrior(t *testing.T) {
	got, err := Describe(mustOp(t, patch.Remove, "/0/children/0", nil), nil)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if got.PreviousValue != "Unknown" {
		t.Errorf("Expected Unknown previous value, got %q", got.PreviousValue)
	}
	if got.Action != "Deleted child from Node 1" {
		t.Errorf("Unexpected action %q", got.Action)
	}
}

func TestDescribeErrors(t *testing.T) {
	prior := priorSnapshot(t)

	tests := []struct {
		name string
		op   patch.Operation
		want error
	}{
		{"remove whole document", mustOp(t, patch.Remove, "/document", nil), ErrMalformedPath},
		{"root add at field", mustOp(t, patch.Add, "/name", "x"), ErrMalformedPath},
		{"unknown kind", patch.Operation{Path: "/0"}, ErrUnknownKind},
		{"pending remove by name", mustOp(t, patch.Remove, "/pending/first", nil), ErrMalformedPath},
		{"add without value", mustOp(t, patch.Add, "/document/0/children/-", nil), ErrMissingValue},
		{"replace without value", mustOp(t, patch.Replace, "/1/content/0", nil), ErrMissingValue},
		{"pending add without value", mustOp(t, patch.Add, "/pending/-", nil), ErrMissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Describe(tt.op, prior)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestFormatValueTruncation(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	got, err := Describe(mustOp(t, patch.Replace, "/1/content/0", string(long)), priorSnapshot(t))
	if err != nil {
		t.Fatal(err)
	}
	if n := len([]rune(got.CurrentValue)); n != snapshot.MaxValueLength+1 {
		t.Errorf("Expected %d runes, got %d", snapshot.MaxValueLength+1, n)
	}
}
