package patch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Category
	}{
		{"/pending/1", SideListItem},
		{"/document/pending/-", SideListItem},
		{"/2/children/0", ChildNode},
		{"/document/2/children/0/children/3", ChildNode},
		{"/1", RootNode},
		{"/document/-", RootNode},
		{"/0/content/2", ContentItem},
		{"/0/content", GenericProperty},
		{"/0/name", GenericProperty},
		{"/0/children/1/name", GenericProperty},
		{"", GenericProperty},
		{"garbage///", GenericProperty},
	}

	for _, tt := range tests {
		got := Classify(tt.path)
		if got.Category != tt.want {
			t.Errorf("Classify(%q): expected %s, got %s", tt.path, tt.want, got.Category)
		}
	}
}

func TestParsePathStripsDocumentPrefix(t *testing.T) {
	got := ParsePath("/document/2/children/0")
	want := Path{Index(2), Field("children"), Index(0)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParsePath mismatch (-want +got):\n%s", diff)
	}

	// Without the prefix the same path parses identically
	if diff := cmp.Diff(want, ParsePath("2/children/0")); diff != "" {
		t.Errorf("ParsePath without slash mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePathSegments(t *testing.T) {
	p := ParsePath("/0/a~1b/-/-3/07")

	if !p[0].IsIndex() || p[0].Index != 0 {
		t.Errorf("Expected index 0, got %+v", p[0])
	}
	if !p[1].Is("a/b") {
		t.Errorf("Expected unescaped field a/b, got %q", p[1].Name)
	}
	if p[2].Kind != AppendSegment {
		t.Errorf("Expected append segment, got %+v", p[2])
	}
	if p[3].IsIndex() {
		t.Errorf("Negative numbers must not parse as indexes")
	}
	if !p[4].IsIndex() || p[4].Index != 7 {
		t.Errorf("Expected index 7, got %+v", p[4])
	}
	if p.String() != "/0/a~1b/-/-3/7" {
		t.Errorf("Unexpected canonical form %q", p.String())
	}
}

func TestIsEditTimestamp(t *testing.T) {
	if !ParsePath("/document/3/lastModified").IsEditTimestamp() {
		t.Error("Expected lastModified path to be the edit timestamp")
	}
	if ParsePath("/3/name").IsEditTimestamp() {
		t.Error("name is not the edit timestamp")
	}
}

func TestCanonical(t *testing.T) {
	tests := map[string]string{
		"/0/name":          "/document/0/name",
		"0/name":           "/document/0/name",
		"/document/0":      "/document/0",
		"/pending/-":       "/pending/-",
		"":                 "/document",
		"/documentation/1": "/document/documentation/1",
	}
	for in, want := range tests {
		if got := Canonical(in); got != want {
			t.Errorf("Canonical(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestOperationWireFormat(t *testing.T) {
	data := []byte(`[
		{"op":"add","path":"/document/0","value":{"name":"Intro"}},
		{"op":"move","from":"/0","path":"/2","timestamp":"2024-01-01T10:00:00Z"}
	]`)

	ops, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("Expected 2 ops, got %d", len(ops))
	}
	if ops[0].Kind != Add || ops[1].Kind != Move {
		t.Errorf("Unexpected kinds %s, %s", ops[0].Kind, ops[1].Kind)
	}
	if ops[1].From != "/0" || ops[1].Timestamp == "" {
		t.Errorf("Move fields not decoded: %+v", ops[1])
	}

	out, err := json.Marshal(ops[0])
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != `{"op":"add","path":"/document/0","value":{"name":"Intro"}}` {
		t.Errorf("Unexpected encoding %s", out)
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := Decode([]byte(`[{"op":"test","path":"/0"}]`))
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
}
