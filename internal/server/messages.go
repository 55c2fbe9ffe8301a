// Request and response messages of the audit service
package server

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/treeaudit/pkg/changes"
	"github.com/nainya/treeaudit/pkg/document"
	"github.com/nainya/treeaudit/pkg/patch"
	"github.com/nainya/treeaudit/pkg/revision"
	"github.com/nainya/treeaudit/pkg/snapshot"
)

// Messages travel as google.protobuf.Struct. Each Go message below is
// converted through its JSON form, so field names on the wire are the json
// tags.

// RevisionRow is one revision as shown in the panel
type RevisionRow struct {
	Version    int    `json:"version"`
	Timestamp  string `json:"timestamp"`
	Author     string `json:"author"`
	Message    string `json:"message"`
	Operations int    `json:"operations"`
	Expanded   bool   `json:"expanded"`
}

// ListRevisionsResponse lists revisions newest first
type ListRevisionsResponse struct {
	Revisions []RevisionRow `json:"revisions"`
}

// GetChangesRequest asks for the change records of one revision
type GetChangesRequest struct {
	Version int    `json:"version"`
	Query   string `json:"query,omitempty"`
}

// GetChangesResponse carries the records of one revision
type GetChangesResponse struct {
	Version int              `json:"version"`
	Records []changes.Record `json:"records"`
	Label   string           `json:"label"`
}

// SearchRevisionsRequest filters the revision panel
type SearchRevisionsRequest struct {
	Query string `json:"query"`
}

// SearchMatch is one visible revision of a search
type SearchMatch struct {
	Revision      RevisionRow      `json:"revision"`
	MetadataMatch bool             `json:"metadataMatch"`
	Records       []changes.Record `json:"records,omitempty"`
}

// SearchRevisionsResponse is the filtered revision panel
type SearchRevisionsResponse struct {
	Matches []SearchMatch `json:"matches"`
	Label   string        `json:"label"`
}

// FilterTreeRequest filters the latest document tree
type FilterTreeRequest struct {
	Query string `json:"query"`
}

// FilterTreeResponse is the pruned tree
type FilterTreeResponse struct {
	Nodes []*document.Node `json:"nodes"`
	Label string           `json:"label"`
}

// CommitRequest appends a revision
type CommitRequest struct {
	Author  string            `json:"author"`
	Message string            `json:"message"`
	Patch   []patch.Operation `json:"patch"`
}

// CommitResponse reports the committed revision
type CommitResponse struct {
	Revision RevisionRow `json:"revision"`
}

// RevertRequest restores the state of an earlier version
type RevertRequest struct {
	Version int    `json:"version"`
	Author  string `json:"author"`
}

// RevertResponse reports the outcome of a revert
type RevertResponse = revision.RevertResult

// GetSnapshotRequest asks for the state at a version, the latest when nil
type GetSnapshotRequest struct {
	Version *int `json:"version,omitempty"`
}

// GetSnapshotResponse carries a materialized state
type GetSnapshotResponse struct {
	Version  int                `json:"version"`
	Snapshot *snapshot.Snapshot `json:"snapshot"`
}

func rowOf(r revision.Revision, expanded bool) RevisionRow {
	row := RevisionRow{
		Version:    r.Version,
		Author:     r.Author,
		Message:    r.Message,
		Operations: len(r.Patch),
		Expanded:   expanded,
	}
	if !r.Timestamp.IsZero() {
		row.Timestamp = r.Timestamp.Format(changes.TimeLayout)
	}
	return row
}

// toStruct encodes a Go message as a protobuf Struct
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(b, st); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return st, nil
}

// fromStruct decodes a protobuf Struct into a Go message
func fromStruct(st *structpb.Struct, v any) error {
	if st == nil {
		st = &structpb.Struct{}
	}
	b, err := protojson.Marshal(st)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
