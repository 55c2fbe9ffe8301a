// Package server implements the gRPC audit service
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/treeaudit/internal/logger"
	"github.com/nainya/treeaudit/internal/metrics"
	"github.com/nainya/treeaudit/pkg/audit"
	"github.com/nainya/treeaudit/pkg/changes"
	"github.com/nainya/treeaudit/pkg/document"
	"github.com/nainya/treeaudit/pkg/revision"
	"github.com/nainya/treeaudit/pkg/search"
)

// Options configures a Server
type Options struct {
	DataPath        string
	CheckpointEvery int
	SnapshotCache   int
	Logger          *logger.Logger
	Metrics         *metrics.Metrics
}

// Server implements AuditServer over one revision history
type Server struct {
	store   *revision.Store
	builder *changes.Builder
	index   *audit.Index
	log     *logger.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex // serializes commits with index updates
	startTime time.Time
}

// NewServer opens the revision history and builds the revision index
func NewServer(opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	storeOpts := revision.Options{
		Path:            opts.DataPath,
		CheckpointEvery: opts.CheckpointEvery,
		CacheSize:       opts.SnapshotCache,
		Logger:          log.Component("store").Zerolog(),
	}
	builderOpts := []changes.Option{changes.WithLogger(log.Component("changes").Zerolog())}
	if opts.Metrics != nil {
		storeOpts.Observer = opts.Metrics
		builderOpts = append(builderOpts, changes.WithObserver(opts.Metrics))
	}

	store, err := revision.Open(storeOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open revision store: %w", err)
	}

	revs, err := store.ListRevisions()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}

	builder := changes.NewBuilder(store, builderOpts...)
	index := audit.NewIndex(revs, builder)
	if opts.Metrics != nil {
		index.SetObserver(opts.Metrics)
		opts.Metrics.SetRevisions(len(revs))
	}

	return &Server{
		store:     store,
		builder:   builder,
		index:     index,
		log:       log,
		metrics:   opts.Metrics,
		startTime: time.Now(),
	}, nil
}

// Close closes the revision store
func (s *Server) Close() error {
	return s.store.Close()
}

// Ready reports whether the server can serve requests
func (s *Server) Ready() bool {
	return s.store != nil
}

// ListRevisions returns the revision panel, newest first
func (s *Server) ListRevisions(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	entries := s.index.Entries()
	resp := ListRevisionsResponse{Revisions: make([]RevisionRow, len(entries))}
	for i, e := range entries {
		resp.Revisions[i] = rowOf(e.Revision, e.Expanded)
	}
	return encode(resp)
}

// GetChanges expands a revision and returns its records, filtered by the
// optional query
func (s *Server) GetChanges(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req GetChangesRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	records, err := s.index.Expand(req.Version)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.index.SetQuery(req.Version, req.Query); err != nil {
		return nil, toStatus(err)
	}
	visible, err := s.index.VisibleRecords(req.Version)
	if err != nil {
		return nil, toStatus(err)
	}
	s.observeFilter("record", req.Query)

	return encode(GetChangesResponse{
		Version: req.Version,
		Records: visible,
		Label:   search.Counter(len(visible), len(records)),
	})
}

// SearchRevisions runs the revision-level filter
func (s *Server) SearchRevisions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SearchRevisionsRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	res := search.FilterRevisions(s.index, search.FilterState{Query: req.Query})
	s.observeFilter("revision", req.Query)

	resp := SearchRevisionsResponse{Matches: make([]SearchMatch, len(res.Matches)), Label: res.Label}
	for i, m := range res.Matches {
		resp.Matches[i] = SearchMatch{
			Revision:      rowOf(m.Revision, m.Expanded),
			MetadataMatch: m.MetadataMatch,
			Records:       m.Records,
		}
	}
	return encode(resp)
}

// FilterTree runs the tree-level filter over the latest document
func (s *Server) FilterTree(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req FilterTreeRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	snap, err := s.store.SnapshotAt(s.store.Latest())
	if err != nil {
		return nil, toStatus(err)
	}
	doc, err := document.FromSnapshot(snap)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to decode document: %v", err)
	}

	res := search.FilterDocument(doc, search.FilterState{Query: req.Query})
	s.observeFilter("tree", req.Query)

	return encode(FilterTreeResponse{Nodes: res.Nodes, Label: res.Label})
}

// Commit appends a revision and adds it to the index
func (s *Server) Commit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CommitRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.Author == "" {
		return nil, status.Error(codes.InvalidArgument, "author is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	rev, err := s.store.Commit(req.Author, req.Message, req.Patch)
	s.log.LogStoreOperation("commit", rev.Version, time.Since(start), err)
	if err != nil {
		return nil, toStatus(err)
	}
	s.added(rev)

	return encode(CommitResponse{Revision: rowOf(rev, false)})
}

// Revert restores an earlier version as a new revision. An unknown version
// reports success false rather than an error status.
func (s *Server) Revert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req RevertRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.Author == "" {
		return nil, status.Error(codes.InvalidArgument, "author is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result, err := s.store.Revert(req.Version, req.Author)
	s.log.LogStoreOperation("revert", req.Version, time.Since(start), err)
	if err != nil && !errors.Is(err, revision.ErrUnknownVersion) {
		return nil, toStatus(err)
	}
	if result.Success {
		rev, err := s.store.Get(result.Version)
		if err != nil {
			return nil, toStatus(err)
		}
		s.added(rev)
	}
	return encode(result)
}

// GetSnapshot returns the materialized state at a version
func (s *Server) GetSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req GetSnapshotRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	version := s.store.Latest()
	if req.Version != nil {
		version = *req.Version
	}
	snap, err := s.store.SnapshotAt(version)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(GetSnapshotResponse{Version: version, Snapshot: snap})
}

// added registers a committed revision (caller must hold mu)
func (s *Server) added(rev revision.Revision) {
	s.index.Add(rev)
	if s.metrics != nil {
		s.metrics.SetRevisions(s.store.Latest())
	}
}

func (s *Server) observeFilter(tier, query string) {
	if s.metrics != nil && search.Normalize(query) != "" {
		s.metrics.FilterQuery(tier)
	}
}

func decode(in *structpb.Struct, v any) error {
	if err := fromStruct(in, v); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	st, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

// toStatus maps package errors onto gRPC status codes
func toStatus(err error) error {
	switch {
	case errors.Is(err, revision.ErrUnknownVersion), errors.Is(err, audit.ErrUnknownRevision):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, revision.ErrPatchRejected):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, revision.ErrEmptyPatch):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
