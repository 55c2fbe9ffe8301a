// ABOUTME: File-backed revision store with snapshot replay
// ABOUTME: Appends revisions to a revlog and rebuilds states from the nearest checkpoint

package revision

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	jsonpatch "github.com/evanphx/json-patch"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/nainya/treeaudit/pkg/patch"
	"github.com/nainya/treeaudit/pkg/revlog"
	"github.com/nainya/treeaudit/pkg/snapshot"
)

const (
	// DefaultCheckpointEvery is how many revisions pass between checkpoints
	DefaultCheckpointEvery = 50

	// DefaultCacheSize is how many materialized states are kept in memory
	DefaultCacheSize = 64
)

// Observer receives store timings. internal/metrics implements it.
type Observer interface {
	SnapshotReplayed(ops int, elapsed time.Duration)
	CacheLookup(hit bool)
	StoreOperation(op string, err error, elapsed time.Duration)
}

// Options configures a Store
type Options struct {
	Path            string // Base path of the revision log
	CheckpointEvery int    // Revisions between checkpoints, 0 uses the default
	CacheSize       int    // Materialized states kept in memory, 0 uses the default
	Logger          zerolog.Logger
	Observer        Observer
	Now             func() time.Time
}

// Store holds the revision history of one document
type Store struct {
	mu          sync.RWMutex
	log         *revlog.Log
	revisions   []Revision     // revisions[i].Version == i+1
	checkpoints map[int][]byte // version -> encoded state
	cache       *lru.Cache[int, []byte]
	every       int
	logger      zerolog.Logger
	observer    Observer
	now         func() time.Time
	stats       revlog.Stats
}

// Open opens the revision log at opts.Path and rebuilds the history from it
func Open(opts Options) (*Store, error) {
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = DefaultCheckpointEvery
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cache, err := lru.New[int, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot cache: %w", err)
	}

	s := &Store{
		log:         &revlog.Log{Path: opts.Path},
		checkpoints: make(map[int][]byte),
		cache:       cache,
		every:       opts.CheckpointEvery,
		logger:      opts.Logger,
		observer:    opts.Observer,
		now:         opts.Now,
	}

	stats, err := revlog.Replay(s.log, s.restore)
	if err != nil {
		return nil, fmt.Errorf("failed to replay revision log: %w", err)
	}
	s.stats = *stats

	if err := s.log.Open(); err != nil {
		return nil, fmt.Errorf("failed to open revision log: %w", err)
	}

	s.logger.Info().
		Int("segments", stats.Segments).
		Int("revisions", len(s.revisions)).
		Int("checkpoints", len(s.checkpoints)).
		Int("skipped", stats.Skipped).
		Int64("torn_bytes", stats.TornBytes).
		Msg("Revision history recovered")

	return s, nil
}

// restore applies one replayed log entry to the in-memory history
func (s *Store) restore(entry *revlog.Entry) error {
	switch entry.Type {
	case revlog.EntryRevision:
		var rev Revision
		if err := json.Unmarshal(entry.Payload, &rev); err != nil {
			s.logger.Warn().Err(err).Uint64("seq", entry.Seq).Msg("Skipping undecodable revision")
			return nil
		}
		if rev.Version != len(s.revisions)+1 {
			s.logger.Warn().
				Int("version", rev.Version).
				Int("expected", len(s.revisions)+1).
				Msg("Skipping out-of-sequence revision")
			return nil
		}
		s.revisions = append(s.revisions, rev)
	case revlog.EntryCheckpoint:
		if int(entry.Seq) <= len(s.revisions) {
			s.checkpoints[int(entry.Seq)] = entry.Payload
		}
	}
	return nil
}

// Stats returns what the last recovery found in the log
func (s *Store) Stats() revlog.Stats {
	return s.stats
}

// Close closes the underlying log
func (s *Store) Close() error {
	return s.log.Close()
}

// Latest returns the newest committed version, 0 when the history is empty
func (s *Store) Latest() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revisions)
}

// ListRevisions returns every committed revision in ascending version order
func (s *Store) ListRevisions() ([]Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Revision, len(s.revisions))
	copy(out, s.revisions)
	return out, nil
}

// Get returns the revision with the given version
func (s *Store) Get(version int) (Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if version < 1 || version > len(s.revisions) {
		return Revision{}, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	return s.revisions[version-1], nil
}

// AsOf returns the newest revision committed at or before t
func (s *Store) AsOf(t time.Time) (Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := sort.Search(len(s.revisions), func(i int) bool {
		return s.revisions[i].Timestamp.After(t)
	})
	if i == 0 {
		return Revision{}, fmt.Errorf("%w: nothing committed before %s", ErrUnknownVersion, t.Format(time.RFC3339))
	}
	return s.revisions[i-1], nil
}

// SnapshotAt materializes the document as of version. Version 0 is the
// empty document.
func (s *Store) SnapshotAt(version int) (*snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, err := s.stateAt(version)
	if err != nil {
		return nil, err
	}
	return snapshot.Decode(state)
}

// stateAt returns the encoded state at version (caller must hold mu)
func (s *Store) stateAt(version int) ([]byte, error) {
	if version < 0 || version > len(s.revisions) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	if version == 0 {
		return snapshot.Empty().Encode()
	}

	if state, ok := s.cache.Get(version); ok {
		s.observeCache(true)
		return state, nil
	}
	s.observeCache(false)

	// Walk back to the nearest cached state or checkpoint
	base := 0
	var state []byte
	for v := version - 1; v > 0; v-- {
		if cached, ok := s.cache.Peek(v); ok {
			base, state = v, cached
			break
		}
		if cp, ok := s.checkpoints[v]; ok {
			base, state = v, cp
			break
		}
	}
	if state == nil {
		var err error
		if state, err = snapshot.Empty().Encode(); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	ops := 0
	for v := base + 1; v <= version; v++ {
		next, err := applyOps(state, s.revisions[v-1].Patch)
		if err != nil {
			return nil, fmt.Errorf("failed to replay version %d: %w", v, err)
		}
		state = next
		ops += len(s.revisions[v-1].Patch)
	}
	if s.observer != nil {
		s.observer.SnapshotReplayed(ops, time.Since(start))
	}

	s.cache.Add(version, state)
	return state, nil
}

// Commit validates ops against the latest state and appends them as a new
// revision. Nothing is recorded when the patch does not apply.
func (s *Store) Commit(author, message string, ops []patch.Operation) (Revision, error) {
	start := time.Now()
	rev, err := s.commit(author, message, ops)
	if s.observer != nil {
		s.observer.StoreOperation("commit", err, time.Since(start))
	}
	return rev, err
}

func (s *Store) commit(author, message string, ops []patch.Operation) (Revision, error) {
	if len(ops) == 0 {
		return Revision{}, ErrEmptyPatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.stateAt(len(s.revisions))
	if err != nil {
		return Revision{}, err
	}
	next, err := applyOps(current, ops)
	if err != nil {
		return Revision{}, fmt.Errorf("%w: %v", ErrPatchRejected, err)
	}

	rev := Revision{
		Version:   len(s.revisions) + 1,
		Timestamp: s.now().UTC(),
		Author:    author,
		Message:   message,
		Patch:     append([]patch.Operation(nil), ops...),
	}
	payload, err := json.Marshal(rev)
	if err != nil {
		return Revision{}, fmt.Errorf("failed to encode revision: %w", err)
	}

	err = s.log.Append(revlog.Entry{
		Seq:       uint64(rev.Version),
		Type:      revlog.EntryRevision,
		Payload:   payload,
		Timestamp: rev.Timestamp,
	})
	if err != nil {
		return Revision{}, fmt.Errorf("failed to persist revision %d: %w", rev.Version, err)
	}

	s.revisions = append(s.revisions, rev)
	s.cache.Add(rev.Version, next)

	if rev.Version%s.every == 0 {
		s.checkpoint(rev.Version, next)
	}

	s.logger.Debug().
		Int("version", rev.Version).
		Str("author", author).
		Int("ops", len(ops)).
		Msg("Revision committed")

	return rev, nil
}

// checkpoint persists state for version (caller must hold mu). A failed
// checkpoint only costs replay time, so it is logged and not returned.
func (s *Store) checkpoint(version int, state []byte) {
	err := s.log.Append(revlog.Entry{
		Seq:       uint64(version),
		Type:      revlog.EntryCheckpoint,
		Payload:   state,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Int("version", version).Msg("Checkpoint failed")
		return
	}
	s.checkpoints[version] = state
}

// Revert commits a new revision that restores the document and the pending
// list to their state at version. An unknown version reports Success false
// and leaves the history untouched.
func (s *Store) Revert(version int, author string) (RevertResult, error) {
	s.mu.RLock()
	state, err := s.stateAt(version)
	s.mu.RUnlock()
	if err != nil {
		return RevertResult{Success: false, Reason: err.Error()}, err
	}

	snap, err := snapshot.Decode(state)
	if err != nil {
		return RevertResult{Success: false, Reason: err.Error()}, err
	}
	doc, err := patch.NewOperation(patch.Replace, "/document", snap.Document)
	if err != nil {
		return RevertResult{Success: false, Reason: err.Error()}, err
	}
	pending, err := patch.NewOperation(patch.Replace, "/pending", snap.Pending)
	if err != nil {
		return RevertResult{Success: false, Reason: err.Error()}, err
	}

	rev, err := s.Commit(author, fmt.Sprintf("Reverted to version %d", version), []patch.Operation{doc, pending})
	if err != nil {
		return RevertResult{Success: false, Reason: err.Error()}, err
	}
	return RevertResult{Success: true, Version: rev.Version}, nil
}

func (s *Store) observeCache(hit bool) {
	if s.observer != nil {
		s.observer.CacheLookup(hit)
	}
}

// wireOp is the RFC 6902 shape handed to the JSON Patch engine
type wireOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	From  string          `json:"from,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// applyOps applies ops to an encoded state. Paths are canonicalized so
// document-relative paths land under /document.
func applyOps(state []byte, ops []patch.Operation) ([]byte, error) {
	wire := make([]wireOp, 0, len(ops))
	for _, op := range ops {
		w := wireOp{Op: op.Kind.String(), Path: patch.Canonical(op.Path), Value: op.Value}
		if op.From != "" {
			w.From = patch.Canonical(op.From)
		}
		if op.Kind == patch.Add || op.Kind == patch.Replace {
			if len(w.Value) == 0 {
				w.Value = json.RawMessage("null")
			}
		}
		wire = append(wire, w)
	}
	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}
	p, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, err
	}
	return p.Apply(state)
}
