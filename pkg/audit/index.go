// ABOUTME: Revision index backing the audit trail panel
// ABOUTME: Descending revision order, per-revision expand state and a lazily built record cache

package audit

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/nainya/treeaudit/pkg/changes"
	"github.com/nainya/treeaudit/pkg/revision"
)

// ErrUnknownRevision indicates a version the index does not hold
var ErrUnknownRevision = errors.New("audit: unknown revision")

// RecordBuilder renders one revision into change records
type RecordBuilder interface {
	Build(rev revision.Revision) []changes.Record
}

// Observer is told whether record lookups were served from the cache
type Observer interface {
	RecordsCached(hit bool)
}

// State is the display state of one revision
type State uint8

const (
	Collapsed State = iota
	Expanded
)

func (s State) String() string {
	if s == Expanded {
		return "expanded"
	}
	return "collapsed"
}

// Entry is one row of the revision panel
type Entry struct {
	Revision revision.Revision
	Expanded bool
	Query    string // Per-revision record filter, empty when none
}

type slot struct {
	rev     revision.Revision
	state   State
	query   string
	records []changes.Record // nil until first built
}

// Index holds the revisions of one loaded history
type Index struct {
	mu       sync.Mutex
	builder  RecordBuilder
	observer Observer
	slots    []*slot // descending by version
	byVer    map[int]*slot
}

// NewIndex sorts a copy of revs by descending version. An empty history is
// represented by the placeholder revision.
func NewIndex(revs []revision.Revision, builder RecordBuilder) *Index {
	idx := &Index{builder: builder, byVer: make(map[int]*slot)}
	if len(revs) == 0 {
		revs = []revision.Revision{revision.Placeholder()}
	}
	for _, r := range revs {
		idx.insert(r)
	}
	return idx
}

// SetObserver registers a cache observer
func (idx *Index) SetObserver(o Observer) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.observer = o
}

// Add places a newly committed revision into the index. The placeholder is
// dropped once a real revision exists. A version already held is left as
// it is, records included.
func (idx *Index) Add(rev revision.Revision) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.byVer[rev.Version]; ok {
		return
	}
	if ph, ok := idx.byVer[0]; ok && !rev.IsPlaceholder() {
		delete(idx.byVer, 0)
		for i, s := range idx.slots {
			if s == ph {
				idx.slots = append(idx.slots[:i], idx.slots[i+1:]...)
				break
			}
		}
	}
	idx.insert(rev)
}

// insert adds rev keeping the descending order; the first revision seen
// for a version wins (caller must hold mu or own idx)
func (idx *Index) insert(rev revision.Revision) {
	if _, ok := idx.byVer[rev.Version]; ok {
		return
	}
	s := &slot{rev: rev}
	idx.byVer[rev.Version] = s
	i := sort.Search(len(idx.slots), func(i int) bool {
		return idx.slots[i].rev.Version < rev.Version
	})
	idx.slots = append(idx.slots, nil)
	copy(idx.slots[i+1:], idx.slots[i:])
	idx.slots[i] = s
}

// Len returns the number of revisions, the placeholder included
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.slots)
}

// Entries returns the panel rows in display order
func (idx *Index) Entries() []Entry {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	out := make([]Entry, len(idx.slots))
	for i, s := range idx.slots {
		out[i] = Entry{Revision: s.rev, Expanded: s.state == Expanded, Query: s.query}
	}
	return out
}

// Expand opens a revision, building its records on the first expansion
func (idx *Index) Expand(version int) ([]changes.Record, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	s, err := idx.lookup(version)
	if err != nil {
		return nil, err
	}
	s.state = Expanded
	return slices.Clone(idx.records(s)), nil
}

// Collapse closes a revision and clears its record query
func (idx *Index) Collapse(version int) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	s, err := idx.lookup(version)
	if err != nil {
		return err
	}
	s.state = Collapsed
	s.query = ""
	return nil
}

// Toggle flips a revision between collapsed and expanded and returns the
// new state
func (idx *Index) Toggle(version int) (State, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	s, err := idx.lookup(version)
	if err != nil {
		return Collapsed, err
	}
	if s.state == Expanded {
		s.state = Collapsed
		s.query = ""
	} else {
		s.state = Expanded
		idx.records(s)
	}
	return s.state, nil
}

// Records returns a copy of the change records of a revision, building
// them if needed
func (idx *Index) Records(version int) ([]changes.Record, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	s, err := idx.lookup(version)
	if err != nil {
		return nil, err
	}
	return slices.Clone(idx.records(s)), nil
}

// CachedRecords returns the records of a revision only if already built
func (idx *Index) CachedRecords(version int) ([]changes.Record, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	s, ok := idx.byVer[version]
	if !ok || s.records == nil {
		return nil, false
	}
	return slices.Clone(s.records), true
}

// SetQuery sets the record filter of one revision
func (idx *Index) SetQuery(version int, query string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	s, err := idx.lookup(version)
	if err != nil {
		return err
	}
	s.query = query
	return nil
}

// VisibleRecords returns the records of a revision that match its query
func (idx *Index) VisibleRecords(version int) ([]changes.Record, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	s, err := idx.lookup(version)
	if err != nil {
		return nil, err
	}
	records := idx.records(s)
	q := strings.ToLower(strings.TrimSpace(s.query))
	if q == "" {
		return slices.Clone(records), nil
	}
	out := make([]changes.Record, 0, len(records))
	for _, r := range records {
		if r.Matches(q) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (idx *Index) lookup(version int) (*slot, error) {
	s, ok := idx.byVer[version]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRevision, version)
	}
	return s, nil
}

// records returns the cached records of s, building them once (caller must hold mu)
func (idx *Index) records(s *slot) []changes.Record {
	hit := s.records != nil
	if idx.observer != nil {
		idx.observer.RecordsCached(hit)
	}
	if !hit {
		s.records = idx.builder.Build(s.rev)
		if s.records == nil {
			s.records = []changes.Record{}
		}
	}
	return s.records
}
