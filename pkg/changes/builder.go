// ABOUTME: Change record builder for a single revision
// ABOUTME: Filters noise, resolves the prior snapshot and maps each operation in patch order

package changes

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nainya/treeaudit/pkg/patch"
	"github.com/nainya/treeaudit/pkg/revision"
	"github.com/nainya/treeaudit/pkg/snapshot"
)

const (
	// TimeLayout formats record times
	TimeLayout = "2006-01-02 15:04:05"

	// NoChangesAction labels the placeholder for revisions with nothing to show
	NoChangesAction = "No meaningful changes"

	// ErrorAction is shown in place of an operation that could not be described
	ErrorAction = "Unable to describe this change"
)

// SnapshotSource returns the document as committed at a version
type SnapshotSource interface {
	SnapshotAt(version int) (*snapshot.Snapshot, error)
}

// Observer receives a callback per rendered record and per handler failure
type Observer interface {
	RecordRendered(class string)
	HandlerFailed()
}

// Builder renders revisions into change records
type Builder struct {
	source   SnapshotSource
	log      zerolog.Logger
	observer Observer
}

// Option configures a Builder
type Option func(*Builder)

// WithLogger sets the logger used for handler failures
func WithLogger(l zerolog.Logger) Option {
	return func(b *Builder) { b.log = l }
}

// WithObserver registers a metrics observer
func WithObserver(o Observer) Option {
	return func(b *Builder) { b.observer = o }
}

// NewBuilder creates a builder reading prior snapshots from source, which
// may be nil when no history store is available
func NewBuilder(source SnapshotSource, opts ...Option) *Builder {
	b := &Builder{source: source, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build renders every meaningful operation of rev, in patch order
func (b *Builder) Build(rev revision.Revision) []Record {
	revTime := formatTime(rev.Timestamp)
	ops := Meaningful(rev.Patch)
	if len(ops) == 0 {
		return []Record{b.placeholder(revTime, rev.Author)}
	}

	prior := b.prior(rev.Version)
	records := make([]Record, 0, len(ops))
	for i, op := range ops {
		ch, err := b.describe(op, prior)
		if err != nil {
			b.log.Warn().
				Err(err).
				Int("version", rev.Version).
				Int("index", i).
				Str("op", op.Kind.String()).
				Str("path", op.Path).
				Msg("Failed to describe operation")
			if b.observer != nil {
				b.observer.HandlerFailed()
			}
			ch = Change{
				Action:        ErrorAction,
				PreviousValue: snapshot.EmptyValue,
				CurrentValue:  snapshot.EmptyValue,
				Class:         ClassError,
			}
		}
		if ch.Class == ClassIgnore && ch.Action == "" {
			continue
		}
		records = append(records, b.record(opTime(op, revTime), rev.Author, ch))
	}

	if len(records) == 0 {
		return []Record{b.placeholder(revTime, rev.Author)}
	}
	return records
}

// Meaningful drops operations that never surface as records: replaces of
// the edit-timestamp field, which only duplicate the revision time.
func Meaningful(ops []patch.Operation) []patch.Operation {
	out := make([]patch.Operation, 0, len(ops))
	for _, op := range ops {
		if op.Kind == patch.Replace && patch.ParsePath(op.Path).IsEditTimestamp() {
			continue
		}
		out = append(out, op)
	}
	return out
}

func (b *Builder) describe(op patch.Operation, prior *snapshot.Snapshot) (ch Change, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return Describe(op, prior)
}

// prior loads the snapshot preceding version. Version 0 has no prior state
// and a failing source degrades to none.
func (b *Builder) prior(version int) *snapshot.Snapshot {
	if version <= 0 || b.source == nil {
		return nil
	}
	snap, err := b.source.SnapshotAt(version - 1)
	if err != nil {
		b.log.Warn().
			Err(err).
			Int("version", version-1).
			Msg("Prior snapshot unavailable, rendering without previous values")
		return nil
	}
	return snap
}

func (b *Builder) placeholder(revTime, user string) Record {
	return b.record(revTime, user, Change{
		Action:        NoChangesAction,
		PreviousValue: snapshot.EmptyValue,
		CurrentValue:  snapshot.EmptyValue,
		Class:         ClassIgnore,
	})
}

func (b *Builder) record(t, user string, ch Change) Record {
	if b.observer != nil {
		b.observer.RecordRendered(ch.Class.String())
	}
	return newRecord(t, user, ch)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

// opTime prefers the operation's own timestamp over the revision's
func opTime(op patch.Operation, revTime string) string {
	if op.Timestamp == "" {
		return revTime
	}
	if t, err := time.Parse(time.RFC3339, op.Timestamp); err == nil {
		return t.Format(TimeLayout)
	}
	return op.Timestamp
}
