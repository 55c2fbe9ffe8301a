package revlog

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ReplayFunc is called for each intact entry, in log order
type ReplayFunc func(entry *Entry) error

// Stats describes what a replay found in the log
type Stats struct {
	Segments       int
	Revisions      int
	Checkpoints    int
	Skipped        int
	LastRevision   uint64
	LastCheckpoint uint64

	// ValidSize is the whole-entry prefix of the last segment; TornBytes
	// is what follows it, left behind by an interrupted write
	ValidSize int64
	TornBytes int64
}

// Replay reads every segment of l and hands each intact entry to fn.
// Damaged entries are skipped and counted rather than failing the replay.
func Replay(l *Log, fn ReplayFunc) (*Stats, error) {
	files, err := l.Segments()
	if err != nil {
		return nil, err
	}
	stats := &Stats{Segments: len(files)}
	if len(files) == 0 {
		return stats, nil
	}

	reader := NewReader(files)
	defer reader.Close()

	var entries []*Entry
	for {
		entry, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read log entries: %w", err)
		}
		entries = append(entries, entry)
	}
	stats.Skipped = reader.Skipped
	stats.ValidSize = reader.ValidSize()

	stat, err := os.Stat(files[len(files)-1])
	if err != nil {
		return nil, err
	}
	stats.TornBytes = stat.Size() - stats.ValidSize

	for _, entry := range entries {
		switch entry.Type {
		case EntryRevision:
			stats.Revisions++
			stats.LastRevision = entry.Seq
		case EntryCheckpoint:
			stats.Checkpoints++
			stats.LastCheckpoint = entry.Seq
		}
		if err := fn(entry); err != nil {
			return stats, fmt.Errorf("replay failed at seq %d: %w", entry.Seq, err)
		}
	}
	return stats, nil
}
