package revlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// MaxSegmentSize is the size at which the log rolls to a new segment file (100MB)
const MaxSegmentSize = 100 << 20

// Log is an append-only sequence of entries spread over numbered segment
// files. Segments are never deleted: the log is the revision history.
type Log struct {
	// Path is the base path for segment files (e.g., "/data/history.log")
	Path string

	fd        *os.File
	mu        sync.Mutex
	fileSize  int64
	fileIndex int
	closed    bool
}

// Open opens the latest segment for appending, creating the first one if
// needed. A partial entry at the end of the latest segment is cut off first.
func (l *Log) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return err
	}

	files, err := l.segmentsNoLock()
	if err != nil {
		return err
	}

	if len(files) > 0 {
		latest := files[len(files)-1]
		valid, size, err := scanSegment(latest)
		if err != nil {
			return err
		}
		fd, err := os.OpenFile(latest, os.O_RDWR|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		// Appending after a torn tail would leave the new entries unreadable
		if size > valid {
			if err := fd.Truncate(valid); err != nil {
				fd.Close()
				return fmt.Errorf("truncate torn tail of %s: %w", latest, err)
			}
			if err := fd.Sync(); err != nil {
				fd.Close()
				return err
			}
		}
		l.fd = fd
		l.fileSize = valid
		l.fileIndex = l.segmentIndex(latest)
	} else {
		fd, err := os.OpenFile(l.segmentPath(0), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		l.fd = fd
		l.fileSize = 0
		l.fileIndex = 0
	}

	l.closed = false
	return nil
}

// Append writes an entry and fsyncs it
func (l *Log) Append(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.fd == nil {
		return ErrLogClosed
	}

	data := entry.Encode()
	if l.fileSize > 0 && l.fileSize+int64(len(data)) > MaxSegmentSize {
		if err := l.rotateNoLock(); err != nil {
			return err
		}
	}

	n, err := l.fd.Write(data)
	l.fileSize += int64(n)
	if err != nil {
		return fmt.Errorf("append %s: %w", entry.String(), err)
	}
	return l.fd.Sync()
}

// Close closes the log
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.fd == nil {
		return nil
	}
	err := l.fd.Close()
	l.closed = true
	return err
}

// Segments returns all segment files in order
func (l *Log) Segments() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.segmentsNoLock()
}

// rotateNoLock moves appends to a new segment (caller must hold mu)
func (l *Log) rotateNoLock() error {
	if err := l.fd.Sync(); err != nil {
		return err
	}
	if err := l.fd.Close(); err != nil {
		return err
	}

	l.fileIndex++
	fd, err := os.OpenFile(l.segmentPath(l.fileIndex), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	l.fd = fd
	l.fileSize = 0
	return nil
}

func (l *Log) baseName() string {
	return filepath.Base(l.Path)
}

func (l *Log) segmentPath(index int) string {
	return filepath.Join(filepath.Dir(l.Path), fmt.Sprintf("%s.%03d", l.baseName(), index))
}

// segmentIndex parses the numeric suffix of a segment file, -1 if none
func (l *Log) segmentIndex(file string) int {
	var index int
	if _, err := fmt.Sscanf(filepath.Base(file), l.baseName()+".%d", &index); err != nil {
		return -1
	}
	return index
}

func (l *Log) segmentsNoLock() ([]string, error) {
	dir := filepath.Dir(l.Path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := filepath.Join(dir, entry.Name())
		if l.segmentIndex(name) >= 0 {
			files = append(files, name)
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return l.segmentIndex(files[i]) < l.segmentIndex(files[j])
	})
	return files, nil
}
