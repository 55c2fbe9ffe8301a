package revlog

import (
	"errors"
	"io"
	"os"
)

// Reader reads entries from segment files in order
type Reader struct {
	files   []string
	current int
	fd      *os.File
	offset  int64 // end of the last whole entry in the current segment

	// Skipped counts entries dropped for failing their checksum
	Skipped int
}

// NewReader creates a reader for the given segment files
func NewReader(files []string) *Reader {
	return &Reader{files: files, current: -1}
}

// Next returns the next intact entry, or io.EOF when all segments are read.
// Entries failing their checksum are skipped; a truncated or unreadable
// tail ends the current segment.
func (r *Reader) Next() (*Entry, error) {
	for {
		if r.fd == nil {
			if err := r.nextFile(); err != nil {
				return nil, err
			}
		}

		entry, err := r.readEntry()
		switch {
		case err == nil:
			return entry, nil
		case errors.Is(err, ErrCorrupted):
			r.Skipped++
			continue
		case errors.Is(err, io.EOF), errors.Is(err, ErrTruncated), errors.Is(err, ErrInvalidEntry):
			if !errors.Is(err, io.EOF) {
				r.Skipped++
			}
			r.fd.Close()
			r.fd = nil
			continue
		default:
			return nil, err
		}
	}
}

// readEntry reads one framed entry from the current segment
func (r *Reader) readEntry() (*Entry, error) {
	header := make([]byte, EntryHeaderSize)
	if _, err := io.ReadFull(r.fd, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}

	n, err := payloadLen(header)
	if err != nil {
		return nil, err
	}

	data := make([]byte, EntryHeaderSize+n+4)
	copy(data, header)
	if _, err := io.ReadFull(r.fd, data[EntryHeaderSize:]); err != nil {
		return nil, ErrTruncated
	}
	// A whole frame keeps the reader aligned even when its checksum fails
	r.offset += int64(len(data))
	return DecodeEntry(data)
}

// nextFile opens the following segment
func (r *Reader) nextFile() error {
	r.current++
	if r.current >= len(r.files) {
		return io.EOF
	}
	fd, err := os.Open(r.files[r.current])
	if err != nil {
		return err
	}
	r.fd = fd
	r.offset = 0
	return nil
}

// ValidSize returns the length of the whole-entry prefix of the segment
// being read, or of the last segment once Next has returned io.EOF
func (r *Reader) ValidSize() int64 {
	return r.offset
}

// Close closes the reader
func (r *Reader) Close() error {
	if r.fd != nil {
		err := r.fd.Close()
		r.fd = nil
		return err
	}
	return nil
}

// scanSegment returns the length of the prefix of file made of whole
// entries, and the file's size
func scanSegment(file string) (valid, size int64, err error) {
	stat, err := os.Stat(file)
	if err != nil {
		return 0, 0, err
	}
	reader := NewReader([]string{file})
	defer reader.Close()
	for {
		_, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return reader.ValidSize(), stat.Size(), nil
		}
		if err != nil {
			return 0, 0, err
		}
	}
}
