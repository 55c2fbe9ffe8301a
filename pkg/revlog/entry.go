package revlog

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"
)

// EntryType represents the kind of record stored in the log
type EntryType byte

const (
	// EntryRevision holds one committed revision
	EntryRevision EntryType = 1

	// EntryCheckpoint holds the materialized state as of a version
	EntryCheckpoint EntryType = 2
)

const (
	// EntryHeaderSize is the fixed size of the entry header
	// Layout: Seq(8) + Type(1) + Reserved(3) + PayloadLen(4) + Timestamp(8)
	EntryHeaderSize = 24

	// MaxPayloadSize bounds a single payload; larger lengths mean a damaged header
	MaxPayloadSize = 64 << 20
)

// Entry represents a single log record
type Entry struct {
	Seq       uint64    // Revision version the entry belongs to
	Type      EntryType // Entry type
	Payload   []byte    // JSON-encoded revision or state
	Timestamp time.Time // Entry timestamp
}

// Encode serializes the entry to bytes with CRC32 checksum
// Format: [Header(24)] [Payload] [CRC32(4)]
func (e *Entry) Encode() []byte {
	payloadLen := len(e.Payload)
	buf := make([]byte, EntryHeaderSize+payloadLen+4)

	binary.LittleEndian.PutUint64(buf[0:8], e.Seq)
	buf[8] = byte(e.Type)
	// bytes 9-11 are reserved
	binary.LittleEndian.PutUint32(buf[12:16], uint32(payloadLen))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(e.Timestamp.UnixNano()))

	offset := EntryHeaderSize
	copy(buf[offset:], e.Payload)
	offset += payloadLen

	crc := crc32.ChecksumIEEE(buf[:offset])
	binary.LittleEndian.PutUint32(buf[offset:offset+4], crc)

	return buf
}

// payloadLen reads the payload length out of an encoded header
func payloadLen(header []byte) (int, error) {
	n := binary.LittleEndian.Uint32(header[12:16])
	if n > MaxPayloadSize {
		return 0, ErrInvalidEntry
	}
	return int(n), nil
}

// DecodeEntry deserializes an entry from bytes
func DecodeEntry(data []byte) (*Entry, error) {
	if len(data) < EntryHeaderSize+4 {
		return nil, ErrTruncated
	}

	n, err := payloadLen(data)
	if err != nil {
		return nil, err
	}
	if len(data) < EntryHeaderSize+n+4 {
		return nil, ErrTruncated
	}
	data = data[:EntryHeaderSize+n+4]

	storedCRC := binary.LittleEndian.Uint32(data[len(data)-4:])
	if storedCRC != crc32.ChecksumIEEE(data[:len(data)-4]) {
		return nil, ErrCorrupted
	}

	entry := &Entry{
		Seq:       binary.LittleEndian.Uint64(data[0:8]),
		Type:      EntryType(data[8]),
		Timestamp: time.Unix(0, int64(binary.LittleEndian.Uint64(data[16:24]))).UTC(),
	}
	if entry.Type != EntryRevision && entry.Type != EntryCheckpoint {
		return nil, fmt.Errorf("%w: unknown type %d", ErrCorrupted, entry.Type)
	}
	if n > 0 {
		entry.Payload = make([]byte, n)
		copy(entry.Payload, data[EntryHeaderSize:EntryHeaderSize+n])
	}

	return entry, nil
}

// Size returns the encoded size of the entry
func (e *Entry) Size() int {
	return EntryHeaderSize + len(e.Payload) + 4
}

// String returns a human-readable representation of the entry
func (e *Entry) String() string {
	typeName := "UNKNOWN"
	switch e.Type {
	case EntryRevision:
		typeName = "REVISION"
	case EntryCheckpoint:
		typeName = "CHECKPOINT"
	}
	return fmt.Sprintf("revlog[Seq=%d Type=%s PayloadLen=%d]", e.Seq, typeName, len(e.Payload))
}
