package revlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEntryEncodeDecode(t *testing.T) {
	entry := &Entry{
		Seq:       42,
		Type:      EntryRevision,
		Payload:   []byte(`{"version":42}`),
		Timestamp: time.Unix(1700000000, 123).UTC(),
	}

	decoded, err := DecodeEntry(entry.Encode())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.Seq != entry.Seq {
		t.Errorf("Seq mismatch: got %d, want %d", decoded.Seq, entry.Seq)
	}
	if decoded.Type != entry.Type {
		t.Errorf("Type mismatch: got %d, want %d", decoded.Type, entry.Type)
	}
	if string(decoded.Payload) != string(entry.Payload) {
		t.Errorf("Payload mismatch: got %s, want %s", decoded.Payload, entry.Payload)
	}
	if !decoded.Timestamp.Equal(entry.Timestamp) {
		t.Errorf("Timestamp mismatch: got %v, want %v", decoded.Timestamp, entry.Timestamp)
	}
}

func TestDecodeDetectsCorruption(t *testing.T) {
	entry := &Entry{Seq: 1, Type: EntryCheckpoint, Payload: []byte("state")}
	data := entry.Encode()
	data[EntryHeaderSize] ^= 0xFF

	if _, err := DecodeEntry(data); !errors.Is(err, ErrCorrupted) {
		t.Errorf("Expected ErrCorrupted, got %v", err)
	}
	if _, err := DecodeEntry(data[:10]); !errors.Is(err, ErrTruncated) {
		t.Errorf("Expected ErrTruncated, got %v", err)
	}
}

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l := &Log{Path: filepath.Join(t.TempDir(), "history.log")}
	if err := l.Open(); err != nil {
		t.Fatalf("Failed to open log: %v", err)
	}
	return l
}

func TestLogAppendReplay(t *testing.T) {
	l := openTestLog(t)

	for i := 1; i <= 20; i++ {
		typ := EntryRevision
		if i%5 == 0 {
			typ = EntryCheckpoint
		}
		err := l.Append(Entry{
			Seq:       uint64(i),
			Type:      typ,
			Payload:   []byte(fmt.Sprintf(`{"n":%d}`, i)),
			Timestamp: time.Now(),
		})
		if err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var seqs []uint64
	stats, err := Replay(l, func(e *Entry) error {
		seqs = append(seqs, e.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	if len(seqs) != 20 {
		t.Fatalf("Expected 20 entries, got %d", len(seqs))
	}
	for i, seq := range seqs {
		if seq != uint64(i+1) {
			t.Errorf("Entry %d out of order: seq %d", i, seq)
		}
	}
	if stats.Revisions != 16 || stats.Checkpoints != 4 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if stats.LastRevision != 19 || stats.LastCheckpoint != 20 {
		t.Errorf("Unexpected last seqs %+v", stats)
	}
}

func TestLogReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.log")

	for round := 0; round < 3; round++ {
		l := &Log{Path: path}
		if err := l.Open(); err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if err := l.Append(Entry{Seq: uint64(round + 1), Type: EntryRevision}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		l.Close()
	}

	l := &Log{Path: path}
	stats, err := Replay(l, func(*Entry) error { return nil })
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if stats.Revisions != 3 || stats.Segments != 1 {
		t.Errorf("Expected 3 revisions in 1 segment, got %+v", stats)
	}
}

func TestReplaySkipsDamagedEntries(t *testing.T) {
	l := openTestLog(t)
	for i := 1; i <= 3; i++ {
		if err := l.Append(Entry{Seq: uint64(i), Type: EntryRevision, Payload: []byte("payload")}); err != nil {
			t.Fatal(err)
		}
	}
	l.Close()

	files, err := l.Segments()
	if err != nil || len(files) != 1 {
		t.Fatalf("Expected one segment, got %v (%v)", files, err)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}

	// Flip a payload byte in the middle entry and cut the last one short
	size := (&Entry{Payload: []byte("payload")}).Size()
	data[size+EntryHeaderSize] ^= 0xFF
	data = data[:len(data)-3]
	if err := os.WriteFile(files[0], data, 0o644); err != nil {
		t.Fatal(err)
	}

	var seqs []uint64
	stats, err := Replay(l, func(e *Entry) error {
		seqs = append(seqs, e.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(seqs) != 1 || seqs[0] != 1 {
		t.Errorf("Expected only seq 1 to survive, got %v", seqs)
	}
	if stats.Skipped != 2 {
		t.Errorf("Expected 2 skipped entries, got %d", stats.Skipped)
	}
	if stats.ValidSize != int64(2*size) || stats.TornBytes != int64(size-3) {
		t.Errorf("Expected valid size %d and %d torn bytes, got %d and %d",
			2*size, size-3, stats.ValidSize, stats.TornBytes)
	}
}

func TestAppendAfterTornTail(t *testing.T) {
	l := openTestLog(t)
	for i := 1; i <= 2; i++ {
		if err := l.Append(Entry{Seq: uint64(i), Type: EntryRevision, Payload: []byte("payload")}); err != nil {
			t.Fatal(err)
		}
	}
	l.Close()

	files, err := l.Segments()
	if err != nil || len(files) != 1 {
		t.Fatalf("Expected one segment, got %v (%v)", files, err)
	}

	// A crash part way through the header of a third entry
	partial := (&Entry{Seq: 3, Type: EntryRevision, Payload: []byte("payload")}).Encode()[:14]
	f, err := os.OpenFile(files[0], os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(partial); err != nil {
		t.Fatal(err)
	}
	f.Close()

	stats, err := Replay(l, func(*Entry) error { return nil })
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if stats.Revisions != 2 || stats.TornBytes != 14 {
		t.Errorf("Expected 2 revisions and 14 torn bytes, got %+v", stats)
	}

	if err := l.Open(); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if err := l.Append(Entry{Seq: 3, Type: EntryRevision, Payload: []byte("payload")}); err != nil {
		t.Fatal(err)
	}
	l.Close()

	var seqs []uint64
	stats, err = Replay(l, func(e *Entry) error {
		seqs = append(seqs, e.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if fmt.Sprint(seqs) != "[1 2 3]" {
		t.Errorf("Expected seqs [1 2 3] after appending past the torn tail, got %v", seqs)
	}
	if stats.Skipped != 0 || stats.TornBytes != 0 {
		t.Errorf("Expected a clean log, got %+v", stats)
	}
}

func TestAppendAfterClose(t *testing.T) {
	l := openTestLog(t)
	l.Close()

	if err := l.Append(Entry{Seq: 1, Type: EntryRevision}); !errors.Is(err, ErrLogClosed) {
		t.Errorf("Expected ErrLogClosed, got %v", err)
	}
}

func TestReplayMissingDirectory(t *testing.T) {
	l := &Log{Path: filepath.Join(t.TempDir(), "absent", "history.log")}
	stats, err := Replay(l, func(*Entry) error { return nil })
	if err != nil {
		t.Fatalf("Replay of a fresh path failed: %v", err)
	}
	if stats.Segments != 0 {
		t.Errorf("Expected no segments, got %d", stats.Segments)
	}
}
