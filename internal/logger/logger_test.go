package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err != nil {
			t.Fatalf("Invalid log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for name, want := range tests {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestComponentAndServiceFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: "debug", Output: &buf})

	l.Component("index").Info().Int("version", 3).Msg("expanded")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	if lines[0]["service"] != ServiceName || lines[0]["component"] != "index" {
		t.Errorf("Missing service/component fields: %v", lines[0])
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: "info", Output: &buf})

	l.LogStoreOperation("commit", 1, time.Millisecond, nil)
	if buf.Len() != 0 {
		t.Errorf("Debug store log should be filtered at info level: %s", buf.String())
	}

	l.LogStoreOperation("commit", 2, time.Millisecond, errors.New("disk full"))
	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["level"] != "error" || lines[0]["error"] != "disk full" {
		t.Errorf("Expected one error line, got %v", lines)
	}
}

func TestLogGrpcRequest(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Output: &buf})

	l.LogGrpcRequest("/treeaudit.v1.AuditService/ListRevisions", 5*time.Millisecond, nil)
	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["method"] != "/treeaudit.v1.AuditService/ListRevisions" {
		t.Errorf("Unexpected lines %v", lines)
	}
}
