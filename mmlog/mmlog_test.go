package mmlog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerWritesLevelFilteredJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, zerolog.WarnLevel)

	l.Info("should be filtered")
	if buf.Len() != 0 {
		t.Fatalf("expected info line filtered at warn level, got %q", buf.String())
	}

	l.Warn("connection reset", F("core", 3))
	out := buf.String()
	if !strings.Contains(out, `"core":3`) || !strings.Contains(out, "connection reset") {
		t.Fatalf("unexpected log line: %q", out)
	}
}

func TestWithAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, zerolog.InfoLevel)
	sub := base.With(F("core", 1))

	sub.Info("booted")
	if !strings.Contains(buf.String(), `"core":1`) {
		t.Fatalf("expected core field from With, got %q", buf.String())
	}
}
