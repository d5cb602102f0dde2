package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewForwardsToSlog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	New(base, "http", slog.LevelWarn).Print("tls handshake error")

	out := buf.String()
	if !strings.Contains(out, "component=http") || !strings.Contains(out, "level=WARN") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestPrintf(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	NewPrintf(base, "cron").Printf("start %d jobs\n", 2)

	if !strings.Contains(buf.String(), `msg="start 2 jobs"`) {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
