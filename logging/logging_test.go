package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestStdLoggerDropsBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLogger(&buf, LevelWarn)
	l.Debugf("debug line")
	l.Infof("info line")
	l.Warnf("warn line")
	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Fatalf("expected sub-threshold lines dropped, got %q", out)
	}
	if !strings.Contains(out, "warn line") {
		t.Fatalf("expected warn line present, got %q", out)
	}
}

func TestRingLoggerForwardsToWrapped(t *testing.T) {
	var buf bytes.Buffer
	std := NewStdLogger(&buf, LevelDebug)
	ring := NewRingLogger(std, 10)
	ring.Infof("hello %d", 1)
	if !strings.Contains(buf.String(), "hello 1") {
		t.Fatalf("expected forwarded line in wrapped logger, got %q", buf.String())
	}
}

func TestRingLoggerRecentBeforeFull(t *testing.T) {
	ring := NewRingLogger(NewStdLogger(&bytes.Buffer{}, LevelDebug), 5)
	ring.Infof("one")
	ring.Infof("two")
	ring.Infof("three")

	got := ring.Recent(2)
	if len(got) != 2 || !strings.Contains(got[0], "two") || !strings.Contains(got[1], "three") {
		t.Fatalf("unexpected recent lines: %v", got)
	}
}

func TestRingLoggerRecentWrapsAfterFull(t *testing.T) {
	ring := NewRingLogger(NewStdLogger(&bytes.Buffer{}, LevelDebug), 3)
	for i := 0; i < 5; i++ {
		ring.Infof("line-%d", i)
	}
	// capacity 3, 5 writes: only line-2, line-3, line-4 survive
	got := ring.Recent(3)
	want := []string{"line-2", "line-3", "line-4"}
	if len(got) != 3 {
		t.Fatalf("expected 3 lines, got %d: %v", len(got), got)
	}
	for i, w := range want {
		if !strings.Contains(got[i], w) {
			t.Fatalf("position %d: expected to contain %q, got %q", i, w, got[i])
		}
	}
}

func TestRingLoggerRecentNGreaterThanAvailableReturnsAll(t *testing.T) {
	ring := NewRingLogger(NewStdLogger(&bytes.Buffer{}, LevelDebug), 10)
	ring.Infof("only-one")
	got := ring.Recent(100)
	if len(got) != 1 || !strings.Contains(got[0], "only-one") {
		t.Fatalf("unexpected: %v", got)
	}
}
