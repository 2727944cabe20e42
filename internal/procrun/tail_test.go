package procrun

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTailKeepsMostRecentLines(t *testing.T) {
	tl := newTail(3)
	if tl.lines() != nil {
		t.Fatal("expected nil lines for empty tail")
	}
	for _, line := range []string{"a", "b"} {
		tl.add(line)
	}
	if got := strings.Join(tl.lines(), ""); got != "ab" {
		t.Fatalf("unexpected partial tail %q", got)
	}
	for _, line := range []string{"c", "d", "e"} {
		tl.add(line)
	}
	if got := strings.Join(tl.lines(), ""); got != "cde" {
		t.Fatalf("unexpected wrapped tail %q", got)
	}
}

func TestDiagnosticFallsBackToStdout(t *testing.T) {
	capture := newOutputCapture(2, nil)
	out := capture.writer(Stdout)
	_, _ = out.Write([]byte("one\ntwo\nthree"))
	capture.flush()
	if got := strings.Join(capture.diagnostic(), ","); got != "two,three" {
		t.Fatalf("unexpected stdout fallback %q", got)
	}

	errW := capture.writer(Stderr)
	_, _ = errW.Write([]byte("boom\n"))
	if got := strings.Join(capture.diagnostic(), ","); got != "boom" {
		t.Fatalf("expected stderr to win, got %q", got)
	}
}

func TestLineWriterCapsUnterminatedLines(t *testing.T) {
	capture := newOutputCapture(4, nil)
	w := capture.writer(Stderr)
	chunk := []byte(strings.Repeat("x", 3000))
	for range 3 {
		_, _ = w.Write(chunk)
	}
	_, _ = w.Write([]byte("\nok"))
	capture.flush()

	lines := capture.diagnostic()
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %d", len(lines))
	}
	if len(lines[0]) != maxLineBytes || lines[1] != "ok" {
		t.Fatalf("unexpected lines: %d bytes then %q", len(lines[0]), lines[1])
	}
}

func TestTailClipsOnRuneBoundary(t *testing.T) {
	tl := newTail(1)
	tl.add("a" + strings.Repeat("é", 3000))
	got := tl.lines()[0]
	if len(got) > maxLineBytes || !utf8.ValidString(got) {
		t.Fatalf("clipped line has %d bytes, valid=%v", len(got), utf8.ValidString(got))
	}
	if len(got) != maxLineBytes-1 {
		t.Fatalf("expected cut before the split rune, got %d bytes", len(got))
	}
}
