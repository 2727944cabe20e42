package download

import (
	"testing"
	"time"

	"swc/internal/procrun"
)

func TestYTDLPParserLines(t *testing.T) {
	tests := []struct {
		name   string
		stream procrun.Stream
		lines  []string
		check  func(t *testing.T, r *Report)
	}{
		{
			name:   "file marker is authoritative",
			stream: procrun.Stdout,
			lines: []string{
				"[download] Destination: /w/A.f251.webm",
				"swc:file\t/w/A.webm\twebm\t212.5\tA\twith tab",
			},
			check: func(t *testing.T, r *Report) {
				if len(r.Paths()) != 1 || r.Paths()[0] != "/w/A.webm" {
					t.Fatalf("unexpected paths %v", r.Paths())
				}
				if r.Container != "webm" || r.Title != "A\twith tab" {
					t.Fatalf("unexpected metadata %q/%q", r.Container, r.Title)
				}
				if r.Duration != 212500*time.Millisecond {
					t.Fatalf("unexpected duration %s", r.Duration)
				}
			},
		},
		{
			name:   "marker with unknown fields",
			stream: procrun.Stdout,
			lines:  []string{"swc:file\t/w/B.m4a\tNA\tNA\tNA"},
			check: func(t *testing.T, r *Report) {
				if r.Container != "" || r.Title != "" || r.Duration != 0 {
					t.Fatalf("NA fields should be ignored: %+v", r)
				}
				if len(r.Files) != 1 {
					t.Fatalf("expected file recorded, got %v", r.Files)
				}
			},
		},
		{
			name:   "merger replaces intermediate destinations",
			stream: procrun.Stdout,
			lines: []string{
				"[download] Destination: /w/C.f137.mp4",
				"[download] Destination: /w/C.f251.webm",
				`[Merger] Merging formats into "/w/C.mkv"`,
			},
			check: func(t *testing.T, r *Report) {
				if len(r.Candidates) != 1 || r.Candidates[0] != "/w/C.mkv" {
					t.Fatalf("unexpected candidates %v", r.Candidates)
				}
			},
		},
		{
			name:   "already downloaded",
			stream: procrun.Stdout,
			lines:  []string{"[download] /w/D.webm has already been downloaded"},
			check: func(t *testing.T, r *Report) {
				if len(r.Candidates) != 1 || r.Candidates[0] != "/w/D.webm" {
					t.Fatalf("unexpected candidates %v", r.Candidates)
				}
			},
		},
		{
			name:   "first stderr error wins",
			stream: procrun.Stderr,
			lines: []string{
				"WARNING: something odd",
				"ERROR: [youtube] abc: Video unavailable",
				"ERROR: second error",
			},
			check: func(t *testing.T, r *Report) {
				if r.ErrorMessage != "[youtube] abc: Video unavailable" {
					t.Fatalf("unexpected error message %q", r.ErrorMessage)
				}
			},
		},
		{
			name:   "stdout error lines ignored",
			stream: procrun.Stdout,
			lines:  []string{"ERROR: not from stderr"},
			check: func(t *testing.T, r *Report) {
				if r.ErrorMessage != "" {
					t.Fatalf("expected no error message, got %q", r.ErrorMessage)
				}
			},
		},
		{
			name:   "progress percent",
			stream: procrun.Stdout,
			lines:  []string{"[download]  42.7% of ~3.21MiB at 1.00MiB/s ETA 00:02"},
			check: func(t *testing.T, r *Report) {
				if r.Percent != 42.7 {
					t.Fatalf("unexpected percent %v", r.Percent)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := &Report{}
			var parser YTDLPParser
			for _, line := range tt.lines {
				parser.ParseLine(tt.stream, line, report)
			}
			tt.check(t, report)
		})
	}
}
