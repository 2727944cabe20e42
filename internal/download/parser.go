package download

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"swc/internal/procrun"
)

// fileMarker prefixes the line printed by the downloader after it moves the
// finished file into place. Fields are tab separated with the title last.
const fileMarker = "swc:file"

// printTemplate asks the downloader to emit a fileMarker line per finished item.
const printTemplate = "after_move:" + fileMarker + "\t%(filepath)s\t%(ext)s\t%(duration)s\t%(title)s"

// Report accumulates what the downloader said while it ran.
type Report struct {
	// Files are paths announced through the file marker. They are
	// authoritative when present.
	Files []string
	// Candidates are paths inferred from progress lines.
	Candidates []string
	Title      string
	Container  string
	Duration   time.Duration
	// ErrorMessage is the text of the first stderr line starting with "ERROR:".
	ErrorMessage string
	Percent      float64
}

// OutputParser interprets one line of downloader output.
type OutputParser interface {
	ParseLine(stream procrun.Stream, line string, report *Report)
}

// ParserFunc adapts a function to OutputParser.
type ParserFunc func(stream procrun.Stream, line string, report *Report)

// ParseLine calls f.
func (f ParserFunc) ParseLine(stream procrun.Stream, line string, report *Report) {
	f(stream, line, report)
}

// YTDLPParser understands yt-dlp's line-oriented output.
type YTDLPParser struct{}

// ParseLine updates report from a single output line.
func (YTDLPParser) ParseLine(stream procrun.Stream, line string, report *Report) {
	line = strings.TrimRight(line, " \t")
	if line == "" || report == nil {
		return
	}

	switch {
	case strings.HasPrefix(line, fileMarker+"\t"):
		parseMarker(line, report)
	case strings.HasPrefix(line, "ERROR:"):
		if stream == procrun.Stderr && report.ErrorMessage == "" {
			report.ErrorMessage = strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	case strings.HasPrefix(line, "[Merger] Merging formats into "):
		target := unquote(strings.TrimPrefix(line, "[Merger] Merging formats into "))
		report.Candidates = []string{target}
	case strings.HasPrefix(line, "[ExtractAudio] Destination: "):
		report.Candidates = []string{strings.TrimSpace(strings.TrimPrefix(line, "[ExtractAudio] Destination: "))}
	case strings.HasPrefix(line, "[download] Destination: "):
		report.addCandidate(strings.TrimSpace(strings.TrimPrefix(line, "[download] Destination: ")))
	case strings.HasPrefix(line, "[download] ") && strings.HasSuffix(line, " has already been downloaded"):
		path := strings.TrimSuffix(strings.TrimPrefix(line, "[download] "), " has already been downloaded")
		report.addCandidate(strings.TrimSpace(path))
	case strings.HasPrefix(line, "[download]"):
		if pct, ok := parsePercent(line); ok {
			report.Percent = pct
		}
	}
}

func parseMarker(line string, report *Report) {
	fields := strings.SplitN(line, "\t", 5)
	if len(fields) < 2 {
		return
	}
	path := strings.TrimSpace(fields[1])
	if path == "" || path == "NA" {
		return
	}
	if !contains(report.Files, path) {
		report.Files = append(report.Files, path)
	}
	if len(fields) > 2 && report.Container == "" {
		if ext := strings.TrimSpace(fields[2]); ext != "" && ext != "NA" {
			report.Container = strings.ToLower(ext)
		}
	}
	if len(fields) > 3 && report.Duration == 0 {
		if secs, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64); err == nil && secs > 0 {
			report.Duration = time.Duration(secs * float64(time.Second))
		}
	}
	if len(fields) > 4 && report.Title == "" {
		if title := strings.TrimSpace(fields[4]); title != "NA" {
			report.Title = title
		}
	}
}

func (r *Report) addCandidate(path string) {
	if path == "" || contains(r.Candidates, path) {
		return
	}
	r.Candidates = append(r.Candidates, path)
}

// Paths returns the best known produced paths, preferring marker lines.
func (r *Report) Paths() []string {
	if len(r.Files) > 0 {
		return r.Files
	}
	return r.Candidates
}

// parsePercent reads "[download]  42.0% of ..." progress lines.
func parsePercent(line string) (float64, bool) {
	fields := strings.Fields(strings.TrimPrefix(line, "[download]"))
	if len(fields) == 0 || !strings.HasSuffix(fields[0], "%") {
		return 0, false
	}
	pct, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "%"), 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

func unquote(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		return value[1 : len(value)-1]
	}
	return value
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if filepath.Clean(v) == filepath.Clean(want) {
			return true
		}
	}
	return false
}
