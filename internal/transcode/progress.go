package transcode

import (
	"strconv"
	"strings"
	"time"
)

// progressTracker reads the key=value stream written by "-progress pipe:1".
type progressTracker struct {
	total    time.Duration
	position time.Duration
	done     bool
}

// observe consumes one progress line and reports whether the position moved.
func (p *progressTracker) observe(line string) bool {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return false
	}
	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds.
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return false
		}
		pos := time.Duration(us) * time.Microsecond
		if pos == p.position {
			return false
		}
		p.position = pos
		return true
	case "progress":
		if value == "end" {
			p.done = true
			return true
		}
	}
	return false
}

// percent returns completion in [0,100], or -1 when the total is unknown.
func (p *progressTracker) percent() float64 {
	if p.done {
		return 100
	}
	if p.total <= 0 {
		return -1
	}
	pct := float64(p.position) / float64(p.total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
