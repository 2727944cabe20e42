package procrun

// tail keeps the most recent lines in a fixed-size ring. Each stored line is
// clipped to maxLineBytes so the ring's memory is bounded too.
type tail struct {
	buf   []string
	next  int
	count int
}

func newTail(limit int) *tail {
	if limit <= 0 {
		limit = defaultDiagnosticLines
	}
	return &tail{buf: make([]string, limit)}
}

func (t *tail) add(line string) {
	t.buf[t.next] = clipLine(line, maxLineBytes)
	t.next = (t.next + 1) % len(t.buf)
	if t.count < len(t.buf) {
		t.count++
	}
}

func (t *tail) lines() []string {
	if t.count == 0 {
		return nil
	}
	out := make([]string, 0, t.count)
	start := (t.next - t.count + len(t.buf)) % len(t.buf)
	for i := 0; i < t.count; i++ {
		out = append(out, t.buf[(start+i)%len(t.buf)])
	}
	return out
}
