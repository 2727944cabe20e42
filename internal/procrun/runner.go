package procrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"swc/internal/job"
	"swc/internal/logging"
)

// Stream identifies which output stream a line came from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

const (
	defaultDiagnosticLines = 50
	defaultKillGrace       = 5 * time.Second
	// maxLineBytes caps one captured line. Bytes past it are dropped until
	// the next line break.
	maxLineBytes = 4 << 10
)

// Command describes one external invocation.
type Command struct {
	Stage   job.StageName
	Binary  string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
	// OnLine receives every output line. Calls are serialized.
	OnLine func(stream Stream, line string)
}

// Runner executes commands. Stages depend on this interface so tests can
// substitute scripted behaviour.
type Runner interface {
	Run(ctx context.Context, cmd Command) (job.StageResult, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, cmd Command) (job.StageResult, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, cmd Command) (job.StageResult, error) {
	return f(ctx, cmd)
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithDiagnosticLines bounds the captured diagnostic tail.
func WithDiagnosticLines(n int) Option {
	return func(r *ExecRunner) {
		if n > 0 {
			r.diagnosticLines = n
		}
	}
}

// WithKillGrace sets the delay between SIGTERM and SIGKILL.
func WithKillGrace(d time.Duration) Option {
	return func(r *ExecRunner) {
		if d >= 0 {
			r.killGrace = d
		}
	}
}

// WithLogger attaches a logger for launch and exit events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *ExecRunner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// ExecRunner runs commands as OS processes.
type ExecRunner struct {
	diagnosticLines int
	killGrace       time.Duration
	logger          *slog.Logger
}

// New constructs an ExecRunner.
func New(opts ...Option) *ExecRunner {
	r := &ExecRunner{
		diagnosticLines: defaultDiagnosticLines,
		killGrace:       defaultKillGrace,
		logger:          logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run launches cmd and blocks until the process exits, the timeout elapses,
// or ctx is cancelled. The returned StageResult is populated on every path
// that started the process.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (job.StageResult, error) {
	result := job.StageResult{Stage: cmd.Stage, ExitCode: -1}
	logger := logging.WithContext(ctx, r.logger).With(logging.String("binary", cmd.Binary))

	if err := ctx.Err(); err != nil {
		return result, &job.Error{
			Kind:    job.KindCancelled,
			Stage:   cmd.Stage,
			Binary:  cmd.Binary,
			Message: "cancelled before launch",
			Err:     err,
		}
	}
	if !isExplicitPath(cmd.Binary) {
		return result, &job.Error{
			Kind:    job.KindLaunchFailed,
			Stage:   cmd.Stage,
			Binary:  cmd.Binary,
			Message: fmt.Sprintf("executable %q is not an explicit path", cmd.Binary),
		}
	}

	capture := newOutputCapture(r.diagnosticLines, cmd.OnLine)
	proc := exec.Command(cmd.Binary, cmd.Args...) //nolint:gosec
	proc.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		proc.Env = append(os.Environ(), cmd.Env...)
	}
	if err := capture.attach(proc); err != nil {
		return result, &job.Error{
			Kind:    job.KindLaunchFailed,
			Stage:   cmd.Stage,
			Binary:  cmd.Binary,
			Message: fmt.Sprintf("create output pipes: %v", err),
			Err:     err,
		}
	}
	setProcessGroup(proc)

	if err := proc.Start(); err != nil {
		capture.abort()
		logger.Debug("launch failed", logging.Error(err))
		return result, &job.Error{
			Kind:    job.KindLaunchFailed,
			Stage:   cmd.Stage,
			Binary:  cmd.Binary,
			Message: err.Error(),
			Err:     err,
		}
	}

	started := time.Now()
	capture.start()
	logger.Debug("process started",
		logging.Int("pid", proc.Process.Pid),
		logging.String("args", strings.Join(cmd.Args, " ")),
	)

	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- proc.Wait()
	}()

	var (
		waitErr     error
		interrupted bool
		signalName  string
	)
	select {
	case waitErr = <-waitCh:
	case <-runCtx.Done():
		interrupted = true
		waitErr, signalName = r.terminate(proc, waitCh)
	}
	// Helpers left in the group would otherwise outlive the call and keep
	// the output pipes open.
	_ = signalGroup(proc, true)
	capture.drain(r.drainGrace())

	result.Duration = time.Since(started)
	result.Diagnostic = capture.diagnostic()
	result.ExitCode = exitCode(proc, waitErr)

	if interrupted {
		jobErr := &job.Error{
			Stage:      cmd.Stage,
			Binary:     cmd.Binary,
			ExitCode:   result.ExitCode,
			Signal:     signalName,
			Diagnostic: result.Diagnostic,
		}
		if ctx.Err() != nil {
			jobErr.Kind = job.KindCancelled
			jobErr.Message = "cancelled while running"
			jobErr.Err = ctx.Err()
		} else {
			jobErr.Kind = job.KindTimeout
			jobErr.Message = fmt.Sprintf("timed out after %s", cmd.Timeout)
			jobErr.Err = context.DeadlineExceeded
		}
		logger.Debug("process interrupted",
			logging.String("kind", string(jobErr.Kind)),
			logging.String("signal", signalName),
			logging.Duration("elapsed", result.Duration),
		)
		return result, jobErr
	}

	if result.ExitCode == 0 {
		logger.Debug("process exited", logging.Duration("elapsed", result.Duration))
		return result, nil
	}

	jobErr := &job.Error{
		Kind:       job.KindProcessFailed,
		Stage:      cmd.Stage,
		Binary:     cmd.Binary,
		ExitCode:   result.ExitCode,
		Signal:     exitSignal(proc.ProcessState),
		Diagnostic: result.Diagnostic,
		Err:        waitErr,
	}
	if jobErr.Signal != "" {
		jobErr.Message = "terminated by " + jobErr.Signal
	} else {
		jobErr.Message = fmt.Sprintf("exited with status %d", result.ExitCode)
	}
	logger.Debug("process failed",
		logging.Int("exit_code", result.ExitCode),
		logging.Duration("elapsed", result.Duration),
	)
	return result, jobErr
}

// terminate escalates from a graceful to a forceful signal and always reaps
// the process before returning.
func (r *ExecRunner) terminate(proc *exec.Cmd, waitCh <-chan error) (error, string) {
	signalName := "SIGTERM"
	if err := signalGroup(proc, false); err != nil {
		signalName = "SIGKILL"
		_ = signalGroup(proc, true)
		return <-waitCh, signalName
	}
	timer := time.NewTimer(r.killGrace)
	defer timer.Stop()
	select {
	case err := <-waitCh:
		return err, signalName
	case <-timer.C:
	}
	_ = signalGroup(proc, true)
	return <-waitCh, "SIGKILL"
}

func (r *ExecRunner) drainGrace() time.Duration {
	if r.killGrace > 0 {
		return r.killGrace
	}
	return time.Second
}

func exitCode(proc *exec.Cmd, waitErr error) int {
	if proc.ProcessState != nil {
		return proc.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}

func isExplicitPath(binary string) bool {
	return strings.ContainsRune(binary, os.PathSeparator) || strings.ContainsRune(binary, '/')
}

// outputCapture splits both streams into lines, keeps bounded tails, and
// forwards lines to the caller under one lock.
type outputCapture struct {
	mu     sync.Mutex
	stdout *tail
	stderr *tail
	onLine func(Stream, string)
	open   []*lineWriter
	pipes  []*outputPipe
	wg     sync.WaitGroup
}

// outputPipe is one OS pipe handed to the child. The child inherits the
// write end directly, so Wait returns as soon as the process exits even if
// a helper still holds the descriptor.
type outputPipe struct {
	stream Stream
	r, w   *os.File
}

func (c *outputCapture) attach(proc *exec.Cmd) error {
	for _, stream := range []Stream{Stdout, Stderr} {
		r, w, err := os.Pipe()
		if err != nil {
			c.abort()
			return err
		}
		c.pipes = append(c.pipes, &outputPipe{stream: stream, r: r, w: w})
		if stream == Stdout {
			proc.Stdout = w
		} else {
			proc.Stderr = w
		}
	}
	return nil
}

// abort closes both ends of every pipe when the process never started.
func (c *outputCapture) abort() {
	for _, p := range c.pipes {
		_ = p.r.Close()
		_ = p.w.Close()
	}
	c.pipes = nil
}

// start drops this process's copy of the write ends and begins reading.
func (c *outputCapture) start() {
	for _, p := range c.pipes {
		_ = p.w.Close()
		w := c.writer(p.stream)
		c.wg.Add(1)
		go func(r io.Reader) {
			defer c.wg.Done()
			_, _ = io.Copy(w, r)
		}(p.r)
	}
}

// drain waits for every stream to reach EOF. A descriptor still held after
// grace belongs to a process outside the group and is closed from this side.
func (c *outputCapture) drain(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		for _, p := range c.pipes {
			_ = p.r.Close()
		}
		<-done
	}
	for _, p := range c.pipes {
		_ = p.r.Close()
	}
	c.flush()
}

func newOutputCapture(limit int, onLine func(Stream, string)) *outputCapture {
	return &outputCapture{
		stdout: newTail(limit),
		stderr: newTail(limit),
		onLine: onLine,
	}
}

func (c *outputCapture) writer(stream Stream) *lineWriter {
	w := &lineWriter{capture: c, stream: stream}
	c.open = append(c.open, w)
	return w
}

func (c *outputCapture) emit(stream Stream, line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stream == Stderr {
		c.stderr.add(line)
	} else {
		c.stdout.add(line)
	}
	if c.onLine != nil {
		c.onLine(stream, line)
	}
}

func (c *outputCapture) flush() {
	for _, w := range c.open {
		w.flush()
	}
}

// diagnostic prefers stderr, where both external tools write their logs, and
// falls back to stdout when stderr stayed silent.
func (c *outputCapture) diagnostic() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lines := c.stderr.lines(); len(lines) > 0 {
		return lines
	}
	return c.stdout.lines()
}

// lineWriter is an io.Writer that emits complete lines. Carriage returns end
// a line too, since progress meters redraw with them. A line longer than
// maxLineBytes is cut and the rest discarded.
type lineWriter struct {
	capture *outputCapture
	stream  Stream
	mu      sync.Mutex
	partial []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	start := 0
	for i, b := range p {
		if b != '\n' && b != '\r' {
			continue
		}
		w.appendPartial(p[start:i])
		w.emitPartial()
		start = i + 1
	}
	w.appendPartial(p[start:])
	return len(p), nil
}

func (w *lineWriter) appendPartial(b []byte) {
	// Room for one extra rune lets clipLine cut on a character boundary.
	room := maxLineBytes + utf8.UTFMax - len(w.partial)
	if room <= 0 {
		return
	}
	if len(b) > room {
		b = b[:room]
	}
	w.partial = append(w.partial, b...)
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emitPartial()
}

func (w *lineWriter) emitPartial() {
	if len(w.partial) == 0 {
		return
	}
	line := clipLine(string(w.partial), maxLineBytes)
	w.partial = w.partial[:0]
	w.capture.emit(w.stream, line)
}

// clipLine shortens s to at most n bytes without splitting a UTF-8 sequence.
func clipLine(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
