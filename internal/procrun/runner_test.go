package procrun_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"swc/internal/job"
	"swc/internal/procrun"
	"swc/internal/testsupport"
)

func script(t *testing.T, body string) string {
	t.Helper()
	return testsupport.WriteScript(t, t.TempDir(), "tool", body)
}

func TestRunCapturesBothStreams(t *testing.T) {
	bin := script(t, "echo out-1\necho err-1 >&2\necho out-2\n")

	var mu sync.Mutex
	seen := map[procrun.Stream][]string{}
	runner := procrun.New()
	result, err := runner.Run(context.Background(), procrun.Command{
		Stage:  job.StageDownload,
		Binary: bin,
		OnLine: func(stream procrun.Stream, line string) {
			mu.Lock()
			defer mu.Unlock()
			seen[stream] = append(seen[stream], line)
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode != 0 || result.Stage != job.StageDownload {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := strings.Join(seen[procrun.Stdout], ","); got != "out-1,out-2" {
		t.Fatalf("unexpected stdout lines %q", got)
	}
	if got := strings.Join(seen[procrun.Stderr], ","); got != "err-1" {
		t.Fatalf("unexpected stderr lines %q", got)
	}
	if result.Duration <= 0 {
		t.Fatal("expected duration to be recorded")
	}
}

func TestRunPassesArgsDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	bin := script(t, "pwd\necho \"$1|$2|$SWC_TEST_VALUE\"\n")

	var lines []string
	_, err := procrun.New().Run(context.Background(), procrun.Command{
		Binary: bin,
		Args:   []string{"a b", "c"},
		Dir:    dir,
		Env:    []string{"SWC_TEST_VALUE=xyz"},
		OnLine: func(_ procrun.Stream, line string) { lines = append(lines, line) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", lines)
	}
	resolvedDir, _ := filepath.EvalSymlinks(dir)
	if lines[0] != dir && lines[0] != resolvedDir {
		t.Fatalf("unexpected working dir %q", lines[0])
	}
	if lines[1] != "a b|c|xyz" {
		t.Fatalf("unexpected args line %q", lines[1])
	}
}

func TestRunNonZeroExitKeepsBoundedTail(t *testing.T) {
	bin := script(t, "i=1\nwhile [ $i -le 100 ]; do echo \"line $i\" >&2; i=$((i+1)); done\nexit 3\n")

	result, err := procrun.New(procrun.WithDiagnosticLines(5)).Run(context.Background(), procrun.Command{
		Stage:  job.StageTranscode,
		Binary: bin,
	})
	jobErr, ok := job.AsError(err)
	if !ok {
		t.Fatalf("expected *job.Error, got %v", err)
	}
	if jobErr.Kind != job.KindProcessFailed || jobErr.ExitCode != 3 || jobErr.Stage != job.StageTranscode {
		t.Fatalf("unexpected error %+v", jobErr)
	}
	if !errors.Is(err, job.ErrProcessFailed) {
		t.Fatal("expected errors.Is to match ErrProcessFailed")
	}
	want := []string{"line 96", "line 97", "line 98", "line 99", "line 100"}
	if strings.Join(jobErr.Diagnostic, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected diagnostic tail %q", jobErr.Diagnostic)
	}
	if result.ExitCode != 3 || len(result.Diagnostic) != 5 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunLaunchFailures(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	notExec := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(notExec, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	for name, binary := range map[string]string{
		"missing":        missing,
		"not executable": notExec,
		"bare name":      "sh",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := procrun.New().Run(context.Background(), procrun.Command{
				Stage:   job.StageDownload,
				Binary:  binary,
				Timeout: time.Hour,
			})
			if job.KindOf(err) != job.KindLaunchFailed {
				t.Fatalf("expected launch_failed, got %v", err)
			}
			if result.Duration != 0 {
				t.Fatalf("expected no elapsed time for launch failure, got %s", result.Duration)
			}
		})
	}
}

func TestRunTimeoutTerminatesProcess(t *testing.T) {
	bin := script(t, "echo started >&2\nexec sleep 30\n")

	start := time.Now()
	_, err := procrun.New(procrun.WithKillGrace(2*time.Second)).Run(context.Background(), procrun.Command{
		Stage:   job.StageDownload,
		Binary:  bin,
		Timeout: 150 * time.Millisecond,
	})
	elapsed := time.Since(start)

	jobErr, ok := job.AsError(err)
	if !ok || jobErr.Kind != job.KindTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if jobErr.Signal != "SIGTERM" {
		t.Fatalf("expected graceful termination, got signal %q", jobErr.Signal)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("timeout took too long: %s", elapsed)
	}
	if len(jobErr.Diagnostic) != 1 || jobErr.Diagnostic[0] != "started" {
		t.Fatalf("expected captured diagnostic, got %q", jobErr.Diagnostic)
	}
}

func TestRunTimeoutEscalatesToKill(t *testing.T) {
	bin := script(t, "trap '' TERM\nwhile :; do sleep 1; done\n")

	start := time.Now()
	_, err := procrun.New(procrun.WithKillGrace(200*time.Millisecond)).Run(context.Background(), procrun.Command{
		Binary:  bin,
		Timeout: 100 * time.Millisecond,
	})
	jobErr, ok := job.AsError(err)
	if !ok || jobErr.Kind != job.KindTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if jobErr.Signal != "SIGKILL" {
		t.Fatalf("expected forced kill, got %q", jobErr.Signal)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("escalation took too long: %s", elapsed)
	}
}

func TestRunCancellationInterruptsProcess(t *testing.T) {
	bin := script(t, "exec sleep 30\n")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := procrun.New(procrun.WithKillGrace(time.Second)).Run(ctx, procrun.Command{
		Binary:  bin,
		Timeout: time.Minute,
	})
	if job.KindOf(err) != job.KindCancelled {
		t.Fatalf("expected cancelled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("cancellation took too long: %s", elapsed)
	}
}

func TestRunCancelledBeforeLaunchNeverStarts(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "ran")
	bin := script(t, "touch '"+marker+"'\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := procrun.New().Run(ctx, procrun.Command{Binary: bin})
	if job.KindOf(err) != job.KindCancelled {
		t.Fatalf("expected cancelled, got %v", err)
	}
	if _, statErr := os.Stat(marker); !os.IsNotExist(statErr) {
		t.Fatal("process should not have been started")
	}
}

func TestRunReportsTerminatingSignal(t *testing.T) {
	bin := script(t, "kill -KILL $$\n")

	_, err := procrun.New().Run(context.Background(), procrun.Command{Binary: bin})
	jobErr, ok := job.AsError(err)
	if !ok || jobErr.Kind != job.KindProcessFailed {
		t.Fatalf("expected process failure, got %v", err)
	}
	if jobErr.Signal != "SIGKILL" {
		t.Fatalf("expected SIGKILL, got %q", jobErr.Signal)
	}
}

func TestRunSplitsCarriageReturnProgress(t *testing.T) {
	bin := script(t, "printf '10%%\\r20%%\\r30%%\\ndone'\n")

	var lines []string
	if _, err := procrun.New().Run(context.Background(), procrun.Command{
		Binary: bin,
		OnLine: func(_ procrun.Stream, line string) { lines = append(lines, line) },
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Join(lines, ","); got != "10%,20%,30%,done" {
		t.Fatalf("unexpected lines %q", got)
	}
}

func TestRunBoundsUnterminatedOutput(t *testing.T) {
	bin := script(t, "head -c 2000000 /dev/zero | tr '\\0' x >&2\nexit 3\n")

	var longest int
	result, err := procrun.New(procrun.WithDiagnosticLines(5)).Run(context.Background(), procrun.Command{
		Stage:  job.StageDownload,
		Binary: bin,
		OnLine: func(_ procrun.Stream, line string) { longest = max(longest, len(line)) },
	})
	jobErr, ok := job.AsError(err)
	if !ok || jobErr.Kind != job.KindProcessFailed || jobErr.ExitCode != 3 {
		t.Fatalf("expected process failure, got %v", err)
	}
	if len(result.Diagnostic) != 1 {
		t.Fatalf("expected one diagnostic line, got %d", len(result.Diagnostic))
	}
	if n := len(result.Diagnostic[0]); n == 0 || n > 4096 {
		t.Fatalf("diagnostic line holds %d bytes", n)
	}
	if longest > 4096 {
		t.Fatalf("callback received a %d byte line", longest)
	}
	if n := len(err.Error()); n > 8192 {
		t.Fatalf("error message holds %d bytes", n)
	}
}
