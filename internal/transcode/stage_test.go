package transcode_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"swc/internal/job"
	"swc/internal/procrun"
	"swc/internal/testsupport"
	"swc/internal/transcode"
	"swc/internal/workspace"
)

func setup(t *testing.T, name string) (*workspace.Workspace, job.StageResult) {
	t.Helper()
	ws, err := workspace.NewManager(t.TempDir(), nil).Acquire("job-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = ws.Release() })
	input := ws.Path(name)
	if err := os.WriteFile(input, []byte("downloaded"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	ext := filepath.Ext(name)
	return ws, job.StageResult{
		Stage:    job.StageDownload,
		Files:    []string{input},
		Metadata: job.Metadata{Title: "A", Container: ext[1:], Duration: 4 * time.Second},
	}
}

func TestTranscodeWritesNewFileInWorkspace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ws, input := setup(t, "A.webm")

	var progressLines int
	runner := procrun.RunnerFunc(func(_ context.Context, cmd procrun.Command) (job.StageResult, error) {
		if cmd.Stage != job.StageTranscode {
			t.Fatalf("unexpected stage %q", cmd.Stage)
		}
		out := cmd.Args[len(cmd.Args)-1]
		if err := os.WriteFile(out, []byte("converted"), 0o644); err != nil {
			t.Fatalf("write output: %v", err)
		}
		for _, line := range []string{"out_time_us=1000000", "out_time_us=4000000", "progress=end"} {
			cmd.OnLine(procrun.Stdout, line)
			progressLines++
		}
		return job.StageResult{ExitCode: 0}, nil
	})

	req := job.Request{ID: "job-1", Source: "A", Format: "mp3"}
	result, err := transcode.New(cfg, runner, nil).Transcode(context.Background(), req, input, ws)
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	want := filepath.Join(ws.Dir(), "transcoded", "A.mp3")
	if result.PrimaryFile() != want {
		t.Fatalf("unexpected output %q, want %q", result.PrimaryFile(), want)
	}
	if !ws.Contains(result.PrimaryFile()) {
		t.Fatal("output must stay inside the workspace")
	}
	if result.Skipped || result.Metadata.Container != "mp3" || result.Metadata.Title != "A" {
		t.Fatalf("unexpected result %+v", result)
	}
	if progressLines != 3 {
		t.Fatalf("expected progress lines forwarded, got %d", progressLines)
	}
}

func TestTranscodePassThroughSkipsRunner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ws, input := setup(t, "A.mp3")

	runner := procrun.RunnerFunc(func(context.Context, procrun.Command) (job.StageResult, error) {
		t.Fatal("runner must not be invoked for pass-through")
		return job.StageResult{}, nil
	})

	req := job.Request{ID: "job-1", Source: "A", Format: "mp3"}
	result, err := transcode.New(cfg, runner, nil).Transcode(context.Background(), req, input, ws)
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if !result.Skipped || result.PrimaryFile() != input.PrimaryFile() {
		t.Fatalf("expected explicit pass-through, got %+v", result)
	}
}

func TestTranscodeQualityForcesConversion(t *testing.T) {
	_, input := setup(t, "A.mp3")
	if transcode.ShouldPassThrough(job.Request{Format: "mp3", Quality: "low"}, input) {
		t.Fatal("a quality preset must force a real conversion")
	}
	if transcode.ShouldPassThrough(job.Request{Format: "opus"}, input) {
		t.Fatal("different formats must not pass through")
	}
}

func TestTranscodeMissingOutputFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ws, input := setup(t, "A.webm")

	runner := procrun.RunnerFunc(func(context.Context, procrun.Command) (job.StageResult, error) {
		return job.StageResult{Diagnostic: []string{"Conversion failed!"}}, nil
	})
	_, err := transcode.New(cfg, runner, nil).Transcode(context.Background(), job.Request{Format: "mp3"}, input, ws)
	jobErr, ok := job.AsError(err)
	if !ok || jobErr.Kind != job.KindProcessFailed || jobErr.Stage != job.StageTranscode {
		t.Fatalf("expected process failure, got %v", err)
	}
	if jobErr.DiagnosticText() != "Conversion failed!" {
		t.Fatalf("expected diagnostic, got %q", jobErr.DiagnosticText())
	}
}

func TestTranscodePropagatesRunnerErrorsUnchanged(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ws, input := setup(t, "A.webm")

	want := &job.Error{Kind: job.KindTimeout, Stage: job.StageTranscode, Message: "timed out after 1s"}
	runner := procrun.RunnerFunc(func(context.Context, procrun.Command) (job.StageResult, error) {
		return job.StageResult{}, want
	})
	_, err := transcode.New(cfg, runner, nil).Transcode(context.Background(), job.Request{Format: "mp3"}, input, ws)
	if !errors.Is(err, job.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if got, _ := job.AsError(err); got != want {
		t.Fatal("runner error should propagate without rewrapping")
	}
}
