package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"swc/internal/config"
	"swc/internal/testsupport"
)

// fakeDownloader writes "<query>.webm" next to the -o template and announces
// it on stdout the way the real downloader does.
const fakeDownloader = `out=""; prev=""; last=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"; last="$a"
done
dir=$(dirname "$out")
name="${last#ytsearch1:}"
printf 'media' > "$dir/$name.webm"
printf 'swc:file\t%s\twebm\t3\t%s\n' "$dir/$name.webm" "$name"
`

const fakeTranscoder = `prev=""; in=""; last=""
for a in "$@"; do
  if [ "$prev" = "-i" ]; then in="$a"; fi
  prev="$a"; last="$a"
done
echo "progress=end"
cp "$in" "$last"
`

const failingDownloader = `echo "[youtube] abc: Downloading webpage"
echo "ERROR: [youtube] abc: Video unavailable" >&2
exit 1
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SWC_DOWNLOADER", "")
	t.Setenv("SWC_TRANSCODER", "")
	t.Setenv("SWC_NTFY_TOPIC", "")

	base := []testsupport.ConfigOption{
		testsupport.WithDownloader(fakeDownloader),
		testsupport.WithTranscoder(fakeTranscoder),
		testsupport.WithHistory(),
		testsupport.WithRetryLimit(0),
	}
	cfg := testsupport.NewConfig(t, append(base, opts...)...)
	return &cliTestEnv{cfg: cfg, configPath: testsupport.WriteConfigFile(t, cfg)}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestConvertProducesArtifactsAndHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"convert", "--format", "mp3", "Alpha", "Beta"}, env.configPath)
	if err != nil {
		t.Fatalf("convert: %v\n%s", err, out)
	}
	for _, name := range []string{"Alpha.mp3", "Beta.mp3"} {
		if _, err := os.Stat(filepath.Join(env.cfg.Paths.OutputDir, name)); err != nil {
			t.Fatalf("expected artifact %s: %v", name, err)
		}
	}
	requireContains(t, out, "2 succeeded, 0 failed, 0 cancelled")

	entries, err := os.ReadDir(env.cfg.Paths.WorkspaceDir)
	if err != nil {
		t.Fatalf("read workspace dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty workspace root, found %d entries", len(entries))
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Alpha")
	requireContains(t, out, "succeeded")

	out, _, err = runCLI(t, []string{"history", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("history clear: %v", err)
	}
	requireContains(t, out, "Removed 2 history entries")

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history after clear: %v", err)
	}
	requireContains(t, out, "No recorded outcomes")
}

func TestConvertFailureSetsExitCode(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithDownloader(failingDownloader))

	out, _, err := runCLI(t, []string{"convert", "--json", "missing"}, env.configPath)
	var exitErr *exitCodeError
	if !errors.As(err, &exitErr) || exitErr.code != 1 {
		t.Fatalf("expected exit code 1, got %v", err)
	}
	requireContains(t, out, `"state":"failed"`)
	requireContains(t, out, `"error_kind":"process_failed"`)
	requireContains(t, out, "Video unavailable")

	out, _, err = runCLI(t, []string{"history", "--json", "--state", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, `"state":"failed"`)
}

func TestConvertRejectsUnsupportedQuality(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"convert", "--format", "flac", "--quality", "voice-ish", "x"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("expected quality validation error, got %v", err)
	}
}

func TestConvertRequiresSource(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"convert"}, env.configPath); err == nil {
		t.Fatal("expected error without sources")
	}
}

func TestCleanRemovesOrphanedWorkspaces(t *testing.T) {
	env := setupCLITestEnv(t)
	orphan := filepath.Join(env.cfg.Paths.WorkspaceDir, "orphan-job")
	testsupport.WriteFile(t, filepath.Join(orphan, "partial.webm.part"), 16)

	out, _, err := runCLI(t, []string{"clean", "--list"}, env.configPath)
	if err != nil {
		t.Fatalf("clean --list: %v", err)
	}
	requireContains(t, out, "orphan-job")

	out, _, err = runCLI(t, []string{"clean"}, env.configPath)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	requireContains(t, out, "Removed 1 workspace(s)")
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatalf("expected orphan removed, stat err=%v", err)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, env.configPath)
	requireContains(t, out, "max_concurrency")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
}

func TestDoctorReportsTools(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "Downloader")
	requireContains(t, out, "Transcoder")
	requireContains(t, out, "Workspace directory")
}

func TestDoctorFailsForMissingTool(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Tools.Transcoder = filepath.Join(t.TempDir(), "no-such-ffmpeg")
	path := testsupport.WriteConfigFile(t, env.cfg)

	out, _, err := runCLI(t, []string{"doctor"}, path)
	if err == nil {
		t.Fatalf("expected doctor failure, got output:\n%s", out)
	}
	requireContains(t, out, "ERROR")
}
