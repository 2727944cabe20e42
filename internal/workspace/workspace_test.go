package workspace_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"swc/internal/logging"
	"swc/internal/workspace"
)

func TestAcquireCreatesEmptyDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work")
	mgr := workspace.NewManager(root, logging.NewNop())

	ws, err := mgr.Acquire("job-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if ws.Dir() != filepath.Join(root, "job-1") || ws.JobID() != "job-1" {
		t.Fatalf("unexpected workspace %q/%q", ws.Dir(), ws.JobID())
	}
	entries, err := os.ReadDir(ws.Dir())
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty dir, got %v (%v)", entries, err)
	}
	if !ws.Contains(ws.Path("a.webm")) {
		t.Fatal("expected workspace to contain its own files")
	}
	if ws.Contains(filepath.Join(root, "job-2", "a.webm")) || ws.Contains(ws.Dir()) {
		t.Fatal("workspace should not contain sibling paths or itself")
	}
	if err := ws.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestReleaseRemovesDirectoryAndLock(t *testing.T) {
	root := t.TempDir()
	mgr := workspace.NewManager(root, nil)
	ws, err := mgr.Acquire("job-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := os.MkdirAll(ws.Path("nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(ws.Path("nested/partial.webm.part"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := ws.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := ws.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty root after release, found %d entries", len(entries))
	}
}

func TestAcquireNeverReusesWorkspace(t *testing.T) {
	root := t.TempDir()
	mgr := workspace.NewManager(root, nil)
	ws, err := mgr.Acquire("job-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer ws.Release()

	if _, err := mgr.Acquire("job-1"); !errors.Is(err, workspace.ErrInUse) {
		t.Fatalf("expected ErrInUse for held workspace, got %v", err)
	}

	if err := os.Mkdir(filepath.Join(root, "job-2"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := mgr.Acquire("job-2"); !errors.Is(err, workspace.ErrExists) {
		t.Fatalf("expected ErrExists for leftover dir, got %v", err)
	}
}

func TestAcquireRejectsUnsafeIDs(t *testing.T) {
	mgr := workspace.NewManager(t.TempDir(), nil)
	for _, id := range []string{"", " ", "..", "a/b", `a\b`, "x.lock", " padded"} {
		if _, err := mgr.Acquire(id); err == nil {
			t.Errorf("expected error for id %q", id)
		}
	}
}

func TestSweepOrphansSkipsLiveWorkspaces(t *testing.T) {
	root := t.TempDir()
	mgr := workspace.NewManager(root, logging.NewNop())

	live, err := mgr.Acquire("live")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer live.Release()

	orphan := filepath.Join(root, "orphan")
	if err := os.MkdirAll(filepath.Join(orphan, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir orphan: %v", err)
	}
	if err := os.WriteFile(orphan+".lock", nil, 0o644); err != nil {
		t.Fatalf("write stale lock: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "stray.lock"), nil, 0o644); err != nil {
		t.Fatalf("write stray lock: %v", err)
	}

	result := mgr.SweepOrphans(context.Background())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != orphan {
		t.Fatalf("expected orphan removed, got %v", result.Removed)
	}
	if len(result.InUse) != 1 || result.InUse[0] != live.Dir() {
		t.Fatalf("expected live workspace reported in use, got %v", result.InUse)
	}
	for _, gone := range []string{orphan, orphan + ".lock", filepath.Join(root, "stray.lock")} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("expected %s removed", gone)
		}
	}
	if _, err := os.Stat(live.Dir()); err != nil {
		t.Fatalf("live workspace should survive: %v", err)
	}
}

func TestSweepOrphansMissingRoot(t *testing.T) {
	for _, root := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := workspace.NewManager(root, nil).SweepOrphans(context.Background())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for root %q", root)
		}
	}
}

func TestListReportsLockState(t *testing.T) {
	root := t.TempDir()
	mgr := workspace.NewManager(root, nil)
	live, err := mgr.Acquire("live")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer live.Release()
	if err := os.WriteFile(live.Path("a.webm"), make([]byte, 128), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Mkdir(filepath.Join(root, "orphan"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	dirs, err := mgr.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("expected 2 dirs, got %d", len(dirs))
	}
	for _, d := range dirs {
		switch d.Name {
		case "live":
			if !d.InUse || d.Size != 128 {
				t.Fatalf("unexpected live entry %+v", d)
			}
		case "orphan":
			if d.InUse {
				t.Fatal("orphan should not be reported in use")
			}
		default:
			t.Fatalf("unexpected entry %q", d.Name)
		}
	}
}

func TestResetEmptiesDirectoryAndKeepsLock(t *testing.T) {
	root := t.TempDir()
	mgr := workspace.NewManager(root, logging.NewNop())
	ws, err := mgr.Acquire("job-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = ws.Release() })

	for _, name := range []string{"a.webm", "a.webm.part", ".hidden"} {
		if err := os.WriteFile(ws.Path(name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.MkdirAll(ws.Path(filepath.Join("converted", "deep")), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := ws.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	entries, err := os.ReadDir(ws.Dir())
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty workspace, got %v (%v)", entries, err)
	}
	if _, err := mgr.Acquire("job-1"); !errors.Is(err, workspace.ErrInUse) {
		t.Fatalf("expected lock to survive reset, got %v", err)
	}
}
