package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"swc/internal/logging"
)

// SweepResult contains the outcome of an orphan sweep.
type SweepResult struct {
	Removed []string
	InUse   []string
	Errors  []SweepError
}

// SweepError pairs a path with its cleanup error.
type SweepError struct {
	Path  string
	Error error
}

// SweepOrphans removes workspaces whose owner lock is free. A free lock means
// the owning process exited without releasing, so the directory is garbage.
func (m *Manager) SweepOrphans(ctx context.Context) SweepResult {
	result := SweepResult{}
	if m.root == "" {
		return result
	}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: m.root, Error: err})
		}
		return result
	}

	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		name := entry.Name()
		if !entry.IsDir() {
			if strings.HasSuffix(name, lockSuffix) {
				seen[strings.TrimSuffix(name, lockSuffix)] = struct{}{}
			}
			continue
		}
		seen[name] = struct{}{}
	}

	for name := range seen {
		if ctx.Err() != nil {
			return result
		}
		m.sweepOne(name, &result)
	}
	return result
}

func (m *Manager) sweepOne(name string, result *SweepResult) {
	dir := filepath.Join(m.root, name)
	lockPath := dir + lockSuffix
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		result.Errors = append(result.Errors, SweepError{Path: dir, Error: err})
		return
	}
	if !locked {
		result.InUse = append(result.InUse, dir)
		return
	}
	defer func() { _ = lock.Unlock() }()

	_, statErr := os.Stat(dir)
	dirExisted := statErr == nil
	if err := os.RemoveAll(dir); err != nil {
		result.Errors = append(result.Errors, SweepError{Path: dir, Error: err})
		m.logger.Warn("failed to remove orphaned workspace",
			logging.String("path", dir),
			logging.Error(err),
			logging.String(logging.FieldEventType, "workspace_sweep_failed"),
			logging.String(logging.FieldErrorHint, "check workspace_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
		return
	}
	if err := os.Remove(lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		result.Errors = append(result.Errors, SweepError{Path: lockPath, Error: err})
	}
	if dirExisted {
		result.Removed = append(result.Removed, dir)
		m.logger.Info("removed orphaned workspace",
			logging.String("path", dir),
			logging.String(logging.FieldEventType, "workspace_sweep"),
		)
	}
}

// DirInfo contains metadata about a workspace directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
	InUse   bool
}

// List returns every workspace directory with its size and lock state.
func (m *Manager) List() ([]DirInfo, error) {
	if m.root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirPath := filepath.Join(m.root, entry.Name())
		size, _ := dirSize(dirPath)
		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Size:    size,
			InUse:   isLocked(dirPath + lockSuffix),
		})
	}
	return dirs, nil
}

func isLocked(lockPath string) bool {
	if _, err := os.Stat(lockPath); err != nil {
		return false
	}
	probe := flock.New(lockPath)
	locked, err := probe.TryLock()
	if err != nil {
		return false
	}
	if locked {
		_ = probe.Unlock()
		return false
	}
	return true
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
