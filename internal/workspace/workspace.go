package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"swc/internal/logging"
)

const lockSuffix = ".lock"

var (
	// ErrInUse is returned when another live process owns the workspace.
	ErrInUse = errors.New("workspace in use")
	// ErrExists is returned when a directory for the job already exists.
	ErrExists = errors.New("workspace already exists")
)

// Manager hands out workspaces beneath a single root directory.
type Manager struct {
	root   string
	logger *slog.Logger
}

// NewManager constructs a manager rooted at root.
func NewManager(root string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{root: strings.TrimSpace(root), logger: logger}
}

// Root returns the directory that holds all workspaces.
func (m *Manager) Root() string {
	return m.root
}

// Workspace is one job's scratch directory. It is never shared between jobs.
type Workspace struct {
	jobID    string
	dir      string
	lockPath string
	lock     *flock.Flock
	logger   *slog.Logger

	once       sync.Once
	releaseErr error
}

// Acquire creates a new, empty workspace for jobID and takes its ownership lock.
func (m *Manager) Acquire(jobID string) (*Workspace, error) {
	if err := validateJobID(jobID); err != nil {
		return nil, err
	}
	if m.root == "" {
		return nil, errors.New("workspace root is not configured")
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}

	lockPath := filepath.Join(m.root, jobID+lockSuffix)
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock workspace %s: %w", jobID, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrInUse, jobID)
	}

	dir := filepath.Join(m.root, jobID)
	if err := os.Mkdir(dir, 0o755); err != nil {
		_ = lock.Unlock()
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrExists, dir)
		}
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	m.logger.Debug("workspace acquired",
		logging.String(logging.FieldJobID, jobID),
		logging.String("path", dir),
	)
	return &Workspace{
		jobID:    jobID,
		dir:      dir,
		lockPath: lockPath,
		lock:     lock,
		logger:   m.logger,
	}, nil
}

// JobID returns the owning job identifier.
func (w *Workspace) JobID() string {
	return w.jobID
}

// Dir returns the absolute workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Contains reports whether path lies inside the workspace.
func (w *Workspace) Contains(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Reset empties the workspace directory so a new attempt starts from the
// same state as a fresh Acquire. The ownership lock lives beside the
// directory and is untouched.
func (w *Workspace) Reset() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read workspace: %w", err)
	}
	var errs []error
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(w.dir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("reset workspace: %w", errors.Join(errs...))
	}
	return nil
}

// Release deletes the workspace and drops its lock. It is safe to call more
// than once; later calls return the first result.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		var errs []error
		if err := os.RemoveAll(w.dir); err != nil {
			errs = append(errs, fmt.Errorf("remove workspace: %w", err))
		}
		if err := os.Remove(w.lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove workspace lock: %w", err))
		}
		if err := w.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("unlock workspace: %w", err))
		}
		w.releaseErr = errors.Join(errs...)
		if w.releaseErr != nil {
			w.logger.Warn("workspace release incomplete",
				logging.String(logging.FieldJobID, w.jobID),
				logging.String("path", w.dir),
				logging.Error(w.releaseErr),
				logging.String(logging.FieldEventType, "workspace_release_failed"),
				logging.String(logging.FieldErrorHint, "run swc clean to sweep leftovers"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			return
		}
		w.logger.Debug("workspace released", logging.String(logging.FieldJobID, w.jobID))
	})
	return w.releaseErr
}

func validateJobID(jobID string) error {
	trimmed := strings.TrimSpace(jobID)
	if trimmed == "" || trimmed != jobID {
		return fmt.Errorf("invalid job id %q", jobID)
	}
	if jobID == "." || jobID == ".." || strings.ContainsAny(jobID, `/\`) || strings.HasSuffix(jobID, lockSuffix) {
		return fmt.Errorf("invalid job id %q", jobID)
	}
	return nil
}
