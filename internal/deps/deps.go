package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Requirement names an executable swc drives.
//
// PreferNextTo, when set, is another command whose directory is searched for
// Command before PATH. Bundled downloader builds look for their ffmpeg that
// way, so reporting the same lookup keeps doctor honest.
type Requirement struct {
	Name         string
	Command      string
	Description  string
	Optional     bool
	PreferNextTo string
}

// Status is the outcome of checking one Requirement. Command holds the
// resolved path when the tool is available.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// DownloaderFFmpeg is the ffmpeg the downloader itself uses for merging and
// audio extraction, which need not be the configured transcoder.
func DownloaderFFmpeg(downloader string) Requirement {
	return Requirement{
		Name:         "Downloader ffmpeg",
		Command:      "ffmpeg",
		Description:  "Used by the downloader to merge and extract streams",
		Optional:     true,
		PreferNextTo: downloader,
	}
}

// Check resolves a single requirement.
func Check(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := resolve(status.Command, strings.TrimSpace(req.PreferNextTo))
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}

// CheckBinaries resolves every requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	statuses := make([]Status, len(requirements))
	for i, req := range requirements {
		statuses[i] = Check(req)
	}
	return statuses
}

func resolve(command, nextTo string) (string, error) {
	if nextTo != "" && !strings.ContainsRune(command, os.PathSeparator) {
		if anchor, err := exec.LookPath(nextTo); err == nil {
			sidecar := filepath.Join(filepath.Dir(anchor), command)
			if isExecutableFile(sidecar) {
				return sidecar, nil
			}
		}
	}
	path, err := exec.LookPath(command)
	switch {
	case err == nil:
		return path, nil
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("binary %q not found", command)
	default:
		return "", fmt.Errorf("binary %q unusable: %v", command, err)
	}
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}
