package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"swc/internal/fileutil"
	"swc/internal/job"
	"swc/internal/textutil"
)

// deliver moves the finished artifact out of the workspace into outputDir.
// Existing files are kept unless overwrite is set; a " (n)" suffix is chosen
// instead.
func (p *Pipeline) deliver(req job.Request, artifact string, meta job.Metadata) (string, error) {
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	name := textutil.ArtifactName(meta.Title, req.Format, req.ID)
	dst := filepath.Join(p.outputDir, name)

	if p.overwrite {
		if err := fileutil.MoveFile(artifact, dst); err != nil {
			return "", err
		}
		return dst, nil
	}

	reserved, err := fileutil.ReserveUniquePath(dst)
	if err != nil {
		return "", err
	}
	if err := fileutil.MoveFile(artifact, reserved); err != nil {
		_ = os.Remove(reserved)
		return "", err
	}
	return reserved, nil
}
