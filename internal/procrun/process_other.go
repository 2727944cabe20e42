//go:build !unix

package procrun

import (
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

func signalGroup(cmd *exec.Cmd, force bool) error {
	if cmd.Process == nil {
		return os.ErrProcessDone
	}
	if !force {
		if err := cmd.Process.Signal(os.Interrupt); err == nil {
			return nil
		}
	}
	return cmd.Process.Kill()
}

func exitSignal(*os.ProcessState) string { return "" }
