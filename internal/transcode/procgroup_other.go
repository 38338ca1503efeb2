//go:build !unix

package transcode

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup falls back to killing the root process only.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
