//go:build !linux

package engine

import (
	"os"
	"os/exec"
)

// Process groups are a POSIX concept; on other platforms only the direct
// child is signaled.
func setProcessGroup(cmd *exec.Cmd) {}

func terminateGroup(pid int) {
	if proc, err := os.FindProcess(pid); err == nil {
		_ = proc.Signal(os.Interrupt)
	}
}

func killGroup(pid int) {
	if proc, err := os.FindProcess(pid); err == nil {
		_ = proc.Kill()
	}
}
