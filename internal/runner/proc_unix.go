//go:build unix

package runner

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts cmd in a new process group and makes context
// cancellation kill the whole group.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
